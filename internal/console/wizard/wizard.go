// Package wizard implements the branch-registration workflow: code/quantity
// entry, BOM resolution by latest-fetch or spreadsheet upload, an optional
// product image, and final registration against the project.
package wizard

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/console/bomsheet"
)

// StateKind tags the workflow state. Each state carries exactly the data
// valid for it: BomResolved always has a branch type id, Empty has none.
type StateKind int

const (
	StateEmpty StateKind = iota
	StateFormFilled
	StateBomResolved
	StateSubmitted
)

// BomSource records how the draft's BOM was resolved.
type BomSource int

const (
	SourceNone BomSource = iota
	SourceLatest
	SourceUploaded
)

// State is a snapshot of the workflow's tagged state.
type State struct {
	Kind         StateKind
	Source       BomSource // valid when Kind == StateBomResolved
	BranchTypeID int64     // valid when Kind == StateBomResolved
}

var (
	// ErrBusy rejects an action while fetch, upload or register is in flight.
	ErrBusy = errors.New("다른 요청이 진행 중입니다.")
	// ErrFormIncomplete rejects BOM resolution before code and quantity are set.
	ErrFormIncomplete = errors.New("분기 레일 코드와 수량을 모두 입력해주세요.")
	// ErrInvalidSpreadsheet rejects non-Excel BOM files before any network call.
	ErrInvalidSpreadsheet = errors.New("엑셀 파일(.xls, .xlsx)만 업로드할 수 있습니다.")
	// ErrInvalidImage rejects unsupported or oversized product images.
	ErrInvalidImage = errors.New("JPG/PNG/WebP 형식, 100MB 이하만 업로드할 수 있습니다.")
	// ErrNotResolved rejects registration before a BOM has been resolved.
	ErrNotResolved = errors.New("최신 BOM을 불러오거나 새로운 BOM을 업로드한 후 등록해주세요.")
)

// MaxImageSize caps product image uploads at 100MB.
const MaxImageSize = 100 * 1024 * 1024

var allowedImageMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Collaborators are the network operations the wizard drives. All of them
// run mutually exclusively; while one is in flight the others are refused.
type Collaborators struct {
	FetchLatest func(ctx context.Context, branchCode string, versionInfoID int64) (*backend.BranchBomInfo, error)
	UploadBom   func(ctx context.Context, branchCode string, versionInfoID int64, imageURL, filename string, file io.Reader) (int64, error)
	UploadImage func(ctx context.Context, filename string, file io.Reader) (string, error)
	Register    func(ctx context.Context, branchTypeID int64, quantity int) error
}

// Wizard is the registration draft for one project. Not safe for concurrent
// use; callers serialize per session.
type Wizard struct {
	versionInfoID int64
	collab        Collaborators

	branchCode   string
	quantity     int
	source       BomSource
	branchTypeID int64
	bomLines     []backend.BomLine
	imageURL     string
	submitted    bool

	inflight bool
}

// New creates an empty draft for a project version.
func New(versionInfoID int64, collab Collaborators) *Wizard {
	return &Wizard{versionInfoID: versionInfoID, collab: collab}
}

// SetBranchCode updates the branch code. Any resolved BOM belongs to the
// previous inputs, so it is discarded.
func (w *Wizard) SetBranchCode(code string) {
	w.branchCode = strings.TrimSpace(code)
	w.invalidateBom()
}

// SetQuantity coerces raw input to a positive integer; non-numeric or
// non-positive input clears the quantity rather than propagating. Any
// resolved BOM is discarded.
func (w *Wizard) SetQuantity(raw string) {
	w.quantity = 0
	if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && v > 0 {
		w.quantity = int(v)
	}
	w.invalidateBom()
}

func (w *Wizard) invalidateBom() {
	w.source = SourceNone
	w.branchTypeID = 0
	w.bomLines = nil
	w.submitted = false
}

// FetchLatest resolves the draft's BOM from the most recent one registered
// for the branch code. The previous BOM is cleared before the attempt so a
// failed refetch never shows stale data.
func (w *Wizard) FetchLatest(ctx context.Context) error {
	if w.inflight {
		return ErrBusy
	}
	if !w.formFilled() {
		return ErrFormIncomplete
	}

	w.invalidateBom()

	w.inflight = true
	info, err := w.collab.FetchLatest(ctx, w.branchCode, w.versionInfoID)
	w.inflight = false
	if err != nil {
		return err
	}

	w.bomLines = info.Lines
	w.branchTypeID = info.BranchTypeID
	w.source = SourceLatest
	return nil
}

// UploadBom resolves the draft's BOM from an uploaded spreadsheet. The file
// is rejected client-side unless it is .xls/.xlsx (extension authoritative
// when the MIME type is empty). A previously attached image travels with the
// upload. No BOM preview is kept for this path.
func (w *Wizard) UploadBom(ctx context.Context, filename, mimeType string, file io.Reader) error {
	if w.inflight {
		return ErrBusy
	}
	if !w.formFilled() {
		return ErrFormIncomplete
	}
	if !bomsheet.IsSpreadsheet(filename, mimeType) {
		return ErrInvalidSpreadsheet
	}

	w.invalidateBom()

	w.inflight = true
	typeID, err := w.collab.UploadBom(ctx, w.branchCode, w.versionInfoID, w.imageURL, filename, file)
	w.inflight = false
	if err != nil {
		return err
	}

	w.branchTypeID = typeID
	w.source = SourceUploaded
	return nil
}

// AttachImage uploads an optional product image. It may run at any point
// before final registration and does not affect BOM resolution.
func (w *Wizard) AttachImage(ctx context.Context, filename, mimeType string, size int64, file io.Reader) error {
	if w.inflight {
		return ErrBusy
	}
	if (mimeType != "" && !allowedImageMIME[mimeType]) || size > MaxImageSize {
		return ErrInvalidImage
	}

	w.inflight = true
	url, err := w.collab.UploadImage(ctx, filename, file)
	w.inflight = false
	if err != nil {
		w.imageURL = ""
		return err
	}

	w.imageURL = url
	return nil
}

// ClearImage removes the attached image from the draft only.
func (w *Wizard) ClearImage() {
	w.imageURL = ""
}

// Register submits the resolved type and quantity. On failure the draft
// stays resolved so registration can be retried without re-resolving.
func (w *Wizard) Register(ctx context.Context) error {
	if w.inflight {
		return ErrBusy
	}
	if !w.CanRegister() {
		return ErrNotResolved
	}

	w.inflight = true
	err := w.collab.Register(ctx, w.branchTypeID, w.quantity)
	w.inflight = false
	if err != nil {
		return err
	}

	w.submitted = true
	return nil
}

// Reset clears the entire draft back to Empty.
func (w *Wizard) Reset() {
	w.branchCode = ""
	w.quantity = 0
	w.imageURL = ""
	w.invalidateBom()
}

// CanRegister reports whether final registration is permitted: a resolved
// type id and a positive quantity.
func (w *Wizard) CanRegister() bool {
	return !w.submitted && w.branchTypeID != 0 && w.quantity > 0
}

func (w *Wizard) formFilled() bool {
	return w.branchCode != "" && w.quantity > 0
}

// State returns the tagged workflow state.
func (w *Wizard) State() State {
	switch {
	case w.submitted:
		return State{Kind: StateSubmitted}
	case w.branchTypeID != 0:
		return State{Kind: StateBomResolved, Source: w.source, BranchTypeID: w.branchTypeID}
	case w.formFilled():
		return State{Kind: StateFormFilled}
	default:
		return State{Kind: StateEmpty}
	}
}

func (w *Wizard) BranchCode() string { return w.branchCode }

func (w *Wizard) Quantity() int { return w.quantity }

// BomLines returns the preview lines; populated only for the fetched-latest
// path.
func (w *Wizard) BomLines() []backend.BomLine { return w.bomLines }

func (w *Wizard) ImageURL() string { return w.imageURL }

func (w *Wizard) InFlight() bool { return w.inflight }

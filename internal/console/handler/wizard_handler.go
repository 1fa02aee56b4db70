package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/console/bomsheet"
	"github.com/railworks/railconsole/internal/console/wizard"
	"github.com/railworks/railconsole/internal/middleware"
)

// WizardHandler drives the branch-registration workflow. Each console
// session holds one draft per project, persisted between requests; requests
// touching the same draft are serialized.
type WizardHandler struct {
	client *backend.Client
	drafts wizard.DraftStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewWizardHandler(client *backend.Client, drafts wizard.DraftStore) *WizardHandler {
	return &WizardHandler{
		client: client,
		drafts: drafts,
		locks:  make(map[string]*sync.Mutex),
	}
}

// draftView is the workflow state the browser renders.
type draftView struct {
	BranchCode   string            `json:"branchCode"`
	Quantity     int               `json:"quantity"`
	State        string            `json:"state"`
	Source       string            `json:"source"`
	BranchTypeID int64             `json:"branchTypeId,omitempty"`
	BomLines     []backend.BomLine `json:"bomLines,omitempty"`
	ImageURL     string            `json:"imageUrl,omitempty"`
	CanRegister  bool              `json:"canRegister"`
}

func viewOf(w *wizard.Wizard) draftView {
	state := w.State()
	return draftView{
		BranchCode:   w.BranchCode(),
		Quantity:     w.Quantity(),
		State:        stateName(state.Kind),
		Source:       sourceName(state.Source),
		BranchTypeID: state.BranchTypeID,
		BomLines:     w.BomLines(),
		ImageURL:     w.ImageURL(),
		CanRegister:  w.CanRegister(),
	}
}

func stateName(k wizard.StateKind) string {
	switch k {
	case wizard.StateFormFilled:
		return "FORM_FILLED"
	case wizard.StateBomResolved:
		return "BOM_RESOLVED"
	case wizard.StateSubmitted:
		return "SUBMITTED"
	default:
		return "EMPTY"
	}
}

func sourceName(s wizard.BomSource) string {
	switch s {
	case wizard.SourceLatest:
		return "LATEST"
	case wizard.SourceUploaded:
		return "UPLOADED"
	default:
		return "NONE"
	}
}

// draftLock serializes requests touching one draft.
func (h *WizardHandler) draftLock(key string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	h.locks[key] = l
	return l
}

// dropLock releases a draft's lock entry once the draft is gone, keeping the
// map bounded by the number of live drafts.
func (h *WizardHandler) dropLock(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.locks, key)
}

func draftKeyFor(c *gin.Context, projectID int64) string {
	claims := middleware.Claims(c)
	return fmt.Sprintf("%s:%d", claims.ID, projectID)
}

// collaborators wires the draft's network operations to the backend client.
func (h *WizardHandler) collaborators(projectID int64) wizard.Collaborators {
	return wizard.Collaborators{
		FetchLatest: func(ctx context.Context, branchCode string, versionInfoID int64) (*backend.BranchBomInfo, error) {
			return h.client.LatestBranchBom(ctx, branchCode, versionInfoID)
		},
		UploadBom: func(ctx context.Context, branchCode string, versionInfoID int64, imageURL, filename string, file io.Reader) (int64, error) {
			result, err := h.client.UploadBranchBom(ctx, branchCode, versionInfoID, imageURL, filename, file)
			if err != nil {
				return 0, err
			}
			return result.BranchTypeID, nil
		},
		UploadImage: func(ctx context.Context, filename string, file io.Reader) (string, error) {
			uploaded, err := h.client.UploadFile(ctx, backend.FileUploadBranchImage, filename, file)
			if err != nil {
				return "", err
			}
			return uploaded.FileURL, nil
		},
		Register: func(ctx context.Context, branchTypeID int64, quantity int) error {
			_, err := h.client.RegisterBranches(ctx, projectID, []backend.BranchRegisterItem{
				{BranchTypeID: branchTypeID, Quantity: quantity},
			})
			return err
		},
	}
}

// load rebuilds the session's draft for a project. The project detail supplies
// the version the draft resolves BOMs against.
func (h *WizardHandler) load(c *gin.Context, projectID int64) (*wizard.Wizard, string, error) {
	detail, err := h.client.Project(backendCtx(c), projectID)
	if err != nil {
		return nil, "", err
	}

	key := draftKeyFor(c, projectID)
	snap, err := h.drafts.Load(c.Request.Context(), key)
	if err != nil {
		return nil, "", err
	}

	collab := h.collaborators(projectID)
	if snap == nil {
		return wizard.New(detail.VersionInfoID, collab), key, nil
	}
	return wizard.Restore(detail.VersionInfoID, collab, *snap), key, nil
}

func (h *WizardHandler) save(c *gin.Context, key string, w *wizard.Wizard) {
	if err := h.drafts.Save(c.Request.Context(), key, w.Snapshot()); err != nil {
		BackendError(c, err, "임시 저장에 실패했습니다.")
		c.Abort()
	}
}

// wizardError maps workflow refusals onto envelope statuses.
func wizardError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, wizard.ErrBusy):
		Error(c, http.StatusConflict, "IN_FLIGHT", err.Error())
	case errors.Is(err, wizard.ErrFormIncomplete),
		errors.Is(err, wizard.ErrInvalidSpreadsheet),
		errors.Is(err, wizard.ErrInvalidImage),
		errors.Is(err, wizard.ErrNotResolved):
		BadRequest(c, err.Error())
	default:
		BackendError(c, err, fallback)
	}
}

// Draft serves the current draft state.
func (h *WizardHandler) Draft(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	lock := h.draftLock(draftKeyFor(c, projectID))
	lock.Lock()
	defer lock.Unlock()

	w, _, err := h.load(c, projectID)
	if err != nil {
		BackendError(c, err, "임시 저장을 불러오지 못했습니다.")
		return
	}
	Success(c, "", viewOf(w))
}

type draftForm struct {
	BranchCode string `json:"branchCode"`
	Quantity   string `json:"quantity"`
}

// UpdateDraft records the form inputs. Changing either input discards any
// resolved BOM, since it belonged to the previous inputs.
func (h *WizardHandler) UpdateDraft(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var form draftForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, "입력값을 다시 확인해주세요.")
		return
	}

	lock := h.draftLock(draftKeyFor(c, projectID))
	lock.Lock()
	defer lock.Unlock()

	w, key, err := h.load(c, projectID)
	if err != nil {
		BackendError(c, err, "임시 저장을 불러오지 못했습니다.")
		return
	}

	w.SetBranchCode(form.BranchCode)
	w.SetQuantity(form.Quantity)

	h.save(c, key, w)
	if c.IsAborted() {
		return
	}
	Success(c, "", viewOf(w))
}

// ResetDraft discards the draft entirely.
func (h *WizardHandler) ResetDraft(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	key := draftKeyFor(c, projectID)
	lock := h.draftLock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := h.drafts.Delete(c.Request.Context(), key); err != nil {
		BackendError(c, err, "임시 저장 삭제에 실패했습니다.")
		return
	}
	h.dropLock(key)
	Success(c, "", nil)
}

// FetchLatest resolves the draft's BOM from the newest one registered for
// the branch code.
func (h *WizardHandler) FetchLatest(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	lock := h.draftLock(draftKeyFor(c, projectID))
	lock.Lock()
	defer lock.Unlock()

	w, key, err := h.load(c, projectID)
	if err != nil {
		BackendError(c, err, "임시 저장을 불러오지 못했습니다.")
		return
	}

	if err := w.FetchLatest(backendCtx(c)); err != nil {
		// A failed fetch still cleared the previous BOM; persist that.
		h.drafts.Save(c.Request.Context(), key, w.Snapshot())
		wizardError(c, err, "최신 BOM을 불러오지 못했습니다.")
		return
	}

	h.save(c, key, w)
	if c.IsAborted() {
		return
	}
	Success(c, "최신 BOM을 불러왔습니다.", viewOf(w))
}

// UploadBom resolves the draft's BOM from an uploaded spreadsheet. Unreadable
// .xlsx workbooks fail fast before the backend sees them.
func (h *WizardHandler) UploadBom(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "업로드할 파일을 선택해주세요.")
		return
	}
	defer file.Close()

	lock := h.draftLock(draftKeyFor(c, projectID))
	lock.Lock()
	defer lock.Unlock()

	w, key, err := h.load(c, projectID)
	if err != nil {
		BackendError(c, err, "임시 저장을 불러오지 못했습니다.")
		return
	}

	buf, err := bufferUpload(file)
	if err != nil {
		BadRequest(c, "파일을 읽지 못했습니다.")
		return
	}
	if strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		if _, _, err := bomsheet.Preview(bytes.NewReader(buf)); err != nil {
			BadRequest(c, "엑셀 파일을 해석할 수 없습니다.")
			return
		}
	}

	mimeType := header.Header.Get("Content-Type")
	if err := w.UploadBom(backendCtx(c), header.Filename, mimeType, bytes.NewReader(buf)); err != nil {
		h.drafts.Save(c.Request.Context(), key, w.Snapshot())
		wizardError(c, err, "BOM 업로드에 실패했습니다.")
		return
	}

	h.save(c, key, w)
	if c.IsAborted() {
		return
	}
	Success(c, "BOM을 업로드했습니다.", viewOf(w))
}

// AttachImage uploads the optional product image onto the draft.
func (h *WizardHandler) AttachImage(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "업로드할 파일을 선택해주세요.")
		return
	}
	defer file.Close()

	lock := h.draftLock(draftKeyFor(c, projectID))
	lock.Lock()
	defer lock.Unlock()

	w, key, err := h.load(c, projectID)
	if err != nil {
		BackendError(c, err, "임시 저장을 불러오지 못했습니다.")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if err := w.AttachImage(backendCtx(c), header.Filename, mimeType, header.Size, file); err != nil {
		h.drafts.Save(c.Request.Context(), key, w.Snapshot())
		wizardError(c, err, "이미지 업로드에 실패했습니다.")
		return
	}

	h.save(c, key, w)
	if c.IsAborted() {
		return
	}
	Success(c, "이미지를 업로드했습니다.", viewOf(w))
}

// ClearImage detaches the product image from the draft. The uploaded file
// itself is left alone; the file endpoint deletes it separately.
func (h *WizardHandler) ClearImage(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	lock := h.draftLock(draftKeyFor(c, projectID))
	lock.Lock()
	defer lock.Unlock()

	w, key, err := h.load(c, projectID)
	if err != nil {
		BackendError(c, err, "임시 저장을 불러오지 못했습니다.")
		return
	}

	w.ClearImage()
	h.save(c, key, w)
	if c.IsAborted() {
		return
	}
	Success(c, "", viewOf(w))
}

// Register submits the resolved draft. On success the draft is gone and the
// browser returns to the project page.
func (h *WizardHandler) Register(c *gin.Context) {
	projectID, ok := pathID(c, "id")
	if !ok {
		return
	}
	key := draftKeyFor(c, projectID)
	lock := h.draftLock(key)
	lock.Lock()
	defer lock.Unlock()

	w, _, err := h.load(c, projectID)
	if err != nil {
		BackendError(c, err, "임시 저장을 불러오지 못했습니다.")
		return
	}

	if err := w.Register(backendCtx(c)); err != nil {
		wizardError(c, err, "분기 레일 등록에 실패했습니다.")
		return
	}

	if err := h.drafts.Delete(c.Request.Context(), key); err != nil {
		// Registration already succeeded; a leftover draft only costs storage.
		_ = err
	}
	h.dropLock(key)
	Success(c, "분기 레일을 등록했습니다.", gin.H{
		"redirect": fmt.Sprintf("/project/%d", projectID),
	})
}

// BranchBom serves the stored BOM lines for a registered branch type.
func (h *WizardHandler) BranchBom(c *gin.Context) {
	typeID, ok := pathID(c, "typeId")
	if !ok {
		return
	}
	lines, err := h.client.BranchBom(backendCtx(c), typeID)
	if err != nil {
		BackendError(c, err, "BOM을 불러오지 못했습니다.")
		return
	}
	Success(c, "", lines)
}

func bufferUpload(file multipart.File) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

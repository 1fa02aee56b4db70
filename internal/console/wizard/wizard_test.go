package wizard

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/railworks/railconsole/internal/backend"
)

func testCollaborators() Collaborators {
	return Collaborators{
		FetchLatest: func(ctx context.Context, branchCode string, versionInfoID int64) (*backend.BranchBomInfo, error) {
			return &backend.BranchBomInfo{
				BranchTypeID: 42,
				BranchCode:   branchCode,
				Lines: []backend.BomLine{
					{DrawingNumber: "D-001", ItemName: "클램프", UnitQuantity: 2, Unit: "EA"},
					{DrawingNumber: "D-002", ItemName: "브래킷", UnitQuantity: 4, Unit: "EA"},
					{DrawingNumber: "D-003", ItemName: "볼트", UnitQuantity: 8, Unit: "EA"},
				},
			}, nil
		},
		UploadBom: func(ctx context.Context, branchCode string, versionInfoID int64, imageURL, filename string, file io.Reader) (int64, error) {
			return 77, nil
		},
		UploadImage: func(ctx context.Context, filename string, file io.Reader) (string, error) {
			return "https://files.example.com/" + filename, nil
		},
		Register: func(ctx context.Context, branchTypeID int64, quantity int) error {
			return nil
		},
	}
}

func TestEmptyUntilBothInputsSet(t *testing.T) {
	w := New(10, testCollaborators())

	if w.State().Kind != StateEmpty {
		t.Fatalf("new draft must be empty: %v", w.State().Kind)
	}

	w.SetBranchCode("B12")
	if w.State().Kind != StateEmpty {
		t.Fatal("code alone must not fill the form")
	}

	w.SetQuantity("5")
	if w.State().Kind != StateFormFilled {
		t.Fatalf("code and quantity fill the form: %v", w.State().Kind)
	}
}

func TestQuantityCoercion(t *testing.T) {
	w := New(10, testCollaborators())

	cases := map[string]int{
		"5":    5,
		" 3 ":  3,
		"2.9":  2,
		"0":    0,
		"-4":   0,
		"abc":  0,
		"":     0,
		"0.5":  0,
	}
	for raw, want := range cases {
		w.SetQuantity(raw)
		if w.Quantity() != want {
			t.Errorf("quantity %q: got %d, want %d", raw, w.Quantity(), want)
		}
	}
}

func TestFetchLatestRequiresFilledForm(t *testing.T) {
	w := New(10, testCollaborators())
	w.SetBranchCode("B12")

	if err := w.FetchLatest(context.Background()); !errors.Is(err, ErrFormIncomplete) {
		t.Fatalf("expected ErrFormIncomplete, got %v", err)
	}
}

func TestFetchLatestResolvesBom(t *testing.T) {
	w := New(10, testCollaborators())
	w.SetBranchCode("B12")
	w.SetQuantity("5")

	if err := w.FetchLatest(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	state := w.State()
	if state.Kind != StateBomResolved || state.Source != SourceLatest {
		t.Fatalf("state after fetch: %+v", state)
	}
	if state.BranchTypeID != 42 {
		t.Fatalf("branch type id: %d", state.BranchTypeID)
	}
	if len(w.BomLines()) != 3 {
		t.Fatalf("bom lines: %d", len(w.BomLines()))
	}
	if !w.CanRegister() {
		t.Fatal("resolved draft with quantity must be registrable")
	}
}

func TestInputChangeDiscardsResolvedBom(t *testing.T) {
	w := New(10, testCollaborators())
	w.SetBranchCode("B12")
	w.SetQuantity("5")
	w.FetchLatest(context.Background())

	w.SetQuantity("7")
	state := w.State()
	if state.Kind != StateFormFilled {
		t.Fatalf("quantity change must drop the BOM: %v", state.Kind)
	}
	if len(w.BomLines()) != 0 || state.BranchTypeID != 0 {
		t.Fatal("stale BOM data survived an input change")
	}
	if w.CanRegister() {
		t.Fatal("unresolved draft must not be registrable")
	}
}

func TestFetchFailureClearsPreviousBom(t *testing.T) {
	collab := testCollaborators()
	w := New(10, collab)
	w.SetBranchCode("B12")
	w.SetQuantity("5")
	w.FetchLatest(context.Background())

	w.collab.FetchLatest = func(ctx context.Context, branchCode string, versionInfoID int64) (*backend.BranchBomInfo, error) {
		return nil, errors.New("등록된 BOM이 없습니다.")
	}
	if err := w.FetchLatest(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
	if len(w.BomLines()) != 0 {
		t.Fatal("failed refetch must not show the previous BOM")
	}
	if w.State().Kind != StateFormFilled {
		t.Fatalf("state after failed fetch: %v", w.State().Kind)
	}
}

func TestUploadBomRejectsNonSpreadsheet(t *testing.T) {
	called := false
	collab := testCollaborators()
	collab.UploadBom = func(ctx context.Context, branchCode string, versionInfoID int64, imageURL, filename string, file io.Reader) (int64, error) {
		called = true
		return 0, nil
	}
	w := New(10, collab)
	w.SetBranchCode("B12")
	w.SetQuantity("5")

	err := w.UploadBom(context.Background(), "data.csv", "", strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidSpreadsheet) {
		t.Fatalf("expected ErrInvalidSpreadsheet, got %v", err)
	}
	if called {
		t.Fatal("rejected file must never reach the network")
	}
}

func TestUploadBomAcceptsXlsxWithEmptyMIME(t *testing.T) {
	w := New(10, testCollaborators())
	w.SetBranchCode("B12")
	w.SetQuantity("5")

	if err := w.UploadBom(context.Background(), "sheet.xlsx", "", strings.NewReader("x")); err != nil {
		t.Fatalf("empty MIME with .xlsx extension must pass: %v", err)
	}

	state := w.State()
	if state.Kind != StateBomResolved || state.Source != SourceUploaded {
		t.Fatalf("state after upload: %+v", state)
	}
	if state.BranchTypeID != 77 {
		t.Fatalf("branch type id: %d", state.BranchTypeID)
	}
	if len(w.BomLines()) != 0 {
		t.Fatal("uploaded path keeps no preview")
	}
}

func TestUploadBomCarriesAttachedImage(t *testing.T) {
	var gotImageURL string
	collab := testCollaborators()
	collab.UploadBom = func(ctx context.Context, branchCode string, versionInfoID int64, imageURL, filename string, file io.Reader) (int64, error) {
		gotImageURL = imageURL
		return 77, nil
	}
	w := New(10, collab)
	w.SetBranchCode("B12")
	w.SetQuantity("5")

	if err := w.AttachImage(context.Background(), "rail.png", "image/png", 1024, strings.NewReader("img")); err != nil {
		t.Fatalf("attach image: %v", err)
	}
	if err := w.UploadBom(context.Background(), "sheet.xlsx", "", strings.NewReader("x")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if gotImageURL != "https://files.example.com/rail.png" {
		t.Fatalf("image url must travel with the upload: %q", gotImageURL)
	}
}

func TestAttachImageGuards(t *testing.T) {
	w := New(10, testCollaborators())

	if err := w.AttachImage(context.Background(), "doc.pdf", "application/pdf", 10, strings.NewReader("x")); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("pdf: expected ErrInvalidImage, got %v", err)
	}
	if err := w.AttachImage(context.Background(), "big.png", "image/png", MaxImageSize+1, strings.NewReader("x")); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("oversize: expected ErrInvalidImage, got %v", err)
	}
	// An empty MIME passes; some browsers omit it.
	if err := w.AttachImage(context.Background(), "rail.webp", "", 10, strings.NewReader("x")); err != nil {
		t.Fatalf("empty MIME: %v", err)
	}
}

func TestRegisterBeforeResolution(t *testing.T) {
	w := New(10, testCollaborators())
	w.SetBranchCode("B12")
	w.SetQuantity("5")

	if err := w.Register(context.Background()); !errors.Is(err, ErrNotResolved) {
		t.Fatalf("expected ErrNotResolved, got %v", err)
	}
}

func TestRegisterEndToEnd(t *testing.T) {
	var gotTypeID int64
	var gotQuantity int
	collab := testCollaborators()
	collab.Register = func(ctx context.Context, branchTypeID int64, quantity int) error {
		gotTypeID, gotQuantity = branchTypeID, quantity
		return nil
	}

	w := New(10, collab)
	w.SetBranchCode("B12")
	w.SetQuantity("5")
	if err := w.FetchLatest(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := w.Register(context.Background()); err != nil {
		t.Fatalf("register: %v", err)
	}

	if gotTypeID != 42 || gotQuantity != 5 {
		t.Fatalf("registered %d x%d", gotTypeID, gotQuantity)
	}
	if w.State().Kind != StateSubmitted {
		t.Fatalf("state after register: %v", w.State().Kind)
	}
	if w.CanRegister() {
		t.Fatal("submitted draft must not register twice")
	}
}

func TestRegisterFailureStaysResolved(t *testing.T) {
	collab := testCollaborators()
	collab.Register = func(ctx context.Context, branchTypeID int64, quantity int) error {
		return errors.New("server error")
	}

	w := New(10, collab)
	w.SetBranchCode("B12")
	w.SetQuantity("5")
	w.FetchLatest(context.Background())

	if err := w.Register(context.Background()); err == nil {
		t.Fatal("expected register error")
	}
	if w.State().Kind != StateBomResolved {
		t.Fatalf("failed register must keep the resolution: %v", w.State().Kind)
	}
	if !w.CanRegister() {
		t.Fatal("failed register must stay retryable")
	}
}

func TestResetClearsEverything(t *testing.T) {
	w := New(10, testCollaborators())
	w.SetBranchCode("B12")
	w.SetQuantity("5")
	w.FetchLatest(context.Background())
	w.AttachImage(context.Background(), "rail.png", "image/png", 10, strings.NewReader("x"))

	w.Reset()
	if w.State().Kind != StateEmpty {
		t.Fatalf("reset must return to empty: %v", w.State().Kind)
	}
	if w.BranchCode() != "" || w.Quantity() != 0 || w.ImageURL() != "" {
		t.Fatal("reset left data behind")
	}
}

func TestOperationsAreMutuallyExclusive(t *testing.T) {
	var w *Wizard
	collab := testCollaborators()
	collab.FetchLatest = func(ctx context.Context, branchCode string, versionInfoID int64) (*backend.BranchBomInfo, error) {
		// While the fetch is in flight every other operation is refused.
		if err := w.Register(ctx); !errors.Is(err, ErrBusy) {
			t.Errorf("register during fetch: expected ErrBusy, got %v", err)
		}
		if err := w.UploadBom(ctx, "sheet.xlsx", "", strings.NewReader("x")); !errors.Is(err, ErrBusy) {
			t.Errorf("upload during fetch: expected ErrBusy, got %v", err)
		}
		if err := w.AttachImage(ctx, "rail.png", "image/png", 10, strings.NewReader("x")); !errors.Is(err, ErrBusy) {
			t.Errorf("image during fetch: expected ErrBusy, got %v", err)
		}
		return &backend.BranchBomInfo{BranchTypeID: 42}, nil
	}

	w = New(10, collab)
	w.SetBranchCode("B12")
	w.SetQuantity("5")
	if err := w.FetchLatest(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if w.InFlight() {
		t.Fatal("in-flight flag must clear after the fetch returns")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	w := New(10, testCollaborators())
	w.SetBranchCode("B12")
	w.SetQuantity("5")
	w.FetchLatest(context.Background())
	w.AttachImage(context.Background(), "rail.png", "image/png", 10, strings.NewReader("x"))

	snap := w.Snapshot()
	restored := Restore(10, testCollaborators(), snap)

	if restored.BranchCode() != "B12" || restored.Quantity() != 5 {
		t.Fatalf("restored inputs: %q %d", restored.BranchCode(), restored.Quantity())
	}
	state := restored.State()
	if state.Kind != StateBomResolved || state.Source != SourceLatest || state.BranchTypeID != 42 {
		t.Fatalf("restored state: %+v", state)
	}
	if len(restored.BomLines()) != 3 {
		t.Fatalf("restored bom lines: %d", len(restored.BomLines()))
	}
	if restored.ImageURL() == "" {
		t.Fatal("restored image url missing")
	}
}

func TestDraftStoreRoundTrip(t *testing.T) {
	store := NewMemoryDraftStore()
	ctx := context.Background()

	if snap, err := store.Load(ctx, "missing"); err != nil || snap != nil {
		t.Fatalf("missing draft: %v %v", snap, err)
	}

	w := New(10, testCollaborators())
	w.SetBranchCode("B07")
	w.SetQuantity("2")
	if err := store.Save(ctx, "k", w.Snapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err := store.Load(ctx, "k")
	if err != nil || snap == nil {
		t.Fatalf("load: %v %v", snap, err)
	}
	if snap.BranchCode != "B07" || snap.Quantity != 2 {
		t.Fatalf("loaded draft: %+v", snap)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if snap, _ := store.Load(ctx, "k"); snap != nil {
		t.Fatal("deleted draft still present")
	}
}

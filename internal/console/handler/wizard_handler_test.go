package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/console/testutil"
	"github.com/railworks/railconsole/internal/console/wizard"
	"go.uber.org/zap"
)

type wizardBackend struct {
	t            *testing.T
	registered   []map[string]any
	bomUploads   int
	latestBomFor string
}

func (b *wizardBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/project/12" && r.Method == http.MethodGet:
			w.Write(testutil.Envelope(map[string]any{
				"versionInfoId": 3,
				"name":          "1호선",
			}))
		case r.URL.Path == "/branch/bom/latest":
			b.latestBomFor = r.URL.Query().Get("branchCode")
			w.Write(testutil.Envelope(map[string]any{
				"branchTypeId": 42,
				"branchCode":   b.latestBomFor,
				"branchDetailinfoDtoList": []map[string]any{
					{"drawingNumber": "D-001", "itemName": "클램프", "unitQuantity": 2, "unit": "EA"},
					{"drawingNumber": "D-002", "itemName": "브래킷", "unitQuantity": 4, "unit": "EA"},
					{"drawingNumber": "D-003", "itemName": "볼트", "unitQuantity": 8, "unit": "EA"},
				},
			}))
		case r.URL.Path == "/branch/bom/upload" && r.Method == http.MethodPost:
			b.bomUploads++
			w.Write(testutil.Envelope(map[string]any{"branchTypeId": 77}))
		case r.URL.Path == "/project/12/branch/register" && r.Method == http.MethodPost:
			var items []map[string]any
			json.NewDecoder(r.Body).Decode(&items)
			b.registered = append(b.registered, items...)
			w.Write(testutil.Envelope(nil))
		default:
			b.t.Errorf("unexpected backend path: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func setupWizardTest(t *testing.T) (*gin.Engine, *wizardBackend, *WizardHandler) {
	t.Helper()
	fake := &wizardBackend{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL, 0, zap.NewNop())
	wizardHandler := NewWizardHandler(client, wizard.NewMemoryDraftStore())

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api")
	draft := api.Group("/projects/:id/branch-draft")
	draft.GET("", wizardHandler.Draft)
	draft.PUT("", wizardHandler.UpdateDraft)
	draft.DELETE("", wizardHandler.ResetDraft)
	draft.POST("/fetch-latest", wizardHandler.FetchLatest)
	draft.POST("/bom", wizardHandler.UploadBom)
	draft.POST("/register", wizardHandler.Register)
	return router, fake, wizardHandler
}

func draftLockCount(h *WizardHandler) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.locks)
}

func draftState(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	resp := testutil.ParseResponse(w)
	data, ok := resp["data"].(map[string]any)
	if !ok {
		t.Fatalf("no draft data in response: %s", w.Body.String())
	}
	return data
}

func TestWizardHappyPath(t *testing.T) {
	router, fake, wh := setupWizardTest(t)
	token := testutil.DefaultSessionToken()

	// Fresh draft is empty.
	w := testutil.DoRequest(router, http.MethodGet, "/api/projects/12/branch-draft", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("draft: %d %s", w.Code, w.Body.String())
	}
	if state := draftState(t, w); state["state"] != "EMPTY" {
		t.Fatalf("fresh draft state: %v", state["state"])
	}

	// Fill the form.
	w = testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12",
		"quantity":   "5",
	}, token)
	if state := draftState(t, w); state["state"] != "FORM_FILLED" {
		t.Fatalf("filled draft state: %v", state["state"])
	}

	// Resolve by fetching the latest BOM.
	w = testutil.DoRequest(router, http.MethodPost, "/api/projects/12/branch-draft/fetch-latest", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("fetch-latest: %d %s", w.Code, w.Body.String())
	}
	state := draftState(t, w)
	if state["state"] != "BOM_RESOLVED" || state["source"] != "LATEST" {
		t.Fatalf("resolved state: %v", state)
	}
	if lines, ok := state["bomLines"].([]any); !ok || len(lines) != 3 {
		t.Fatalf("bom lines: %v", state["bomLines"])
	}
	if fake.latestBomFor != "B12" {
		t.Fatalf("backend queried code: %q", fake.latestBomFor)
	}

	// Register.
	w = testutil.DoRequest(router, http.MethodPost, "/api/projects/12/branch-draft/register", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	if len(fake.registered) != 1 {
		t.Fatalf("registered items: %v", fake.registered)
	}
	item := fake.registered[0]
	if item["branchTypeId"] != float64(42) || item["quantity"] != float64(5) {
		t.Fatalf("registered payload: %v", item)
	}

	// The draft is gone afterwards, and so is its lock entry; re-reading the
	// draft recreates one.
	if n := draftLockCount(wh); n != 0 {
		t.Fatalf("lock entries after register: %d", n)
	}
	w = testutil.DoRequest(router, http.MethodGet, "/api/projects/12/branch-draft", nil, token)
	if state := draftState(t, w); state["state"] != "EMPTY" {
		t.Fatalf("draft after register: %v", state["state"])
	}
}

func TestWizardFetchLatestRequiresForm(t *testing.T) {
	router, _, _ := setupWizardTest(t)
	token := testutil.DefaultSessionToken()

	w := testutil.DoRequest(router, http.MethodPost, "/api/projects/12/branch-draft/fetch-latest", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "분기 레일 코드와 수량을 모두 입력해주세요." {
		t.Fatalf("message: %v", resp["message"])
	}
}

func TestWizardInputChangeDropsResolution(t *testing.T) {
	router, _, _ := setupWizardTest(t)
	token := testutil.DefaultSessionToken()

	testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12", "quantity": "5",
	}, token)
	testutil.DoRequest(router, http.MethodPost, "/api/projects/12/branch-draft/fetch-latest", nil, token)

	w := testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12", "quantity": "7",
	}, token)
	state := draftState(t, w)
	if state["state"] != "FORM_FILLED" {
		t.Fatalf("quantity change must drop the BOM: %v", state)
	}
}

func TestWizardRegisterBeforeResolution(t *testing.T) {
	router, _, _ := setupWizardTest(t)
	token := testutil.DefaultSessionToken()

	testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12", "quantity": "5",
	}, token)

	w := testutil.DoRequest(router, http.MethodPost, "/api/projects/12/branch-draft/register", nil, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "최신 BOM을 불러오거나 새로운 BOM을 업로드한 후 등록해주세요." {
		t.Fatalf("message: %v", resp["message"])
	}
}

func TestWizardUploadBomRejectsCSV(t *testing.T) {
	router, fake, _ := setupWizardTest(t)
	token := testutil.DefaultSessionToken()

	testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12", "quantity": "5",
	}, token)

	w := testutil.DoMultipart(t, router, http.MethodPost, "/api/projects/12/branch-draft/bom", "data.csv", "text/csv", "a,b,c", token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "엑셀 파일(.xls, .xlsx)만 업로드할 수 있습니다." {
		t.Fatalf("message: %v", resp["message"])
	}
	if fake.bomUploads != 0 {
		t.Fatal("rejected file must never reach the backend")
	}
}

func TestWizardUploadXlsWithEmptyMIME(t *testing.T) {
	router, fake, _ := setupWizardTest(t)
	token := testutil.DefaultSessionToken()

	testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12", "quantity": "5",
	}, token)

	// Legacy .xls skips the local parse and goes straight to the backend.
	w := testutil.DoMultipart(t, router, http.MethodPost, "/api/projects/12/branch-draft/bom", "bom.xls", "", "binary", token)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	state := draftState(t, w)
	if state["state"] != "BOM_RESOLVED" || state["source"] != "UPLOADED" {
		t.Fatalf("uploaded state: %v", state)
	}
	if state["branchTypeId"] != float64(77) {
		t.Fatalf("branch type id: %v", state["branchTypeId"])
	}
	if fake.bomUploads != 1 {
		t.Fatalf("backend uploads: %d", fake.bomUploads)
	}
}

func TestWizardUploadUnreadableXlsxFailsFast(t *testing.T) {
	router, fake, _ := setupWizardTest(t)
	token := testutil.DefaultSessionToken()

	testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12", "quantity": "5",
	}, token)

	w := testutil.DoMultipart(t, router, http.MethodPost, "/api/projects/12/branch-draft/bom", "bom.xlsx", "", "not a workbook", token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	if fake.bomUploads != 0 {
		t.Fatal("unreadable workbook must never reach the backend")
	}
}

func TestWizardDraftIsolatedPerSession(t *testing.T) {
	router, _, _ := setupWizardTest(t)
	tokenA := testutil.GenerateSessionToken(1, "a", "ADMIN", "sess-a")
	tokenB := testutil.GenerateSessionToken(2, "b", "ADMIN", "sess-b")

	testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12", "quantity": "5",
	}, tokenA)

	w := testutil.DoRequest(router, http.MethodGet, "/api/projects/12/branch-draft", nil, tokenB)
	if state := draftState(t, w); state["state"] != "EMPTY" {
		t.Fatalf("drafts must not leak between sessions: %v", state)
	}
}

func TestWizardResetDraft(t *testing.T) {
	router, _, wh := setupWizardTest(t)
	token := testutil.DefaultSessionToken()

	testutil.DoRequest(router, http.MethodPut, "/api/projects/12/branch-draft", map[string]any{
		"branchCode": "B12", "quantity": "5",
	}, token)
	if n := draftLockCount(wh); n != 1 {
		t.Fatalf("lock entries for a live draft: %d", n)
	}
	w := testutil.DoRequest(router, http.MethodDelete, "/api/projects/12/branch-draft", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: %d", w.Code)
	}
	if n := draftLockCount(wh); n != 0 {
		t.Fatalf("lock entries after reset: %d", n)
	}

	w = testutil.DoRequest(router, http.MethodGet, "/api/projects/12/branch-draft", nil, token)
	if state := draftState(t, w); state["state"] != "EMPTY" {
		t.Fatalf("draft after reset: %v", state["state"])
	}
}

package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/config"
	"github.com/railworks/railconsole/internal/console/session"
	"github.com/railworks/railconsole/internal/console/testutil"
	"github.com/railworks/railconsole/internal/middleware"
	"go.uber.org/zap"
)

type authBackend struct {
	sessionAlive bool
}

func (b *authBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "backend-token"})
			w.Write(testutil.Envelope(nil))
		case "/user/info":
			if !b.sessionAlive {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write(testutil.ErrorEnvelope("AUTH_REQUIRED", "세션이 만료되었습니다.", nil))
				return
			}
			w.Write(testutil.Envelope(map[string]any{
				"id":       7,
				"username": "tester",
				"role":     "ADMIN",
			}))
		case "/auth/logout":
			w.Write(testutil.Envelope(nil))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func setupAuthTest(t *testing.T) (*gin.Engine, *authBackend) {
	t.Helper()
	fake := &authBackend{sessionAlive: true}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := backend.NewClient(srv.URL, 0, zap.NewNop())
	persist := session.NewMemoryPersistence()
	authHandler := NewAuthHandler(client, persist, config.SessionConfig{
		Secret:     testutil.SessionSecret,
		CookieName: testutil.CookieName,
		TTL:        time.Hour,
		Issuer:     "railconsole",
	}, zap.NewNop())

	router := testutil.SetupRouter()
	router.POST("/api/auth/login", authHandler.Login)
	api := testutil.AuthGroup(router, "/api")
	api.GET("/auth/me", authHandler.Me)
	api.POST("/auth/sync", authHandler.Sync)
	api.GET("/auth/access", authHandler.Access)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/admin-only", middleware.RequireRoles("ADMIN"), func(c *gin.Context) {
		Success(c, "", nil)
	})
	return router, fake
}

func sessionCookie(w *httptest.ResponseRecorder) string {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == testutil.CookieName {
			return ck.Value
		}
	}
	return ""
}

func TestLoginMintsSessionCookie(t *testing.T) {
	router, _ := setupAuthTest(t)

	w := testutil.DoRequest(router, http.MethodPost, "/api/auth/login", map[string]any{
		"loginId":  "tester",
		"password": "pw",
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}

	token := sessionCookie(w)
	if token == "" {
		t.Fatal("login must set the session cookie")
	}

	// The minted cookie works against gated endpoints.
	w = testutil.DoRequest(router, http.MethodGet, "/api/auth/me", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("me with minted cookie: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]any)
	user := data["user"].(map[string]any)
	if user["username"] != "tester" || user["role"] != "ADMIN" {
		t.Fatalf("cached user: %v", user)
	}
}

func TestLoginRejectsMissingCredentials(t *testing.T) {
	router, _ := setupAuthTest(t)

	w := testutil.DoRequest(router, http.MethodPost, "/api/auth/login", map[string]any{
		"loginId": "tester",
	}, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", w.Code)
	}
}

func TestGatedEndpointsRejectAnonymous(t *testing.T) {
	router, _ := setupAuthTest(t)

	w := testutil.DoRequest(router, http.MethodGet, "/api/auth/me", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "로그인이 필요한 서비스입니다." {
		t.Fatalf("message: %v", resp["message"])
	}
}

func TestRoleGateRejectsNonAdmin(t *testing.T) {
	router, _ := setupAuthTest(t)
	token := testutil.GenerateSessionToken(9, "viewer", "USER", "backend-token")

	w := testutil.DoRequest(router, http.MethodGet, "/api/admin-only", nil, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status: %d", w.Code)
	}
	resp := testutil.ParseResponse(w)
	if resp["message"] != "이 페이지에 접근할 권한이 없습니다." {
		t.Fatalf("message: %v", resp["message"])
	}

	// An allow-listed role passes.
	w = testutil.DoRequest(router, http.MethodGet, "/api/admin-only", nil, testutil.DefaultSessionToken())
	if w.Code != http.StatusOK {
		t.Fatalf("admin status: %d", w.Code)
	}
}

func TestAccessChecksCachedRole(t *testing.T) {
	router, _ := setupAuthTest(t)

	w := testutil.DoRequest(router, http.MethodPost, "/api/auth/login", map[string]any{
		"loginId": "tester", "password": "pw",
	}, "")
	token := sessionCookie(w)

	w = testutil.DoRequest(router, http.MethodGet, "/api/auth/access?roles=ADMIN", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("allowed role: %d %s", w.Code, w.Body.String())
	}

	w = testutil.DoRequest(router, http.MethodGet, "/api/auth/access?roles=SUPERVISOR", nil, token)
	if w.Code != http.StatusForbidden {
		t.Fatalf("forbidden role: %d", w.Code)
	}
}

func TestSyncLogsOutDeadBackendSession(t *testing.T) {
	router, fake := setupAuthTest(t)

	w := testutil.DoRequest(router, http.MethodPost, "/api/auth/login", map[string]any{
		"loginId": "tester", "password": "pw",
	}, "")
	token := sessionCookie(w)

	// Backend session dies; sync must mirror the logout.
	fake.sessionAlive = false
	w = testutil.DoRequest(router, http.MethodPost, "/api/auth/sync", nil, token)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("sync: %d %s", w.Code, w.Body.String())
	}

	for _, ck := range w.Result().Cookies() {
		if ck.Name == testutil.CookieName && ck.MaxAge >= 0 {
			t.Fatal("dead session must expire the cookie")
		}
	}
}

func TestSyncRefreshesCachedUser(t *testing.T) {
	router, _ := setupAuthTest(t)

	w := testutil.DoRequest(router, http.MethodPost, "/api/auth/login", map[string]any{
		"loginId": "tester", "password": "pw",
	}, "")
	token := sessionCookie(w)

	w = testutil.DoRequest(router, http.MethodPost, "/api/auth/sync", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("sync: %d %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]any)
	if data["username"] != "tester" {
		t.Fatalf("synced user: %v", data)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	router, _ := setupAuthTest(t)

	w := testutil.DoRequest(router, http.MethodPost, "/api/auth/login", map[string]any{
		"loginId": "tester", "password": "pw",
	}, "")
	token := sessionCookie(w)

	w = testutil.DoRequest(router, http.MethodPost, "/api/auth/logout", nil, token)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: %d", w.Code)
	}

	expired := false
	for _, ck := range w.Result().Cookies() {
		if ck.Name == testutil.CookieName && ck.MaxAge < 0 {
			expired = true
		}
	}
	if !expired {
		t.Fatal("logout must expire the session cookie")
	}
}

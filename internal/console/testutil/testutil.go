// Package testutil provides the shared harness for console handler tests:
// a test router, session-token minting, and request helpers.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/railworks/railconsole/internal/middleware"
)

const (
	SessionSecret = "railconsole-test-secret"
	CookieName    = "console_session"
)

// SetupRouter creates a gin test router.
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group behind the session middleware.
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.SessionAuth(SessionSecret, CookieName))
}

// GenerateSessionToken mints a valid console session token for tests.
func GenerateSessionToken(userID int64, username, role, backendSession string) string {
	now := time.Now()
	claims := &middleware.SessionClaims{
		UserID:         userID,
		Username:       username,
		Role:           role,
		BackendSession: backendSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        fmt.Sprintf("test-session-%d", now.UnixNano()),
			Subject:   fmt.Sprintf("%d", userID),
			Issuer:    "railconsole",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(SessionSecret))
	return token
}

// DefaultSessionToken returns a token for a default admin test user.
func DefaultSessionToken() string {
	return GenerateSessionToken(1, "tester", "ADMIN", "backend-session-token")
}

// DoRequest executes a JSON request against the test router. A non-empty
// token rides as the session cookie.
func DoRequest(r *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// DoMultipart executes a multipart upload against the test router.
func DoMultipart(t *testing.T, r *gin.Engine, method, path, filename, contentType, content, token string) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	io.Copy(part, strings.NewReader(content))
	writer.Close()

	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the envelope body into a map.
func ParseResponse(w *httptest.ResponseRecorder) map[string]any {
	var result map[string]any
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// Envelope renders a backend success envelope around data, for fake backend
// servers.
func Envelope(data any) []byte {
	raw, _ := json.Marshal(map[string]any{
		"isSuccess": true,
		"code":      "OK",
		"message":   "success",
		"data":      data,
	})
	return raw
}

// ErrorEnvelope renders a backend failure envelope.
func ErrorEnvelope(code, message string, errors any) []byte {
	raw, _ := json.Marshal(map[string]any{
		"isSuccess": false,
		"code":      code,
		"message":   message,
		"data":      nil,
		"errors":    errors,
	})
	return raw
}

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// sessionCookieName is the cookie the inventory backend issues on login.
const sessionCookieName = "SESSION"

// =============================================================================
// Client — base client for the remote inventory API
// Handles the uniform {isSuccess, code, message, data} envelope, typed errors
// and session-cookie forwarding. Shared by the per-resource method files.
// =============================================================================

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an inventory API client. baseURL has no trailing slash.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type sessionKey struct{}

// WithSession attaches the backend session token to the context so requests
// made on behalf of a logged-in user carry their cookie.
func WithSession(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionKey{}, token)
}

func sessionFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionKey{}).(string); ok {
		return v
	}
	return ""
}

// envelope is the uniform response wrapper every backend endpoint returns.
type envelope struct {
	IsSuccess bool            `json:"isSuccess"`
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Errors    FieldErrors     `json:"errors,omitempty"`
}

// Result carries the success metadata of an envelope, used for toasts.
type Result struct {
	Code    string
	Message string
}

// FieldErrors maps a field name to its ordered validation messages.
// Only the first message per field is shown to the user.
type FieldErrors map[string][]string

// First returns the first message for a field, or "".
func (fe FieldErrors) First(field string) string {
	if msgs, ok := fe[field]; ok && len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// APIError is a non-success response from the backend. Message prefers the
// server-provided envelope message, falling back to the HTTP status text.
type APIError struct {
	HTTPStatus int
	Code       string
	Message    string
	Fields     FieldErrors
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error [%d/%s]: %s", e.HTTPStatus, e.Code, e.Message)
}

// Page is the paginated list shape the backend returns under data.
type Page[T any] struct {
	Content       []T  `json:"content"`
	PageNo        int  `json:"pageNo"`
	PageSize      int  `json:"pageSize"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	HasNext       bool `json:"hasNext"`
	HasPrevious   bool `json:"hasPrevious"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

// do executes a JSON request against the backend and decodes the envelope.
// body is JSON-serialized when non-nil; out receives the envelope's data.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) (*Result, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := c.newRequest(ctx, method, path, query, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

// doMultipart executes a multipart/form-data request with a single file part.
func (c *Client) doMultipart(ctx context.Context, method, path string, query url.Values, fieldName, filename string, file io.Reader, out any) (*Result, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(fieldName, filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, query, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if token := sessionFromContext(ctx); token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out any) (*Result, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError(resp.StatusCode, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.IsSuccess {
		return nil, &APIError{
			HTTPStatus: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Message,
			Fields:     env.Errors,
		}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("decode envelope data: %w", err)
		}
	}

	return &Result{Code: env.Code, Message: env.Message}, nil
}

// apiError maps a non-2xx response to an APIError, preferring the JSON body's
// message and code over the HTTP status line.
func (c *Client) apiError(status int, body []byte) *APIError {
	apiErr := &APIError{
		HTTPStatus: status,
		Code:       fmt.Sprintf("%d", status),
		Message:    http.StatusText(status),
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			apiErr.Message = env.Message
		}
		if env.Code != "" {
			apiErr.Code = env.Code
		}
		apiErr.Fields = env.Errors
	}
	if c.logger != nil {
		c.logger.Warn("Backend request failed",
			zap.Int("status", status),
			zap.String("code", apiErr.Code),
			zap.String("message", apiErr.Message),
		)
	}
	return apiErr
}

// sessionFromCookies extracts the backend session token from login cookies.
func sessionFromCookies(cookies []*http.Cookie) string {
	for _, ck := range cookies {
		if ck.Name == sessionCookieName {
			return ck.Value
		}
	}
	return ""
}

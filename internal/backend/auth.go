package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Login authenticates against the backend and returns the issued session
// token together with the envelope metadata. The token comes from the
// backend's Set-Cookie header, not the envelope body.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, *Result, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return "", nil, fmt.Errorf("marshal login request: %w", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/auth/login", nil, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("request backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, c.apiError(resp.StatusCode, respBody)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if !env.IsSuccess {
		return "", nil, &APIError{
			HTTPStatus: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Message,
			Fields:     env.Errors,
		}
	}

	token := sessionFromCookies(resp.Cookies())
	if token == "" {
		return "", nil, &APIError{
			HTTPStatus: resp.StatusCode,
			Code:       env.Code,
			Message:    "로그인 세션이 발급되지 않았습니다.",
		}
	}

	return token, &Result{Code: env.Code, Message: env.Message}, nil
}

// Logout invalidates the backend session attached to the context.
func (c *Client) Logout(ctx context.Context) (*Result, error) {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

// UserInfo fetches the current user for the session attached to the context.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var user UserInfo
	if _, err := c.do(ctx, http.MethodGet, "/user/info", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*Result, error) {
	return c.do(ctx, http.MethodPost, "/user/signup", nil, req, nil)
}

package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/config"
	"github.com/railworks/railconsole/internal/console/session"
	"github.com/railworks/railconsole/internal/middleware"
	"go.uber.org/zap"
)

// AuthHandler owns login, logout and the per-session auth cache. The cache
// survives console restarts through its persistence layer, so a browser with
// a valid cookie does not have to log in again after a deploy.
type AuthHandler struct {
	client  *backend.Client
	persist session.Persistence
	cfg     config.SessionConfig
	logger  *zap.Logger

	mu     sync.Mutex
	stores map[string]*session.Store
}

func NewAuthHandler(client *backend.Client, persist session.Persistence, cfg config.SessionConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		client:  client,
		persist: persist,
		cfg:     cfg,
		logger:  logger,
		stores:  make(map[string]*session.Store),
	}
}

// store returns the auth cache for a console session, creating it on first
// use. Each browser session gets its own cache keyed by the token's jti.
func (h *AuthHandler) store(key string) *session.Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.stores[key]; ok {
		return s
	}
	s := session.NewStore(key, h.persist)
	h.stores[key] = s
	return s
}

func (h *AuthHandler) dropStore(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.stores, key)
}

// Login authenticates against the backend, caches the user, and mints the
// console session cookie carrying the backend session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req backend.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LoginID == "" || req.Password == "" {
		BadRequest(c, "아이디와 비밀번호를 모두 입력해주세요.")
		return
	}

	ctx := c.Request.Context()
	token, result, err := h.client.Login(ctx, req)
	if err != nil {
		BackendError(c, err, "로그인에 실패했습니다.")
		return
	}

	user, err := h.client.UserInfo(backend.WithSession(ctx, token))
	if err != nil {
		BackendError(c, err, "사용자 정보를 불러오지 못했습니다.")
		return
	}

	sessionID := uuid.New().String()
	signed, err := h.mintToken(sessionID, user, token)
	if err != nil {
		h.logger.Error("Failed to sign session token", zap.Error(err))
		Error(c, http.StatusInternalServerError, "INTERNAL", "세션 생성에 실패했습니다.")
		return
	}

	store := h.store(sessionID)
	if err := store.SetUser(ctx, &session.User{ID: user.ID, Username: user.Username, Role: user.Role}); err != nil {
		h.logger.Warn("Failed to persist session cache", zap.Error(err))
	}

	h.setCookie(c, signed, int(h.cfg.TTL.Seconds()))
	Success(c, result.Message, user)
}

// Logout ends the backend session, clears the cache, and expires the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.Claims(c)
	ctx := backendCtx(c)

	if _, err := h.client.Logout(ctx); err != nil {
		// The console session dies regardless of the backend's answer.
		h.logger.Warn("Backend logout failed", zap.Error(err))
	}

	if claims != nil {
		store := h.store(claims.ID)
		if err := store.Logout(ctx); err != nil {
			h.logger.Warn("Failed to clear session cache", zap.Error(err))
		}
		h.dropStore(claims.ID)
	}

	h.setCookie(c, "", -1)
	Success(c, "로그아웃되었습니다.", nil)
}

// Me returns the cached identity without a backend round-trip. The cache is
// hydrated from persistence on first touch; a cookie that outlived the
// persisted cache is reseeded from its own claims.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := middleware.Claims(c)
	store := h.store(claims.ID)
	ctx := c.Request.Context()

	if !store.Snapshot().Hydrated {
		if err := store.Hydrate(ctx); err != nil {
			h.logger.Warn("Session hydration failed", zap.Error(err))
			Error(c, http.StatusServiceUnavailable, "SESSION_LOADING", session.ErrNotHydrated.Error())
			return
		}
	}

	snap := store.Snapshot()
	if !snap.LoggedIn {
		user := &session.User{ID: claims.UserID, Username: claims.Username, Role: claims.Role}
		if err := store.SetUser(ctx, user); err != nil {
			h.logger.Warn("Failed to reseed session cache", zap.Error(err))
		}
		snap = store.Snapshot()
	}

	Success(c, "", gin.H{
		"user":     snap.User,
		"loggedIn": snap.LoggedIn,
	})
}

// Sync re-validates the cached identity against the backend. A dead backend
// session logs the console session out, mirroring what the backend believes.
func (h *AuthHandler) Sync(c *gin.Context) {
	claims := middleware.Claims(c)
	store := h.store(claims.ID)
	ctx := backendCtx(c)

	user, err := h.client.UserInfo(ctx)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			if lerr := store.Logout(ctx); lerr != nil {
				h.logger.Warn("Failed to clear session cache", zap.Error(lerr))
			}
			h.dropStore(claims.ID)
			h.setCookie(c, "", -1)
			Error(c, http.StatusUnauthorized, "AUTH_REQUIRED", session.ErrLoginRequired.Error())
			return
		}
		BackendError(c, err, "사용자 정보를 불러오지 못했습니다.")
		return
	}

	if err := store.SetUser(ctx, &session.User{ID: user.ID, Username: user.Username, Role: user.Role}); err != nil {
		h.logger.Warn("Failed to persist session cache", zap.Error(err))
	}
	Success(c, "", user)
}

// Access answers whether the cached identity may enter a view restricted to
// the given roles. The check runs on the cache, never on a backend call.
func (h *AuthHandler) Access(c *gin.Context) {
	claims := middleware.Claims(c)
	store := h.store(claims.ID)
	ctx := c.Request.Context()

	if !store.Snapshot().Hydrated {
		if err := store.Hydrate(ctx); err != nil {
			Error(c, http.StatusServiceUnavailable, "SESSION_LOADING", session.ErrNotHydrated.Error())
			return
		}
	}

	var roles []string
	for _, role := range strings.Split(c.Query("roles"), ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}

	switch err := store.Authorize(roles...); {
	case err == nil:
		Success(c, "", gin.H{"allowed": true})
	case errors.Is(err, session.ErrLoginRequired):
		Error(c, http.StatusUnauthorized, "AUTH_REQUIRED", err.Error())
	case errors.Is(err, session.ErrForbidden):
		Error(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	default:
		Error(c, http.StatusServiceUnavailable, "SESSION_LOADING", err.Error())
	}
}

// Signup proxies account creation.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req backend.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LoginID == "" || req.Password == "" || req.Username == "" {
		BadRequest(c, "가입 정보를 모두 입력해주세요.")
		return
	}

	result, err := h.client.Signup(c.Request.Context(), req)
	if err != nil {
		BackendError(c, err, "회원가입에 실패했습니다.")
		return
	}
	Success(c, result.Message, nil)
}

func (h *AuthHandler) mintToken(sessionID string, user *backend.UserInfo, backendSession string) (string, error) {
	now := time.Now()
	claims := &middleware.SessionClaims{
		UserID:         user.ID,
		Username:       user.Username,
		Role:           user.Role,
		BackendSession: backendSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    h.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.cfg.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.cfg.Secret))
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, value, maxAge, "/", "", h.cfg.Secure, true)
}

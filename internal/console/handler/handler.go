package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/config"
	"github.com/railworks/railconsole/internal/console/session"
	"github.com/railworks/railconsole/internal/console/wizard"
	"github.com/railworks/railconsole/internal/middleware"
	"go.uber.org/zap"
)

// Handlers is the console's handler set.
type Handlers struct {
	Auth     *AuthHandler
	Project  *ProjectHandler
	Rail     *RailHandler
	Wizard   *WizardHandler
	Material *MaterialHandler
	File     *FileHandler
}

// NewHandlers wires the handler set to the backend client and stores.
func NewHandlers(client *backend.Client, drafts wizard.DraftStore, sessions session.Persistence, cfg *config.Config, logger *zap.Logger) *Handlers {
	return &Handlers{
		Auth:     NewAuthHandler(client, sessions, cfg.Session, logger),
		Project:  NewProjectHandler(client),
		Rail:     NewRailHandler(client),
		Wizard:   NewWizardHandler(client, drafts),
		Material: NewMaterialHandler(client),
		File:     NewFileHandler(client, cfg.Upload),
	}
}

// Response is the console's envelope; it mirrors the backend's shape so the
// browser handles both identically.
type Response struct {
	IsSuccess bool   `json:"isSuccess"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
	Errors    any    `json:"errors,omitempty"`
}

// Success writes a 200 envelope.
func Success(c *gin.Context, message string, data any) {
	if message == "" {
		message = "success"
	}
	c.JSON(http.StatusOK, Response{
		IsSuccess: true,
		Code:      "OK",
		Message:   message,
		Data:      data,
	})
}

// Error writes a failure envelope.
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		IsSuccess: false,
		Code:      code,
		Message:   message,
	})
}

// BadRequest writes a 400 envelope.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// FieldError writes a 400 envelope carrying field-scoped messages that the
// browser renders next to the offending inputs.
func FieldError(c *gin.Context, message string, fields any) {
	c.JSON(http.StatusBadRequest, Response{
		IsSuccess: false,
		Code:      "VALIDATION",
		Message:   message,
		Errors:    fields,
	})
}

// BackendError translates a backend client failure into the console
// envelope. APIError keeps its status, code, message and field errors;
// anything else (connectivity, parse failure) maps to the generic fallback.
func BackendError(c *gin.Context, err error, fallback string) {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatus
		// A 2xx envelope with isSuccess=false is still a client-visible failure.
		if status < http.StatusBadRequest {
			status = http.StatusBadRequest
		}
		c.JSON(status, Response{
			IsSuccess: false,
			Code:      apiErr.Code,
			Message:   apiErr.Message,
			Errors:    fieldsOrNil(apiErr.Fields),
		})
		return
	}
	Error(c, http.StatusBadGateway, "BACKEND_UNAVAILABLE", fallback)
}

func fieldsOrNil(fields backend.FieldErrors) any {
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// backendCtx attaches the logged-in user's backend session to the context
// so proxied calls run with their cookie.
func backendCtx(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if claims := middleware.Claims(c); claims != nil && claims.BackendSession != "" {
		ctx = backend.WithSession(ctx, claims.BackendSession)
	}
	return ctx
}

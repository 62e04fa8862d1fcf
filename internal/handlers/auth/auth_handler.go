// internal/handlers/auth/auth_handler.go
package auth

import (
	"errors"
	"io"
	"net/http"

	"authbridge/internal/domain/auth"
	"authbridge/internal/middleware"
	xerrors "authbridge/internal/pkg/errors"
	"authbridge/internal/pkg/response"
	authUsecase "authbridge/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// navigation records where a controller sent the caller during one request.
type navigation struct {
	Path    string `json:"path"`
	Replace bool   `json:"replace"`
}

type recorder struct {
	last *navigation
}

func (r *recorder) Navigate(path string, replace bool) {
	r.last = &navigation{Path: path, Replace: replace}
}

// SessionResponse is the payload of every session endpoint.
type SessionResponse struct {
	Session  auth.Session `json:"session"`
	Redirect *navigation  `json:"redirect,omitempty"`
}

type RememberRedirectRequest struct {
	Path string `json:"path" binding:"required"`
}

// AuthHandler exposes a device's session over plain HTTP. Each request drives
// a short-lived controller over the device-scoped store.
type AuthHandler struct {
	sessions *authUsecase.Factory
	logger   *zap.Logger
}

func NewAuthHandler(sessions *authUsecase.Factory, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		logger:   logger,
	}
}

func (h *AuthHandler) controller(c *gin.Context) (*authUsecase.Controller, *recorder, bool) {
	nav := &recorder{}
	ctrl, err := h.sessions.New(middleware.MustGetDeviceID(c), nav)
	if err != nil {
		h.logger.Error("failed to build session controller", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "session unavailable", err)
		return nil, nil, false
	}
	return ctrl, nav, true
}

// GetSession restores and returns the caller's session.
func (h *AuthHandler) GetSession(c *gin.Context) {
	ctrl, nav, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.Bootstrap(c.Request.Context())

	response.Success(c, http.StatusOK, "session", SessionResponse{Session: ctrl.Snapshot(), Redirect: nav.last})
}

// Login runs a credentials or OTP login for the caller's device.
func (h *AuthHandler) Login(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	payload, err := auth.DecodeLoginPayload(body)
	if err != nil {
		response.Error(c, statusFor(err), "invalid request", err)
		return
	}

	ctrl, nav, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.Login(c.Request.Context(), payload)

	snapshot := ctrl.Snapshot()
	if snapshot.LastError != nil {
		h.logger.Info("login failed",
			zap.String("method", string(payload.Method())),
			zap.String("kind", string(snapshot.LastError.Kind)),
		)
		response.Error(c, statusFor(snapshot.LastError), snapshot.LastError.Message, nil, SessionResponse{Session: snapshot})
		return
	}

	response.Success(c, http.StatusOK, "login successful", SessionResponse{Session: snapshot, Redirect: nav.last})
}

// Logout ends the caller's session. It always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctrl, nav, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.Logout(c.Request.Context())

	response.Success(c, http.StatusOK, "logged out", SessionResponse{Session: ctrl.Snapshot(), Redirect: nav.last})
}

// RememberRedirect stashes the page to return to after the next login.
func (h *AuthHandler) RememberRedirect(c *gin.Context) {
	var req RememberRedirectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}
	h.Remember(c, req.Path)
	response.Success(c, http.StatusOK, "redirect saved", nil)
}

// Remember stashes target for the caller's device. It matches the guard
// middleware's remember hook.
func (h *AuthHandler) Remember(c *gin.Context, target string) {
	ctrl, err := h.sessions.New(middleware.MustGetDeviceID(c), nil)
	if err != nil {
		h.logger.Warn("failed to stash redirect", zap.Error(err))
		return
	}
	ctrl.RememberRedirect(c.Request.Context(), target)
}

func statusFor(err error) int {
	var e *xerrors.Error
	if !errors.As(err, &e) {
		return http.StatusBadRequest
	}
	switch e.Kind {
	case xerrors.KindValidation, xerrors.KindInvalidMethod:
		return http.StatusBadRequest
	case xerrors.KindRequest:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadGateway
	case xerrors.KindConfig:
		return http.StatusInternalServerError
	default:
		return http.StatusUnauthorized
	}
}

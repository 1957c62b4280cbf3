package handler

import (
	"context"
	"net/http"

	"flowchart/internal/service"

	"go.uber.org/zap"
)

type contextKey string

const userEmailKey contextKey = "user_email"

// UserEmail returns the authenticated email stored by RequireAuth
func UserEmail(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey).(string)
	return email
}

// userField names the caller in mutation logs, empty when auth is off
func userField(r *http.Request) zap.Field {
	return zap.String("user", UserEmail(r.Context()))
}

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token string `json:"token"`
}

// AuthHandler handles login and token checks
type AuthHandler struct {
	auth    *service.AuthService
	metrics *Metrics
	logger  *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *service.AuthService, metrics *Metrics, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{auth: auth, metrics: metrics, logger: logger}
}

// Login exchanges credentials for a token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if h.metrics != nil {
			h.metrics.LoginFailures.Inc()
		}
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("Login failed", zap.Error(err))
		} else {
			h.logger.Info("Login rejected", zap.String("email", req.Email))
		}
		writeError(w, "Login failed", err.Error(), status, h.logger)
		return
	}

	h.logger.Info("User logged in", zap.String("email", req.Email))
	writeJSON(w, LoginResponse{Token: token}, http.StatusOK, h.logger)
}

// RequireAuth rejects requests without a valid bearer token
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email, err := h.auth.Verify(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, "Unauthorized", err.Error(), http.StatusUnauthorized, h.logger)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userEmailKey, email)))
	})
}

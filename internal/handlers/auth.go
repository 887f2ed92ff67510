// Package handlers contains the HTTP handlers that sit outside the
// websocket protocol: credential exchange and health.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/wirechat/wirechat/internal/auth"
)

// LoginRequest is the credential exchange payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token and its expiry in unix seconds.
type LoginResponse struct {
	Token string `json:"token"`
	Exp   int64  `json:"exp"`
}

// AuthHandler exchanges credentials for identity tokens.
type AuthHandler struct {
	creds         auth.CredentialStore
	authenticator *auth.Authenticator
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewAuthHandler creates the login handler with its dependencies.
func NewAuthHandler(creds auth.CredentialStore, authenticator *auth.Authenticator, logger *slog.Logger) *AuthHandler {
	validate := validator.New()
	// The username shape is shared with the auth package so the token
	// subject can never carry characters the presence keys cannot.
	if err := validate.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return auth.ValidUsername(fl.Field().String())
	}); err != nil {
		logger.Error("Failed to register username validation", "error", err)
	}
	return &AuthHandler{
		creds:         creds,
		authenticator: authenticator,
		validate:      validate,
		logger:        logger.With("component", "auth_handler"),
	}
}

// LoginPost handles POST /login. On success it returns a signed token;
// bad credentials and malformed usernames issue no token.
func (h *AuthHandler) LoginPost(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "username must be 3-24 letters, digits, '_' or '-'")
	}

	if err := h.creds.Authenticate(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "bad credentials")
		}
		h.logger.Error("Credential check failed", "username", req.Username, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
	}

	token, exp, err := h.authenticator.Issue(req.Username)
	if err != nil {
		h.logger.Error("Failed to issue token", "username", req.Username, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "login unavailable")
	}

	h.logger.Info("Issued token", "username", req.Username, "exp", exp.Unix())
	return c.JSON(http.StatusOK, LoginResponse{Token: token, Exp: exp.Unix()})
}

package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/anmolarora1/em/application/ports"
	"github.com/anmolarora1/em/application/syncengine"
	"github.com/anmolarora1/em/pkg/auth"
	"github.com/anmolarora1/em/pkg/common"
	pkgerrors "github.com/anmolarora1/em/pkg/errors"
)

// SessionService starts and ends the authenticated sync session
type SessionService interface {
	Login(ctx context.Context, userID string) error
	Logout(ctx context.Context) error
	UserID() string
}

// TokenIssuer signs session tokens
type TokenIssuer interface {
	GenerateToken(userID, email, clientID string) (string, error)
}

// NotificationFeed lists recent user-visible notifications
type NotificationFeed interface {
	Recent() []ports.Notification
	Dismiss()
}

// SessionHandler handles login, logout and the notification banner
type SessionHandler struct {
	service  SessionService
	issuer   TokenIssuer
	feed     NotificationFeed
	clientID string
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewSessionHandler creates a session handler. issuer may be nil, in which case no tokens
// are issued locally.
func NewSessionHandler(
	service SessionService,
	issuer TokenIssuer,
	feed NotificationFeed,
	clientID string,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		service:  service,
		issuer:   issuer,
		feed:     feed,
		clientID: clientID,
		errors:   errorHandler,
		logger:   logger,
	}
}

// TokenRequest asks for a development session token
type TokenRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
	Email  string `json:"email,omitempty" validate:"omitempty,email"`
}

// SessionResponse describes the current session
type SessionResponse struct {
	UserID        string `json:"userId,omitempty"`
	ClientID      string `json:"clientId"`
	Authenticated bool   `json:"authenticated"`
	Token         string `json:"token,omitempty"`
}

// IssueToken handles POST /session/token
func (h *SessionHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.issuer == nil {
		h.errors.Handle(w, r, pkgerrors.NewForbiddenError("token issuing is disabled"))
		return
	}
	var req TokenRequest
	if err := common.ParseJSONBody(r, &req, 1<<16); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("Invalid request body: "+err.Error()))
		return
	}
	if err := validateRequest(req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	token, err := h.issuer.GenerateToken(req.UserID, req.Email, h.clientID)
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("failed to generate token").WithCause(err))
		return
	}
	common.Respond(w, http.StatusCreated, SessionResponse{
		UserID:   req.UserID,
		ClientID: h.clientID,
		Token:    token,
	})
}

// Login handles POST /session/login. The user comes from the validated bearer token.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewUnauthorizedError("Unauthorized"))
		return
	}

	if err := h.service.Login(r.Context(), user.UserID); err != nil {
		switch {
		case errors.Is(err, syncengine.ErrAlreadyLoggedIn):
			err = pkgerrors.NewConflictError("a session is already active; log out first")
		case errors.Is(err, syncengine.ErrRemoteDisabled):
			err = pkgerrors.NewUnavailableError("remote store")
		}
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Session started", zap.String("userID", user.UserID))
	common.Respond(w, http.StatusOK, SessionResponse{
		UserID:        user.UserID,
		ClientID:      h.clientID,
		Authenticated: true,
	})
}

// Logout handles POST /session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context()); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.logger.Info("Session ended")
	common.Respond(w, http.StatusOK, SessionResponse{ClientID: h.clientID})
}

// GetSession handles GET /session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := h.service.UserID()
	common.Respond(w, http.StatusOK, SessionResponse{
		UserID:        userID,
		ClientID:      h.clientID,
		Authenticated: userID != "",
	})
}

// ListNotifications handles GET /notifications
func (h *SessionHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications := h.feed.Recent()
	if notifications == nil {
		notifications = []ports.Notification{}
	}
	common.Respond(w, http.StatusOK, notifications)
}

// DismissNotifications handles DELETE /notifications
func (h *SessionHandler) DismissNotifications(w http.ResponseWriter, r *http.Request) {
	h.feed.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

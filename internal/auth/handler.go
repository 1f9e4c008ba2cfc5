package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/station2100/station/internal/audit"
	"github.com/station2100/station/internal/platform/httpx"
	"github.com/station2100/station/internal/rbac"
	"github.com/station2100/station/internal/shared"
)

// Handler wires HTTP endpoints for session lifecycle.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	audit          rbac.AuditRecorder
	validator      *validator.Validate
	devLogin       bool
}

// NewHandler constructs a Handler instance. devLogin enables the
// password-less development session endpoint.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, recorder rbac.AuditRecorder, devLogin bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		audit:          recorder,
		validator:      validator.New(),
		devLogin:       devLogin,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h.devLogin {
		r.Post("/dev-session", h.handleDevSession)
	}
	r.Post("/logout", h.handleLogout)
}

type devSessionRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handleDevSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during dev login", slog.Any("error", shared.ErrNoSession))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	var req devSessionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a valid email is required")
		return
	}
	user, err := h.service.ResolveSessionUser(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}
		h.logger.Error("dev session lookup", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess.Renew()
	sess.SetUser(user.ID.String())
	sess.Set(shared.SessionKeyEmail, user.Email)
	sess.Set(shared.SessionKeyStartedAt, time.Now().UTC().Format(time.RFC3339))
	h.record(r, user.ID, audit.ActionSessionStarted, audit.Detail{"email": user.Email, "method": "dev"})

	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":      user,
		"expiresAt": time.Now().Add(h.sessionManager.TTL()).UTC(),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if id, ok := shared.SessionUserID(r.Context()); ok {
		h.record(r, id, audit.ActionSessionEnded, audit.Detail{"email": sess.Get(shared.SessionKeyEmail)})
	}
	h.sessionManager.Destroy(sess)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) record(r *http.Request, userID uuid.UUID, action string, detail audit.Detail) {
	if h.audit == nil {
		return
	}
	h.audit.Record(r.Context(), &userID, action, audit.ModuleAuth, detail)
}

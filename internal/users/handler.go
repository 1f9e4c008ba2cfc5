package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/station2100/station/internal/platform/httpx"
	"github.com/station2100/station/internal/rbac"
	"github.com/station2100/station/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAdminManageUsers))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
		r.Post("/{userID}/activate", h.setActive(true))
		r.Post("/{userID}/deactivate", h.setActive(false))
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid userID")
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, "get user failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "userID"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid userID")
			return
		}
		var actorID uuid.UUID
		if actor, ok := rbac.ActorFromContext(r.Context()); ok {
			actorID = actor.ID
		}
		user, err := h.service.SetActive(r.Context(), actorID, id, active)
		if err != nil {
			h.respondError(w, "set user active failed", err)
			return
		}
		httpx.JSON(w, http.StatusOK, user)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrSelfDeactivation) {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

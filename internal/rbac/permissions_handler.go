package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/station2100/station/internal/audit"
	"github.com/station2100/station/internal/platform/httpx"
	"github.com/station2100/station/internal/shared"
)

// PermissionsHandler serves permission administration, user grants and the
// caller's own permission view.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	engine  *Engine
	audit   AuditRecorder
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, engine *Engine, recorder AuditRecorder, rbac Middleware) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, service: service, engine: engine, audit: recorder, rbac: rbac}
}

// MountRoutes registers permission catalogue routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAdminManagePermissions))
		r.Get("/", h.listPermissions)
		r.Get("/groups", h.listGroups)
		r.Post("/", h.createPermission)
		r.Get("/{permissionID}", h.getPermission)
		r.Patch("/{permissionID}", h.updatePermission)
		r.Delete("/{permissionID}", h.deletePermission)
	})
}

// MountUserRoutes registers grant routes under a {userID} path parameter.
func (h *PermissionsHandler) MountUserRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermAdminManagePermissions))
		r.Get("/", h.listUserGrants)
		r.Post("/", h.grantPermission)
		r.Delete("/{permissionID}", h.revokePermission)
	})
}

// MountSelfRoutes registers the caller's own permission routes.
func (h *PermissionsHandler) MountSelfRoutes(r chi.Router) {
	r.Get("/permissions", h.myPermissions)
	r.Get("/permissions/check", h.checkPermission)
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	module := strings.TrimSpace(r.URL.Query().Get("module"))
	perms, err := h.service.ListPermissions(r.Context(), module)
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	h.record(r, audit.ActionPermissionList, audit.Detail{"module": module, "count": len(perms)})
	if grouped, _ := strconv.ParseBool(r.URL.Query().Get("grouped")); grouped {
		httpx.JSON(w, http.StatusOK, map[string]any{"groups": GroupPermissions(perms)})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *PermissionsHandler) listGroups(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context(), "")
	if err != nil {
		h.fail(w, "list permission groups", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": GroupPermissions(perms)})
}

func (h *PermissionsHandler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "permissionID")
	if !ok {
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		h.fail(w, "get permission", err)
		return
	}
	h.record(r, audit.ActionPermissionView, audit.Detail{"permissionId": perm.ID.String(), "key": perm.Key})
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) createPermission(w http.ResponseWriter, r *http.Request) {
	var in PermissionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), callerID(r), in)
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, perm)
}

func (h *PermissionsHandler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "permissionID")
	if !ok {
		return
	}
	var patch PermissionPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	perm, err := h.service.UpdatePermission(r.Context(), callerID(r), id, patch)
	if err != nil {
		h.fail(w, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "permissionID")
	if !ok {
		return
	}
	perm, err := h.service.DeactivatePermission(r.Context(), callerID(r), id)
	if err != nil {
		h.fail(w, "deactivate permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perm)
}

func (h *PermissionsHandler) listUserGrants(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	grants, err := h.service.ListUserGrants(r.Context(), userID)
	if err != nil {
		h.fail(w, "list user grants", err)
		return
	}
	h.record(r, audit.ActionUserPermissionList, audit.Detail{"userId": userID.String(), "count": len(grants)})
	httpx.JSON(w, http.StatusOK, map[string]any{"grants": grants})
}

func (h *PermissionsHandler) grantPermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	var ref PermissionRef
	if err := httpx.DecodeJSON(r, &ref); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	created, err := h.service.GrantPermission(r.Context(), callerID(r), userID, ref)
	if err != nil {
		h.fail(w, "grant permission", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"created": created})
}

func (h *PermissionsHandler) revokePermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "userID")
	if !ok {
		return
	}
	permissionID, ok := pathUUID(w, r, "permissionID")
	if !ok {
		return
	}
	removed, err := h.service.RevokePermission(r.Context(), callerID(r), userID, permissionID)
	if err != nil {
		h.fail(w, "revoke permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":        actor,
		"permissions": h.engine.ListPermissions(r.Context(), &actor),
	})
}

func (h *PermissionsHandler) checkPermission(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "key is required")
		return
	}
	actor := actorPtr(r.Context())
	decisions := make([]Decision, 0, len(keys))
	for _, key := range keys {
		decisions = append(decisions, h.engine.Decide(r.Context(), actor, key))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"decisions": decisions,
		"any":       h.engine.CanAny(r.Context(), actor, keys),
		"all":       h.engine.CanAll(r.Context(), actor, keys),
	})
}

func (h *PermissionsHandler) record(r *http.Request, action string, detail audit.Detail) {
	if h.audit == nil {
		return
	}
	var actor *uuid.UUID
	if id := callerID(r); id != uuid.Nil {
		actor = &id
	}
	h.audit.Record(r.Context(), actor, action, audit.ModuleAdmin, detail)
}

func (h *PermissionsHandler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrDuplicateKey) && !errors.Is(err, ErrInvalidInput) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func callerID(r *http.Request) uuid.UUID {
	if actor, ok := ActorFromContext(r.Context()); ok {
		return actor.ID
	}
	return uuid.Nil
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+param)
		return uuid.Nil, false
	}
	return id, true
}

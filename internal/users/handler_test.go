package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/station2100/station/internal/rbac"
	"github.com/station2100/station/internal/shared"
)

type grantAll bool

func (g grantAll) FindPermissionByKey(ctx context.Context, key string) (rbac.Permission, error) {
	return rbac.Permission{Key: key, Active: true}, nil
}

func (g grantAll) ListGrantedPermissionKeys(ctx context.Context, actorID uuid.UUID) ([]string, error) {
	if g {
		return []string{shared.PermAdminManageUsers}, nil
	}
	return []string{}, nil
}

func (g grantAll) HasGrant(ctx context.Context, actorID uuid.UUID, key string) (bool, error) {
	return bool(g) && key == shared.PermAdminManageUsers, nil
}

func newUsersRouter(t *testing.T, repo *memRepo, granted bool, actor rbac.Actor) http.Handler {
	t.Helper()
	mw := rbac.Middleware{Engine: rbac.NewEngine(grantAll(granted), nil, nil)}
	h := NewHandler(nil, NewService(repo, &spyRecorder{}, nil), mw)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(rbac.ContextWithActor(req.Context(), actor)))
		})
	})
	r.Route("/admin/users", h.MountRoutes)
	return r
}

func TestUsersHandler(t *testing.T) {
	admin := newUser("admin@station.test", false)
	tech := newUser("tech@station.test", false)
	repo := newMemRepo(admin, tech)
	router := newUsersRouter(t, repo, true, admin.Actor())

	do := func(method, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec
	}

	rec := do(http.MethodGet, "/admin/users/")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Users []User `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Users, 2)
	assert.Equal(t, admin.Email, list.Users[0].Email)

	rec = do(http.MethodGet, "/admin/users/"+tech.ID.String())
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(http.MethodPost, "/admin/users/"+tech.ID.String()+"/deactivate")
	require.Equal(t, http.StatusOK, rec.Code)
	var updated User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.False(t, updated.IsActive)

	assert.Equal(t, http.StatusBadRequest, do(http.MethodPost, "/admin/users/"+admin.ID.String()+"/deactivate").Code)
	assert.Equal(t, http.StatusNotFound, do(http.MethodGet, "/admin/users/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/admin/users/not-a-uuid").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/admin/users/"+tech.ID.String()+"/activate").Code)
}

func TestUsersHandlerForbidden(t *testing.T) {
	clerk := newUser("clerk@station.test", false)
	router := newUsersRouter(t, newMemRepo(clerk), false, clerk.Actor())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/users/", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

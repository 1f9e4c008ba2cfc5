package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "station_session", "secret", 30*time.Minute, true), mr
}

func requestWithCookie(id string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != "" {
		req.AddCookie(&http.Cookie{Name: "station_session", Value: id})
	}
	return req
}

func TestAnonymousSessionIsNotPersisted(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()
	req := requestWithCookie("")
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.True(t, sess.IsNew())

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	assert.Empty(t, mr.Keys())
	assert.Empty(t, rec.Result().Cookies())
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	req := requestWithCookie("")
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser(userID.String())
	sess.Set(SessionKeyEmail, "tech@station.test")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, sess))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sess.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.True(t, mr.Exists("station:session:"+sess.ID))
	assert.Equal(t, 30*time.Minute, mr.TTL("station:session:"+sess.ID))

	loaded, err := sm.Load(ctx, requestWithCookie(sess.ID))
	require.NoError(t, err)
	assert.False(t, loaded.IsNew())
	assert.Equal(t, userID.String(), loaded.User())
	assert.Equal(t, "tech@station.test", loaded.Get(SessionKeyEmail))

	id, ok := SessionUserID(ContextWithSession(ctx, loaded))
	require.True(t, ok)
	assert.Equal(t, userID, id)
}

func TestSessionRenewDropsOldKey(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	req := requestWithCookie("")
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser(uuid.NewString())
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, sess))
	oldID := sess.ID

	req = requestWithCookie(oldID)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	loaded.Renew()
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, loaded))

	assert.NotEqual(t, oldID, loaded.ID)
	assert.False(t, mr.Exists("station:session:"+oldID))
	assert.True(t, mr.Exists("station:session:"+loaded.ID))
}

func TestSessionDestroy(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	req := requestWithCookie("")
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sess.SetUser(uuid.NewString())
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, sess))

	req = requestWithCookie(sess.ID)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	sm.Destroy(loaded)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, req, loaded))

	assert.Empty(t, mr.Keys())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestSessionUserIDRejectsMalformed(t *testing.T) {
	sm := NewSessionManager(nil, "station_session", "secret", time.Minute, false)
	sess, err := sm.Load(context.Background(), requestWithCookie(""))
	require.NoError(t, err)

	_, ok := SessionUserID(context.Background())
	assert.False(t, ok)
	_, ok = SessionUserID(ContextWithSession(context.Background(), sess))
	assert.False(t, ok)
	sess.SetUser("42")
	_, ok = SessionUserID(ContextWithSession(context.Background(), sess))
	assert.False(t, ok)
}

func TestCatalogKeysAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, p := range Catalog() {
		assert.False(t, seen[p.Key], p.Key)
		seen[p.Key] = true
		assert.NotEmpty(t, p.Description)
		assert.NotEmpty(t, p.Module)
	}
	assert.True(t, seen[PermAdminManagePermissions])
}

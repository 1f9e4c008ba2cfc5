package rbac

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineFixture(t *testing.T) (*Engine, *memStore, Actor) {
	t.Helper()
	store := newMemStore()
	view := store.addPermission("inventory.view", "inventory", true)
	store.addPermission("inventory.adjust", "inventory", true)
	legacy := store.addPermission("inventory.legacy", "inventory", false)
	actor := Actor{ID: uuid.New(), Active: true}
	store.grant(actor.ID, view)
	store.grant(actor.ID, legacy)
	return NewEngine(store, nil, nil), store, actor
}

func TestEngineCan(t *testing.T) {
	engine, _, actor := engineFixture(t)
	ctx := context.Background()

	assert.True(t, engine.Can(ctx, &actor, "inventory.view"))
	assert.False(t, engine.Can(ctx, &actor, "inventory.adjust"), "not granted")
	assert.False(t, engine.Can(ctx, &actor, "inventory.legacy"), "granted but inactive")
	assert.False(t, engine.Can(ctx, &actor, "nope.nothing"), "unknown key")
	assert.False(t, engine.Can(ctx, &actor, "Inventory.View"), "keys are case-sensitive")
	assert.False(t, engine.Can(ctx, &actor, ""), "empty key")
}

func TestEngineDeniesMissingOrInactiveActor(t *testing.T) {
	engine, _, actor := engineFixture(t)
	ctx := context.Background()

	assert.False(t, engine.Can(ctx, nil, "inventory.view"))

	inactive := actor
	inactive.Active = false
	assert.False(t, engine.Can(ctx, &inactive, "inventory.view"))

	inactiveAdmin := Actor{ID: uuid.New(), Active: false, SuperUser: true}
	assert.False(t, engine.Can(ctx, &inactiveAdmin, "inventory.view"))
	assert.False(t, engine.CanAny(ctx, &inactiveAdmin, []string{"inventory.view"}))
	assert.Empty(t, engine.ListPermissions(ctx, &inactiveAdmin))
}

func TestEngineSuperUserBypass(t *testing.T) {
	engine, _, _ := engineFixture(t)
	ctx := context.Background()
	admin := Actor{ID: uuid.New(), Active: true, SuperUser: true}

	assert.True(t, engine.Can(ctx, &admin, "inventory.view"))
	assert.True(t, engine.Can(ctx, &admin, "does.not.exist"))
	assert.True(t, engine.Can(ctx, &admin, ""))
	assert.True(t, engine.CanAll(ctx, &admin, []string{"a.b", "c.d"}))

	// no implicit expansion for super-users
	perms := engine.ListPermissions(ctx, &admin)
	require.NotNil(t, perms)
	assert.Empty(t, perms)
}

func TestEngineCanAnyCanAll(t *testing.T) {
	engine, _, actor := engineFixture(t)
	ctx := context.Background()
	admin := Actor{ID: uuid.New(), Active: true, SuperUser: true}

	assert.True(t, engine.CanAny(ctx, &actor, []string{"inventory.adjust", "inventory.view"}))
	assert.False(t, engine.CanAny(ctx, &actor, []string{"inventory.adjust", "jobcard.view"}))
	assert.True(t, engine.CanAll(ctx, &actor, []string{"inventory.view", "inventory.view"}))
	assert.False(t, engine.CanAll(ctx, &actor, []string{"inventory.view", "inventory.adjust"}))

	t.Run("empty any is denied for everyone", func(t *testing.T) {
		assert.False(t, engine.CanAny(ctx, &actor, nil))
		assert.False(t, engine.CanAny(ctx, &admin, []string{}))
		assert.False(t, engine.CanAny(ctx, nil, nil))
	})
	t.Run("empty all is allowed for everyone", func(t *testing.T) {
		assert.True(t, engine.CanAll(ctx, &actor, nil))
		assert.True(t, engine.CanAll(ctx, nil, []string{}))
		inactive := Actor{ID: uuid.New()}
		assert.True(t, engine.CanAll(ctx, &inactive, nil))
	})
}

func TestEngineListPermissions(t *testing.T) {
	engine, store, actor := engineFixture(t)
	ctx := context.Background()

	assert.Equal(t, []string{"inventory.view"}, engine.ListPermissions(ctx, &actor))
	assert.Equal(t, []string{}, engine.ListPermissions(ctx, nil))

	store.grant(actor.ID, store.addPermission("jobcard.view", "jobcard", true))
	assert.Equal(t, []string{"inventory.view", "jobcard.view"}, engine.ListPermissions(ctx, &actor))

	for _, key := range engine.ListPermissions(ctx, &actor) {
		assert.True(t, engine.Can(ctx, &actor, key), key)
	}
}

func TestEngineReflectsLatestState(t *testing.T) {
	engine, store, actor := engineFixture(t)
	ctx := context.Background()
	adjust, err := store.GetPermissionByKey(ctx, "inventory.adjust")
	require.NoError(t, err)

	assert.False(t, engine.Can(ctx, &actor, "inventory.adjust"))
	store.grant(actor.ID, adjust)
	assert.True(t, engine.Can(ctx, &actor, "inventory.adjust"))

	_, err = store.SetPermissionActive(ctx, adjust.ID, false)
	require.NoError(t, err)
	assert.False(t, engine.Can(ctx, &actor, "inventory.adjust"))
}

func TestEngineStoreFaultDenies(t *testing.T) {
	engine, store, actor := engineFixture(t)
	ctx := context.Background()
	store.err = errors.New("connection reset")

	assert.False(t, engine.Can(ctx, &actor, "inventory.view"))
	assert.False(t, engine.CanAny(ctx, &actor, []string{"inventory.view"}))
	assert.Equal(t, []string{}, engine.ListPermissions(ctx, &actor))
	assert.Equal(t, ReasonStoreFault, engine.Decide(ctx, &actor, "inventory.view").Reason)

	admin := Actor{ID: uuid.New(), Active: true, SuperUser: true}
	assert.True(t, engine.Can(ctx, &admin, "inventory.view"), "super-user does not touch the store")
}

func TestEngineDecideReasons(t *testing.T) {
	engine, _, actor := engineFixture(t)
	ctx := context.Background()
	admin := Actor{ID: uuid.New(), Active: true, SuperUser: true}
	inactive := Actor{ID: uuid.New()}

	cases := []struct {
		name    string
		actor   *Actor
		key     string
		allowed bool
		reason  Reason
	}{
		{"no actor", nil, "inventory.view", false, ReasonNoActor},
		{"inactive actor", &inactive, "inventory.view", false, ReasonInactiveActor},
		{"super user", &admin, "anything.at_all", true, ReasonSuperUser},
		{"granted", &actor, "inventory.view", true, ReasonGranted},
		{"not granted", &actor, "inventory.adjust", false, ReasonNotGranted},
		{"unknown", &actor, "nope.nothing", false, ReasonUnknownPermission},
		{"inactive permission", &actor, "inventory.legacy", false, ReasonUnknownPermission},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := engine.Decide(ctx, tc.actor, tc.key)
			assert.Equal(t, tc.key, d.Key)
			assert.Equal(t, tc.allowed, d.Allowed)
			assert.Equal(t, tc.reason, d.Reason)
			assert.Equal(t, d.Allowed, engine.Can(ctx, tc.actor, tc.key))
		})
	}
}

func TestEngineObserver(t *testing.T) {
	store := newMemStore()
	observer := &countingObserver{}
	engine := NewEngine(store, nil, observer)
	ctx := context.Background()
	actor := Actor{ID: uuid.New(), Active: true}

	engine.Can(ctx, nil, "a.b")
	engine.Can(ctx, &actor, "a.b")
	engine.CanAll(ctx, &actor, []string{"a.b", "c.d"})

	assert.Equal(t, 1, observer.calls[string(ReasonNoActor)])
	// CanAll stops at the first denial
	assert.Equal(t, 2, observer.calls[string(ReasonNotGranted)])
}

func TestEngineConcreteScenarios(t *testing.T) {
	store := newMemStore()
	view := store.addPermission("inventory.view", "inventory", true)
	store.addPermission("inventory.edit", "inventory", true)
	engine := NewEngine(store, nil, nil)
	ctx := context.Background()

	u := Actor{ID: uuid.New(), Active: true}
	store.grant(u.ID, view)
	assert.True(t, engine.Can(ctx, &u, "inventory.view"))
	assert.False(t, engine.Can(ctx, &u, "inventory.edit"))
	assert.True(t, engine.CanAny(ctx, &u, []string{"inventory.edit", "inventory.view"}))
	assert.False(t, engine.CanAll(ctx, &u, []string{"inventory.edit", "inventory.view"}))

	s := Actor{ID: uuid.New(), Active: true, SuperUser: true}
	assert.True(t, engine.Can(ctx, &s, "anything.at.all"))
	assert.Equal(t, []string{}, engine.ListPermissions(ctx, &s))

	// deactivation in the store alone is enough, grants stay untouched
	store.inactive[u.ID] = true
	assert.False(t, engine.Can(ctx, &u, "inventory.view"))
	assert.Equal(t, []string{}, engine.ListPermissions(ctx, &u))

	u.Active = false
	assert.False(t, engine.Can(ctx, &u, "inventory.view"))
}

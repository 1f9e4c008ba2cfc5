package rbac

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/station2100/station/internal/audit"
)

// memStore is an in-memory Store and AdminRepository.
type memStore struct {
	mu       sync.Mutex
	perms    map[uuid.UUID]Permission
	grants   map[uuid.UUID]map[uuid.UUID]Grant
	inactive map[uuid.UUID]bool
	users    map[uuid.UUID]bool
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		perms:    make(map[uuid.UUID]Permission),
		grants:   make(map[uuid.UUID]map[uuid.UUID]Grant),
		inactive: make(map[uuid.UUID]bool),
		users:    make(map[uuid.UUID]bool),
	}
}

func (s *memStore) addPermission(key, module string, active bool) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	p := Permission{ID: uuid.New(), Key: key, Description: key, Module: module, Active: active, CreatedAt: now, UpdatedAt: now}
	s.perms[p.ID] = p
	return p
}

func (s *memStore) grant(actorID uuid.UUID, perm Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[actorID] = true
	if s.grants[actorID] == nil {
		s.grants[actorID] = make(map[uuid.UUID]Grant)
	}
	s.grants[actorID][perm.ID] = Grant{ActorID: actorID, PermissionID: perm.ID, GrantedAt: time.Now().UTC()}
}

func (s *memStore) byKey(key string) (Permission, bool) {
	for _, p := range s.perms {
		if p.Key == key {
			return p, true
		}
	}
	return Permission{}, false
}

func (s *memStore) FindPermissionByKey(ctx context.Context, key string) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Permission{}, s.err
	}
	p, ok := s.byKey(key)
	if !ok || !p.Active {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) ListGrantedPermissionKeys(ctx context.Context, actorID uuid.UUID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	keys := []string{}
	if s.inactive[actorID] {
		return keys, nil
	}
	for permID := range s.grants[actorID] {
		if p := s.perms[permID]; p.Active {
			keys = append(keys, p.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memStore) HasGrant(ctx context.Context, actorID uuid.UUID, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.inactive[actorID] {
		return false, nil
	}
	for permID := range s.grants[actorID] {
		if p := s.perms[permID]; p.Active && p.Key == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) ListPermissions(ctx context.Context, module string) ([]Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Permission, 0, len(s.perms))
	for _, p := range s.perms {
		if module == "" || p.Module == module {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *memStore) GetPermission(ctx context.Context, id uuid.UUID) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.perms[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) GetPermissionByKey(ctx context.Context, key string) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byKey(key)
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey(in.Key); ok {
		return Permission{}, ErrDuplicateKey
	}
	now := time.Now().UTC()
	p := Permission{ID: uuid.New(), Key: in.Key, Description: in.Description, Module: in.Module, Category: in.Category, Active: true, CreatedAt: now, UpdatedAt: now}
	s.perms[p.ID] = p
	return p, nil
}

func (s *memStore) UpdatePermission(ctx context.Context, id uuid.UUID, patch PermissionPatch) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.perms[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	if patch.Key != nil {
		if other, exists := s.byKey(*patch.Key); exists && other.ID != id {
			return Permission{}, ErrDuplicateKey
		}
		p.Key = *patch.Key
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Module != nil {
		p.Module = *patch.Module
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	p.UpdatedAt = time.Now().UTC()
	s.perms[id] = p
	return p, nil
}

func (s *memStore) SetPermissionActive(ctx context.Context, id uuid.UUID, active bool) (Permission, error) {
	return s.UpdatePermission(ctx, id, PermissionPatch{Active: &active})
}

func (s *memStore) GrantPermission(ctx context.Context, userID, permissionID uuid.UUID, grantedBy *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perms[permissionID]; !ok {
		return false, ErrNotFound
	}
	if _, ok := s.grants[userID][permissionID]; ok {
		return false, nil
	}
	s.users[userID] = true
	if s.grants[userID] == nil {
		s.grants[userID] = make(map[uuid.UUID]Grant)
	}
	s.grants[userID][permissionID] = Grant{ActorID: userID, PermissionID: permissionID, GrantedAt: time.Now().UTC(), GrantedBy: grantedBy}
	return true, nil
}

func (s *memStore) RevokePermission(ctx context.Context, userID, permissionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[userID][permissionID]; !ok {
		return false, nil
	}
	delete(s.grants[userID], permissionID)
	return true, nil
}

func (s *memStore) ListUserGrants(ctx context.Context, userID uuid.UUID) ([]UserGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[userID] {
		return nil, ErrNotFound
	}
	out := make([]UserGrant, 0)
	for permID, g := range s.grants[userID] {
		out = append(out, UserGrant{Permission: s.perms[permID], GrantedAt: g.GrantedAt, GrantedBy: g.GrantedBy})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Permission.Key < out[j].Permission.Key })
	return out, nil
}

type recordedEvent struct {
	ActorID *uuid.UUID
	Action  string
	Module  string
	Detail  audit.Detail
}

type spyRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *spyRecorder) Record(ctx context.Context, actorID *uuid.UUID, action, module string, detail audit.Detail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{ActorID: actorID, Action: action, Module: module, Detail: detail})
}

func (r *spyRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type countingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *countingObserver) ObserveDecision(reason string, allowed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = make(map[string]int)
	}
	o.calls[reason]++
}

type staticResolver map[uuid.UUID]Actor

func (r staticResolver) FindActor(ctx context.Context, id uuid.UUID) (Actor, error) {
	actor, ok := r[id]
	if !ok {
		return Actor{}, ErrNotFound
	}
	return actor, nil
}

package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/station2100/station/internal/audit"
)

var permissionKeyPattern = regexp.MustCompile(`^[a-z0-9_]+(\.[a-z0-9_]+)+$`)

// AdminRepository is the persistence surface of permission administration.
type AdminRepository interface {
	ListPermissions(ctx context.Context, module string) ([]Permission, error)
	GetPermission(ctx context.Context, id uuid.UUID) (Permission, error)
	GetPermissionByKey(ctx context.Context, key string) (Permission, error)
	CreatePermission(ctx context.Context, in PermissionInput) (Permission, error)
	UpdatePermission(ctx context.Context, id uuid.UUID, patch PermissionPatch) (Permission, error)
	SetPermissionActive(ctx context.Context, id uuid.UUID, active bool) (Permission, error)
	GrantPermission(ctx context.Context, userID, permissionID uuid.UUID, grantedBy *uuid.UUID) (bool, error)
	RevokePermission(ctx context.Context, userID, permissionID uuid.UUID) (bool, error)
	ListUserGrants(ctx context.Context, userID uuid.UUID) ([]UserGrant, error)
}

// AuditRecorder records audit events without failing the caller.
type AuditRecorder interface {
	Record(ctx context.Context, actorID *uuid.UUID, action, module string, detail audit.Detail)
}

// Service orchestrates permission administration. Key format is enforced
// here; the Engine treats keys as opaque.
type Service struct {
	repo     AdminRepository
	audit    AuditRecorder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a Service. recorder may be nil.
func NewService(repo AdminRepository, recorder AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: recorder, validate: newValidator(), logger: logger}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("permission_key", func(fl validator.FieldLevel) bool {
		return permissionKeyPattern.MatchString(fl.Field().String())
	})
	return v
}

// ListPermissions returns all permissions, optionally restricted to module.
func (s *Service) ListPermissions(ctx context.Context, module string) ([]Permission, error) {
	return s.repo.ListPermissions(ctx, module)
}

// GetPermission returns a permission by ID, including inactive ones.
func (s *Service) GetPermission(ctx context.Context, id uuid.UUID) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// CreatePermission validates and stores a new active permission.
func (s *Service) CreatePermission(ctx context.Context, actorID uuid.UUID, in PermissionInput) (Permission, error) {
	in.Key = strings.TrimSpace(in.Key)
	in.Description = strings.TrimSpace(in.Description)
	in.Module = strings.TrimSpace(in.Module)
	in.Category = strings.TrimSpace(in.Category)
	if err := s.check(in); err != nil {
		return Permission{}, err
	}
	perm, err := s.repo.CreatePermission(ctx, in)
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, audit.ActionPermissionCreated, audit.Detail{
		"permissionId": perm.ID.String(),
		"key":          perm.Key,
		"module":       perm.Module,
	})
	return perm, nil
}

// UpdatePermission applies a partial update.
func (s *Service) UpdatePermission(ctx context.Context, actorID, id uuid.UUID, patch PermissionPatch) (Permission, error) {
	patch.Key = trimmed(patch.Key)
	patch.Description = trimmed(patch.Description)
	patch.Module = trimmed(patch.Module)
	patch.Category = trimmed(patch.Category)
	if patch.Empty() {
		return Permission{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	if err := s.check(patch); err != nil {
		return Permission{}, err
	}
	if blank(patch.Key) || blank(patch.Description) || blank(patch.Module) {
		return Permission{}, fmt.Errorf("%w: key, description and module cannot be blank", ErrInvalidInput)
	}
	perm, err := s.repo.UpdatePermission(ctx, id, patch)
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, audit.ActionPermissionUpdated, audit.Detail{
		"permissionId": perm.ID.String(),
		"key":          perm.Key,
		"changes":      patchFields(patch),
	})
	return perm, nil
}

// DeactivatePermission soft-deletes a permission. Grants stay in place but no
// longer authorize anything.
func (s *Service) DeactivatePermission(ctx context.Context, actorID, id uuid.UUID) (Permission, error) {
	perm, err := s.repo.SetPermissionActive(ctx, id, false)
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, actorID, audit.ActionPermissionDeleted, audit.Detail{
		"permissionId": perm.ID.String(),
		"key":          perm.Key,
	})
	return perm, nil
}

// GrantPermission grants the referenced permission to userID. Granting an
// existing grant is a no-op reported as created=false.
func (s *Service) GrantPermission(ctx context.Context, grantorID, userID uuid.UUID, ref PermissionRef) (bool, error) {
	perm, err := s.resolve(ctx, ref)
	if err != nil {
		return false, err
	}
	var grantedBy *uuid.UUID
	if grantorID != uuid.Nil {
		grantedBy = &grantorID
	}
	created, err := s.repo.GrantPermission(ctx, userID, perm.ID, grantedBy)
	if err != nil {
		return false, err
	}
	if created {
		s.record(ctx, grantorID, audit.ActionPermissionGranted, audit.Detail{
			"userId":       userID.String(),
			"permissionId": perm.ID.String(),
			"key":          perm.Key,
		})
	}
	return created, nil
}

// RevokePermission removes a grant. Revoking a grant that does not exist is
// not an error; removed reports whether anything was deleted.
func (s *Service) RevokePermission(ctx context.Context, actorID, userID, permissionID uuid.UUID) (bool, error) {
	removed, err := s.repo.RevokePermission(ctx, userID, permissionID)
	if err != nil {
		return false, err
	}
	s.record(ctx, actorID, audit.ActionPermissionRevoked, audit.Detail{
		"userId":       userID.String(),
		"permissionId": permissionID.String(),
		"removed":      removed,
	})
	return removed, nil
}

// ListUserGrants returns the user's grants with permission detail. An unknown
// user is ErrNotFound.
func (s *Service) ListUserGrants(ctx context.Context, userID uuid.UUID) ([]UserGrant, error) {
	return s.repo.ListUserGrants(ctx, userID)
}

// GroupPermissions buckets perms by module, in module order, with a display
// label such as "Job Card" for module "job_card".
func GroupPermissions(perms []Permission) []PermissionGroup {
	title := cases.Title(language.English)
	index := make(map[string]int)
	groups := make([]PermissionGroup, 0)
	for _, p := range perms {
		i, ok := index[p.Module]
		if !ok {
			i = len(groups)
			index[p.Module] = i
			label := title.String(strings.ReplaceAll(p.Module, "_", " "))
			groups = append(groups, PermissionGroup{Module: p.Module, Label: label})
		}
		groups[i].Permissions = append(groups[i].Permissions, p)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Module < groups[b].Module })
	return groups
}

func (s *Service) resolve(ctx context.Context, ref PermissionRef) (Permission, error) {
	if ref.ID != nil {
		return s.repo.GetPermission(ctx, *ref.ID)
	}
	if key := strings.TrimSpace(ref.Key); key != "" {
		return s.repo.GetPermissionByKey(ctx, key)
	}
	return Permission{}, fmt.Errorf("%w: permissionId or permissionKey required", ErrInvalidInput)
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID uuid.UUID, action string, detail audit.Detail) {
	if s.audit == nil {
		return
	}
	var actor *uuid.UUID
	if actorID != uuid.Nil {
		actor = &actorID
	}
	s.audit.Record(ctx, actor, action, audit.ModuleAdmin, detail)
}

func patchFields(p PermissionPatch) []string {
	fields := make([]string, 0, 5)
	if p.Key != nil {
		fields = append(fields, "key")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Module != nil {
		fields = append(fields, "module")
	}
	if p.Category != nil {
		fields = append(fields, "category")
	}
	if p.Active != nil {
		fields = append(fields, "isActive")
	}
	return fields
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func blank(v *string) bool {
	return v != nil && *v == ""
}

package role

import (
	"context"
	"errors"
	"time"

	common_models "go-estimate/internal/common/models"
	"go-estimate/internal/features/audit"
)

// resolveTimeout bounds role-membership lookups so an instance transition
// can never block indefinitely on the backing store. A timeout surfaces as a
// transient error for the caller to retry, not as an instance fault.
const resolveTimeout = 5 * time.Second

// ActiveUserFinder is the slice of the user feature the resolver needs.
type ActiveUserFinder interface {
	FindActiveByRoles(ctx context.Context, roleIDs []string) ([]common_models.User, error)
}

type RoleService interface {
	CreateRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id string, role *Role) error
	DeleteRole(ctx context.Context, id string) error

	// HasPermission reports whether any of the roles allows action on resource.
	HasPermission(ctx context.Context, roleIDs []string, resource string, action string) (bool, error)

	// ResolveApprovers returns the ids of active users holding any of the
	// approve-capable roles. An empty set is not an error: the engine
	// surfaces it as a stalled approval step.
	ResolveApprovers(ctx context.Context, roleIDs []string) (map[string]struct{}, error)
}

type RoleServiceImpl struct {
	Repo         RoleRepository
	Users        ActiveUserFinder
	AuditService audit.AuditService
}

func NewRoleService(repo RoleRepository, users ActiveUserFinder, auditService audit.AuditService) RoleService {
	return &RoleServiceImpl{
		Repo:         repo,
		Users:        users,
		AuditService: auditService,
	}
}

func (s *RoleServiceImpl) CreateRole(ctx context.Context, role *Role) error {
	if role.Name == "" {
		return errors.New("role name is required")
	}
	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now

	if err := s.Repo.Create(ctx, role); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "roles", role.ID.Hex(), map[string]common_models.Change{
		"role": {New: role.Name},
	})
	return nil
}

func (s *RoleServiceImpl) GetRole(ctx context.Context, id string) (*Role, error) {
	return s.Repo.FindByID(ctx, id)
}

func (s *RoleServiceImpl) ListRoles(ctx context.Context) ([]Role, error) {
	return s.Repo.List(ctx)
}

func (s *RoleServiceImpl) UpdateRole(ctx context.Context, id string, role *Role) error {
	existing, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New("role not found")
	}
	if existing.IsSystem {
		return errors.New("system roles cannot be modified")
	}

	role.UpdatedAt = time.Now()
	if err := s.Repo.Update(ctx, id, role); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "roles", id, map[string]common_models.Change{
		"role": {Old: existing.Name, New: role.Name},
	})
	return nil
}

func (s *RoleServiceImpl) DeleteRole(ctx context.Context, id string) error {
	existing, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New("role not found")
	}
	if existing.IsSystem {
		return errors.New("system roles cannot be deleted")
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionDelete, "roles", id, map[string]common_models.Change{
		"role": {Old: existing.Name, New: "DELETED"},
	})
	return nil
}

func (s *RoleServiceImpl) HasPermission(ctx context.Context, roleIDs []string, resource string, action string) (bool, error) {
	roles, err := s.Repo.FindByIDs(ctx, roleIDs)
	if err != nil {
		return false, err
	}

	for _, r := range roles {
		if actions, ok := r.Permissions[resource]; ok {
			if perm, ok := actions[action]; ok && perm.Allowed {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *RoleServiceImpl) ResolveApprovers(ctx context.Context, roleIDs []string) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	roles, err := s.Repo.FindByIDs(ctx, roleIDs)
	if err != nil {
		return nil, err
	}

	eligible := make([]string, 0, len(roles))
	for _, r := range roles {
		if r.CanApprove {
			eligible = append(eligible, r.ID.Hex())
		}
	}

	approvers := make(map[string]struct{})
	if len(eligible) == 0 {
		return approvers, nil
	}

	users, err := s.Users.FindActiveByRoles(ctx, eligible)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		approvers[u.ID.Hex()] = struct{}{}
	}
	return approvers, nil
}

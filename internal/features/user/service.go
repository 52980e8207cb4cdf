package user

import (
	"context"
	"errors"
	"time"

	common_models "go-estimate/internal/common/models"
	"go-estimate/internal/features/audit"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService interface {
	CreateUser(ctx context.Context, usr *common_models.User) error
	GetUser(ctx context.Context, id string) (*common_models.User, error)
	ListUsers(ctx context.Context) ([]common_models.User, error)
	UpdateUser(ctx context.Context, id string, usr *common_models.User) error
	AssignRoles(ctx context.Context, id string, roleIDs []string) error
	SetStatus(ctx context.Context, id string, status string) error
}

type UserServiceImpl struct {
	Repo         UserRepository
	AuditService audit.AuditService
}

func NewUserService(repo UserRepository, auditService audit.AuditService) UserService {
	return &UserServiceImpl{
		Repo:         repo,
		AuditService: auditService,
	}
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, usr *common_models.User) error {
	if usr.Username == "" || usr.Email == "" {
		return errors.New("username and email are required")
	}
	if existing, _ := s.Repo.FindByUsername(ctx, usr.Username); existing != nil {
		return errors.New("username already taken")
	}

	if usr.ID.IsZero() {
		usr.ID = primitive.NewObjectID()
	}
	if usr.Status == "" {
		usr.Status = "active"
	}
	now := time.Now()
	usr.CreatedAt = now
	usr.UpdatedAt = now

	if err := s.Repo.Create(ctx, usr); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "users", usr.ID.Hex(), map[string]common_models.Change{
		"username": {New: usr.Username},
	})
	return nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id string) (*common_models.User, error) {
	return s.Repo.FindByID(ctx, id)
}

func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]common_models.User, error) {
	return s.Repo.List(ctx)
}

func (s *UserServiceImpl) UpdateUser(ctx context.Context, id string, usr *common_models.User) error {
	existing, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New("user not found")
	}

	// Roles and status travel through their dedicated operations
	usr.Roles = existing.Roles
	usr.Status = existing.Status
	usr.UpdatedAt = time.Now()

	if err := s.Repo.Update(ctx, id, usr); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "users", id, map[string]common_models.Change{
		"email": {Old: existing.Email, New: usr.Email},
	})
	return nil
}

func (s *UserServiceImpl) AssignRoles(ctx context.Context, id string, roleIDs []string) error {
	existing, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New("user not found")
	}

	roles := make([]primitive.ObjectID, 0, len(roleIDs))
	for _, rid := range roleIDs {
		oid, err := primitive.ObjectIDFromHex(rid)
		if err != nil {
			return errors.New("invalid role id")
		}
		roles = append(roles, oid)
	}

	existing.Roles = roles
	existing.UpdatedAt = time.Now()
	if err := s.Repo.Update(ctx, id, existing); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "users", id, map[string]common_models.Change{
		"roles": {New: roleIDs},
	})
	return nil
}

func (s *UserServiceImpl) SetStatus(ctx context.Context, id string, status string) error {
	switch status {
	case "active", "inactive", "suspended":
	default:
		return errors.New("invalid status")
	}

	existing, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return errors.New("user not found")
	}

	old := existing.Status
	existing.Status = status
	existing.UpdatedAt = time.Now()
	if err := s.Repo.Update(ctx, id, existing); err != nil {
		return err
	}

	s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "users", id, map[string]common_models.Change{
		"status": {Old: old, New: status},
	})
	return nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-estimate/internal/common/models"
	"go-estimate/internal/features/audit"
	"go-estimate/internal/features/organization"
	"go-estimate/internal/features/role"
	"go-estimate/internal/features/user"
	"go-estimate/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ownedResources get full owner permissions on registration.
var ownedResources = []string{
	"estimates", "cost_entries", "workflows", "instances",
	"roles", "users", "webhooks", "audit_logs", "reports",
}

type AuthService interface {
	// Register creates a new organization with its owner account. The owner
	// role can approve and holds every permission.
	Register(ctx context.Context, username, password, email, orgName string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

type AuthServiceImpl struct {
	UserRepo         user.UserRepository
	RoleRepo         role.RoleRepository
	OrganizationRepo organization.OrganizationRepository
	AuditService     audit.AuditService
}

func NewAuthService(userRepo user.UserRepository, roleRepo role.RoleRepository, orgRepo organization.OrganizationRepository, auditService audit.AuditService) AuthService {
	return &AuthServiceImpl{
		UserRepo:         userRepo,
		RoleRepo:         roleRepo,
		OrganizationRepo: orgRepo,
		AuditService:     auditService,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, username, password, email, orgName string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if existing, _ := s.UserRepo.FindByUsername(ctx, username); existing != nil {
		return nil, errors.New("username already taken")
	}

	// hash password placeholder (TODO: use bcrypt)
	hashedPassword := password

	if orgName == "" {
		orgName = fmt.Sprintf("%s's Organization", username)
	}

	now := time.Now()
	newUserID := primitive.NewObjectID()
	newOrg := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      orgName,
		Slug:      utils.Slugify(orgName) + "-" + primitive.NewObjectID().Hex()[:4],
		Plan:      "standard",
		OwnerID:   newUserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.OrganizationRepo.Create(ctx, &newOrg); err != nil {
		return nil, err
	}

	// Tenant context for the role and user writes that follow
	ctx = context.WithValue(ctx, models.TenantIDKey, newOrg.ID.Hex())

	permissions := make(map[string]map[string]models.ActionPermission, len(ownedResources))
	for _, resource := range ownedResources {
		permissions[resource] = map[string]models.ActionPermission{
			"create": {Allowed: true},
			"read":   {Allowed: true},
			"update": {Allowed: true},
			"delete": {Allowed: true},
		}
	}
	ownerRole := role.Role{
		ID:          primitive.NewObjectID(),
		Name:        "owner",
		Description: "Organization owner",
		CanApprove:  true,
		Permissions: permissions,
		IsSystem:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.RoleRepo.Create(ctx, &ownerRole); err != nil {
		return nil, err
	}

	newUser := models.User{
		ID:        newUserID,
		TenantID:  newOrg.ID,
		Username:  username,
		Password:  hashedPassword,
		Email:     email,
		Status:    "active",
		Roles:     []primitive.ObjectID{ownerRole.ID},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.UserRepo.Create(ctx, &newUser); err != nil {
		return nil, err
	}

	s.AuditService.LogChange(ctx, models.AuditActionCreate, "users", newUser.ID.Hex(), map[string]models.Change{
		"username":  {New: username},
		"tenant_id": {New: newOrg.ID.Hex()},
	})
	return &newUser, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, error) {
	usr, err := s.UserRepo.FindByUsername(ctx, username)
	if err != nil || usr == nil {
		return "", errors.New("invalid credentials")
	}

	// Check password (TODO: use bcrypt)
	if usr.Password != password {
		return "", errors.New("invalid credentials")
	}
	if usr.Status != "active" {
		return "", fmt.Errorf("account %s", usr.Status)
	}

	roleIDs := make([]string, 0, len(usr.Roles))
	for _, id := range usr.Roles {
		roleIDs = append(roleIDs, id.Hex())
	}

	token, err := utils.GenerateToken(usr.ID, usr.TenantID, roleIDs)
	if err != nil {
		return "", err
	}

	ctx = context.WithValue(ctx, models.TenantIDKey, usr.TenantID.Hex())
	s.AuditService.LogChange(ctx, models.AuditActionLogin, "users", usr.ID.Hex(), map[string]models.Change{
		"login": {New: username},
	})
	return token, nil
}

package role

import (
	"time"

	"go-estimate/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents a user role with resource-level permissions. CanApprove
// gates whether members of the role are eligible approvers when the role is
// listed on an approval step.
type Role struct {
	ID          primitive.ObjectID                            `json:"id" bson:"_id,omitempty"`
	TenantID    primitive.ObjectID                            `json:"tenant_id" bson:"tenant_id,omitempty"`
	Name        string                                        `json:"name" bson:"name"`
	Description string                                        `json:"description" bson:"description"`
	CanApprove  bool                                          `json:"can_approve" bson:"can_approve"`
	Permissions map[string]map[string]models.ActionPermission `json:"permissions" bson:"permissions"` // Resource -> Action -> Permission
	IsSystem    bool                                          `json:"is_system" bson:"is_system"`     // Prevent deletion of system roles
	CreatedAt   time.Time                                     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time                                     `json:"updated_at" bson:"updated_at"`
}

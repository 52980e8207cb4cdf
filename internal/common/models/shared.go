package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContextKey string

const (
	TenantIDKey ContextKey = "tenant_id"
)

type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionLogin    AuditAction = "LOGIN"
	AuditActionApproval AuditAction = "APPROVAL"
	AuditActionWorkflow AuditAction = "WORKFLOW"
	AuditActionInstance AuditAction = "INSTANCE"
	AuditActionWebhook  AuditAction = "WEBHOOK"
	AuditActionMonitor  AuditAction = "MONITOR"
	AuditActionSettings AuditAction = "SETTINGS"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  primitive.ObjectID `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`
	RecordID  string             `bson:"record_id" json:"record_id"`
	ActorID   string             `bson:"actor_id" json:"actor_id"`
	ActorName string             `bson:"-" json:"actor_name,omitempty"` // Populated Name of the actor
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

type Organization struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Slug      string             `bson:"slug" json:"slug"`
	Plan      string             `bson:"plan" json:"plan"` // e.g. "enterprise"
	OwnerID   primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

type User struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TenantID  primitive.ObjectID   `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	Username  string               `bson:"username" json:"username"`
	Password  string               `bson:"password" json:"-"`
	Email     string               `bson:"email" json:"email"`
	FirstName string               `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName  string               `bson:"last_name,omitempty" json:"last_name,omitempty"`
	Status    string               `bson:"status" json:"status"` // active, inactive, suspended
	Roles     []primitive.ObjectID `bson:"roles" json:"roles"`   // References to Role IDs
	LastLogin *time.Time           `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}

type WebhookPayload struct {
	Event     string         `json:"event"`
	Module    string         `json:"module,omitempty"`
	RecordID  string         `json:"record_id,omitempty"`
	Data      interface{}    `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Permission DSL Structures (Shared)
type RuleType string

const (
	RuleTypeStatic   RuleType = "static"
	RuleTypeVariable RuleType = "variable"
)

type PermissionRule struct {
	Field    string      `json:"field" bson:"field"`
	Operator string      `json:"operator" bson:"operator"` // eq, ne, gt, lt, gte, lte, in, nin, contains
	Value    interface{} `json:"value" bson:"value"`
	Type     RuleType    `json:"type" bson:"type"`
}

type PermissionGroup struct {
	Operator string            `json:"operator" bson:"operator"` // "AND" | "OR"
	Rules    []PermissionRule  `json:"rules" bson:"rules"`
	Groups   []PermissionGroup `json:"groups" bson:"groups"`
}

type ActionPermission struct {
	Allowed    bool             `json:"allowed" bson:"allowed"`
	Conditions *PermissionGroup `json:"conditions,omitempty" bson:"conditions,omitempty"`
}

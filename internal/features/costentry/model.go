package costentry

import (
	"time"

	"go-estimate/pkg/rulechain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CostEntryStatus string

const (
	StatusPending  CostEntryStatus = "pending"
	StatusInReview CostEntryStatus = "in_review"
	StatusApproved CostEntryStatus = "approved"
	StatusRejected CostEntryStatus = "rejected"
)

// CostEntry is an incurred cost booked against a project. Entries above a
// tenant-configured threshold run through a cost-review workflow; the rest
// are approved on submission.
type CostEntry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID   primitive.ObjectID `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	EstimateID primitive.ObjectID `bson:"estimate_id,omitempty" json:"estimate_id,omitempty"`

	Description string  `bson:"description" json:"description"`
	CostType    string  `bson:"cost_type" json:"cost_type"` // labor, material, equipment, other
	Amount      float64 `bson:"amount" json:"amount"`
	Vendor      string  `bson:"vendor,omitempty" json:"vendor,omitempty"`

	Status     CostEntryStatus `bson:"status" json:"status"`
	EnteredBy  string          `bson:"entered_by,omitempty" json:"entered_by,omitempty"`
	IncurredAt time.Time       `bson:"incurred_at" json:"incurred_at"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Snapshot flattens the entry into the field set cost-review triggers and
// rule chains evaluate.
func (ce *CostEntry) Snapshot() rulechain.Snapshot {
	return rulechain.Snapshot{
		"calculated_value": ce.Amount,
		"cost_type":        ce.CostType,
		"client_name":      ce.Vendor,
	}
}

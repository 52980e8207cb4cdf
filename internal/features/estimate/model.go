package estimate

import (
	"time"

	"go-estimate/pkg/rulechain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EstimateStatus string

const (
	StatusDraft     EstimateStatus = "draft"
	StatusInReview  EstimateStatus = "in_review"
	StatusApproved  EstimateStatus = "approved"
	StatusRejected  EstimateStatus = "rejected"
	StatusRevision  EstimateStatus = "revision_requested"
	StatusCancelled EstimateStatus = "cancelled"
)

// LineItem is one priced row of an estimate.
type LineItem struct {
	Description string  `bson:"description" json:"description"`
	Category    string  `bson:"category" json:"category"` // labor, material, equipment, other
	Quantity    float64 `bson:"quantity" json:"quantity"`
	UnitCost    float64 `bson:"unit_cost" json:"unit_cost"`
	Total       float64 `bson:"total" json:"total"`
}

// Estimate is a project cost proposal. Submitting one runs it through the
// tenant's approval workflows; the workflow outcome lands back in Status.
type Estimate struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID primitive.ObjectID `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`

	ProjectName    string  `bson:"project_name" json:"project_name"`
	ClientName     string  `bson:"client_name" json:"client_name"`
	ProjectType    string  `bson:"project_type" json:"project_type"`
	ProjectValue   float64 `bson:"project_value" json:"project_value"`
	ProfitMargin   float64 `bson:"profit_margin" json:"profit_margin"`
	DurationMonths int     `bson:"duration_months" json:"duration_months"`

	LineItems []LineItem `bson:"line_items" json:"line_items"`

	// Derived totals, recomputed on every save
	TotalLaborCost    float64 `bson:"total_labor_cost" json:"total_labor_cost"`
	TotalMaterialCost float64 `bson:"total_material_cost" json:"total_material_cost"`
	CalculatedValue   float64 `bson:"calculated_value" json:"calculated_value"`

	Status      EstimateStatus `bson:"status" json:"status"`
	SubmittedBy string         `bson:"submitted_by,omitempty" json:"submitted_by,omitempty"`
	SubmittedAt *time.Time     `bson:"submitted_at,omitempty" json:"submitted_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Recalculate refreshes the derived totals from the line items.
func (e *Estimate) Recalculate() {
	var labor, material, total float64
	for i := range e.LineItems {
		li := &e.LineItems[i]
		li.Total = li.Quantity * li.UnitCost
		total += li.Total
		switch li.Category {
		case "labor":
			labor += li.Total
		case "material":
			material += li.Total
		}
	}
	e.TotalLaborCost = labor
	e.TotalMaterialCost = material
	e.CalculatedValue = total * (1 + e.ProfitMargin/100)
}

// Snapshot flattens the estimate into the field set rule chains evaluate.
func (e *Estimate) Snapshot() rulechain.Snapshot {
	return rulechain.Snapshot{
		"project_name":        e.ProjectName,
		"client_name":         e.ClientName,
		"project_type":        e.ProjectType,
		"project_value":       e.ProjectValue,
		"calculated_value":    e.CalculatedValue,
		"profit_margin":       e.ProfitMargin,
		"duration_months":     e.DurationMonths,
		"total_labor_cost":    e.TotalLaborCost,
		"total_material_cost": e.TotalMaterialCost,
	}
}

package workflow

import (
	"time"

	"go-estimate/pkg/rulechain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Family separates the two workflow catalogs: general estimate approval and
// threshold-triggered cost review.
type Family string

const (
	FamilyApproval   Family = "approval"
	FamilyCostReview Family = "cost_review"
)

type NodeKind string

const (
	NodeStart     NodeKind = "start"
	NodeApproval  NodeKind = "approval"
	NodeCondition NodeKind = "condition"
	NodeEnd       NodeKind = "end"
)

// Outcome is the terminal result an End node assigns to the instance.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
	OutcomeRevision Outcome = "revision"
)

// Out-edge port labels, per node kind. Start's single port is unlabeled.
const (
	PortApproved = "approved"
	PortRejected = "rejected"
	PortTrue     = "true"
	PortFalse    = "false"
)

// ApprovalPayload configures an approval step. RequireAll=true means every
// resolved approver across all listed roles must approve; false means the
// first valid approval advances the instance.
type ApprovalPayload struct {
	StepName      string   `bson:"step_name" json:"step_name"`
	ApproverRoles []string `bson:"approver_roles" json:"approver_roles"`
	RequireAll    bool     `bson:"require_all" json:"require_all"`
}

type ConditionPayload struct {
	Rules []rulechain.Rule `bson:"rules" json:"rules"`
}

type EndPayload struct {
	Outcome Outcome `bson:"outcome" json:"outcome"`
}

// Node is a vertex in the workflow graph. Exactly one payload pointer is set,
// matching Kind; Start carries none.
type Node struct {
	ID        string            `bson:"id" json:"id"`
	Kind      NodeKind          `bson:"kind" json:"kind"`
	Approval  *ApprovalPayload  `bson:"approval,omitempty" json:"approval,omitempty"`
	Condition *ConditionPayload `bson:"condition,omitempty" json:"condition,omitempty"`
	End       *EndPayload       `bson:"end,omitempty" json:"end,omitempty"`
}

// Edge is a directed, port-labeled connection. Port is "" for Start's single
// out-edge and one of the kind-specific labels otherwise.
type Edge struct {
	Source string `bson:"source" json:"source"`
	Port   string `bson:"port,omitempty" json:"port,omitempty"`
	Target string `bson:"target" json:"target"`
}

// TriggerConditions select a cost-review workflow: the record amount must
// meet MinAmount and, when CostTypes is non-empty, its type must be listed.
type TriggerConditions struct {
	MinAmount float64  `bson:"min_amount" json:"min_amount"`
	CostTypes []string `bson:"cost_types,omitempty" json:"cost_types,omitempty"`
}

// Workflow is a tenant-owned, user-authored approval graph.
type Workflow struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID    primitive.ObjectID `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Family      Family             `bson:"family" json:"family"`
	Active      bool               `bson:"active" json:"active"`
	IsDefault   bool               `bson:"is_default" json:"is_default"`
	Priority    int                `bson:"priority" json:"priority"` // Evaluation order for rule-matched selection (0 = highest)

	// SelectionRules pick this workflow for a submitted record (approval
	// family). Trigger does the same for the cost-review family.
	SelectionRules []rulechain.Rule   `bson:"selection_rules,omitempty" json:"selection_rules,omitempty"`
	Trigger        *TriggerConditions `bson:"trigger,omitempty" json:"trigger,omitempty"`

	Nodes []Node `bson:"nodes" json:"nodes"`
	Edges []Edge `bson:"edges" json:"edges"`

	Deleted   bool       `bson:"deleted" json:"-"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"-"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// NodeByID returns the node or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// StartNode returns the single Start node or nil.
func (w *Workflow) StartNode() *Node {
	for i := range w.Nodes {
		if w.Nodes[i].Kind == NodeStart {
			return &w.Nodes[i]
		}
	}
	return nil
}

// OutEdge returns the edge leaving source on the given port, or nil.
func (w *Workflow) OutEdge(source, port string) *Edge {
	for i := range w.Edges {
		if w.Edges[i].Source == source && w.Edges[i].Port == port {
			return &w.Edges[i]
		}
	}
	return nil
}

// OutEdges returns all edges leaving source.
func (w *Workflow) OutEdges(source string) []Edge {
	var out []Edge
	for _, e := range w.Edges {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out
}

// NewWorkflow creates an empty draft: a Start node only, inactive.
func NewWorkflow(name, description string, family Family) *Workflow {
	now := time.Now()
	return &Workflow{
		Name:        name,
		Description: description,
		Family:      family,
		Nodes:       []Node{{ID: "start", Kind: NodeStart}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

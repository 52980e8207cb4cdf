package instance

import (
	"time"

	"go-estimate/internal/features/workflow"
	"go-estimate/pkg/rulechain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InstanceStatus is the lifecycle state of a running workflow instance.
// Approved, rejected and revision mirror the outcome of the end node the
// instance reached; cancelled and faulted conclude an instance without one.
type InstanceStatus string

const (
	StatusRunning   InstanceStatus = "running"
	StatusApproved  InstanceStatus = "approved"
	StatusRejected  InstanceStatus = "rejected"
	StatusRevision  InstanceStatus = "revision"
	StatusCancelled InstanceStatus = "cancelled"
	StatusFaulted   InstanceStatus = "faulted"
)

func (s InstanceStatus) Concluded() bool {
	return s != StatusRunning
}

// Decision is an approver's verdict on the current approval step.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// DecisionRecord is one entry in the instance's immutable decision log.
type DecisionRecord struct {
	NodeID    string    `bson:"node_id" json:"node_id"`
	StepName  string    `bson:"step_name" json:"step_name"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Decision  Decision  `bson:"decision" json:"decision"`
	Comment   string    `bson:"comment,omitempty" json:"comment,omitempty"`
	DecidedAt time.Time `bson:"decided_at" json:"decided_at"`
}

// WorkflowInstance is one record's journey through a workflow. The graph and
// the record fields are snapshotted at instantiation: later edits to the
// workflow or the record never affect an in-flight instance.
type WorkflowInstance struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID   primitive.ObjectID `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	WorkflowID primitive.ObjectID `bson:"workflow_id" json:"workflow_id"`
	Family     workflow.Family    `bson:"family" json:"family"`

	// RecordType and RecordID point at the record under review.
	RecordType string `bson:"record_type" json:"record_type"`
	RecordID   string `bson:"record_id" json:"record_id"`

	Nodes  []workflow.Node    `bson:"nodes" json:"nodes"`
	Edges  []workflow.Edge    `bson:"edges" json:"edges"`
	Record rulechain.Snapshot `bson:"record" json:"record"`

	Status  InstanceStatus   `bson:"status" json:"status"`
	Outcome workflow.Outcome `bson:"outcome,omitempty" json:"outcome,omitempty"`

	// Current approval step state. EligibleApprovers is the pool resolved at
	// step entry; ApprovedBy accumulates under require_all.
	CurrentNodeID     string   `bson:"current_node_id,omitempty" json:"current_node_id,omitempty"`
	StepName          string   `bson:"step_name,omitempty" json:"step_name,omitempty"`
	EligibleApprovers []string `bson:"eligible_approvers,omitempty" json:"eligible_approvers,omitempty"`
	ApprovedBy        []string `bson:"approved_by,omitempty" json:"approved_by,omitempty"`

	// Stalled marks an approval step whose resolved approver pool was empty.
	// The instance stays running; the monitor sweep retries resolution.
	Stalled bool `bson:"stalled" json:"stalled"`

	// FaultReason is the faulted-state diagnostic; CancelReason records why
	// a cancellation happened. They never share a field so a cancelled
	// instance that was faulted keeps its diagnostic.
	FaultReason  string `bson:"fault_reason,omitempty" json:"fault_reason,omitempty"`
	CancelReason string `bson:"cancel_reason,omitempty" json:"cancel_reason,omitempty"`

	Decisions []DecisionRecord `bson:"decisions" json:"decisions"`

	// Version guards concurrent updates: every persisted transition must
	// match the version it loaded and bumps it by one.
	Version int64 `bson:"version" json:"version"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
	ConcludedAt *time.Time `bson:"concluded_at,omitempty" json:"concluded_at,omitempty"`
}

// nodeByID returns the snapshotted node or nil.
func (i *WorkflowInstance) nodeByID(id string) *workflow.Node {
	for n := range i.Nodes {
		if i.Nodes[n].ID == id {
			return &i.Nodes[n]
		}
	}
	return nil
}

// outEdge returns the snapshotted edge leaving source on port, or nil.
func (i *WorkflowInstance) outEdge(source, port string) *workflow.Edge {
	for e := range i.Edges {
		if i.Edges[e].Source == source && i.Edges[e].Port == port {
			return &i.Edges[e]
		}
	}
	return nil
}

func (i *WorkflowInstance) hasApproved(userID string) bool {
	for _, id := range i.ApprovedBy {
		if id == userID {
			return true
		}
	}
	return false
}

func (i *WorkflowInstance) isEligible(userID string) bool {
	for _, id := range i.EligibleApprovers {
		if id == userID {
			return true
		}
	}
	return false
}

package instance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-estimate/internal/features/workflow"
	"go-estimate/pkg/rulechain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotRunning          = errors.New("instance is not running")
	ErrNotAwaitingApproval = errors.New("instance is not at an approval step")
	ErrNotEligible         = errors.New("user is not an eligible approver for this step")
	ErrDuplicateDecision   = errors.New("user has already approved this step")
	ErrStalled             = errors.New("approval step has no eligible approvers")
)

// ApproverResolver expands approver role ids into the set of concrete user
// ids allowed to act. Resolution happens at step entry, not instantiation, so
// role membership changes apply to steps the instance has not reached yet.
type ApproverResolver interface {
	ResolveApprovers(ctx context.Context, roleIDs []string) (map[string]struct{}, error)
}

// Engine applies workflow transitions to instances in memory. Persistence and
// side effects live in the service; the engine only mutates the instance it
// is handed.
type Engine struct {
	Resolver ApproverResolver
}

func NewEngine(resolver ApproverResolver) *Engine {
	return &Engine{Resolver: resolver}
}

// Instantiate snapshots the workflow graph and the record fields into a new
// running instance and advances it to its first resting point. The workflow
// must be structurally valid; instantiating a broken graph is refused rather
// than risking a fault mid-flight.
func (e *Engine) Instantiate(ctx context.Context, wf *workflow.Workflow, recordType, recordID string, rec rulechain.Snapshot) (*WorkflowInstance, error) {
	if errs := workflow.Validate(wf); len(errs) > 0 {
		return nil, fmt.Errorf("workflow %s fails validation: %s", wf.ID.Hex(), errs[0].Error())
	}

	snapshot := make(rulechain.Snapshot, len(rec))
	for k, v := range rec {
		snapshot[k] = v
	}
	graph := wf.Clone()

	now := time.Now()
	inst := &WorkflowInstance{
		ID:         primitive.NewObjectID(),
		WorkflowID: wf.ID,
		Family:     wf.Family,
		RecordType: recordType,
		RecordID:   recordID,
		Nodes:      graph.Nodes,
		Edges:      graph.Edges,
		Record:     snapshot,
		Status:     StatusRunning,
		Decisions:  []DecisionRecord{},
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	start := wf.StartNode()
	inst.CurrentNodeID = start.ID
	if err := e.Advance(ctx, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Advance walks the instance forward from its current node until it reaches
// an approval step with a non-empty approver pool, stalls, concludes, or
// faults. Condition evaluation errors fault the instance instead of failing
// the call: the bad state is recorded, not retried.
func (e *Engine) Advance(ctx context.Context, inst *WorkflowInstance) error {
	if inst.Status != StatusRunning {
		return ErrNotRunning
	}

	for {
		node := inst.nodeByID(inst.CurrentNodeID)
		if node == nil {
			e.fault(inst, fmt.Sprintf("current node %q is missing from the graph snapshot", inst.CurrentNodeID))
			return nil
		}

		switch node.Kind {
		case workflow.NodeStart:
			next := inst.outEdge(node.ID, "")
			if next == nil {
				e.fault(inst, "start node has no outgoing edge")
				return nil
			}
			inst.CurrentNodeID = next.Target

		case workflow.NodeCondition:
			match, err := rulechain.Evaluate(node.Condition.Rules, inst.Record)
			if err != nil {
				e.fault(inst, fmt.Sprintf("condition %s: %v", node.ID, err))
				return nil
			}
			port := workflow.PortFalse
			if match {
				port = workflow.PortTrue
			}
			next := inst.outEdge(node.ID, port)
			if next == nil {
				e.fault(inst, fmt.Sprintf("condition %s has no %s edge", node.ID, port))
				return nil
			}
			inst.CurrentNodeID = next.Target

		case workflow.NodeApproval:
			return e.enterApproval(ctx, inst, node)

		case workflow.NodeEnd:
			e.conclude(inst, node.End.Outcome)
			return nil

		default:
			e.fault(inst, fmt.Sprintf("node %s has unknown kind %q", node.ID, node.Kind))
			return nil
		}
	}
}

// enterApproval resolves the approver pool for the step. An empty pool marks
// the instance stalled rather than faulted; the pool may become non-empty as
// users and roles change, and the monitor sweep retries it.
func (e *Engine) enterApproval(ctx context.Context, inst *WorkflowInstance, node *workflow.Node) error {
	approvers, err := e.Resolver.ResolveApprovers(ctx, node.Approval.ApproverRoles)
	if err != nil {
		// Resolution failures are transient (store timeouts); leave the
		// instance where it was so the caller can retry.
		return fmt.Errorf("resolve approvers for %s: %w", node.ID, err)
	}

	inst.StepName = node.Approval.StepName
	inst.EligibleApprovers = inst.EligibleApprovers[:0]
	for id := range approvers {
		inst.EligibleApprovers = append(inst.EligibleApprovers, id)
	}
	inst.ApprovedBy = nil
	inst.Stalled = len(inst.EligibleApprovers) == 0
	inst.UpdatedAt = time.Now()
	return nil
}

// ApplyDecision records one approver's verdict and advances the instance if
// the step is settled. A single rejection concludes the step immediately even
// under require_all; a repeat approval from the same user is refused.
func (e *Engine) ApplyDecision(ctx context.Context, inst *WorkflowInstance, userID string, decision Decision, comment string) error {
	if inst.Status != StatusRunning {
		return ErrNotRunning
	}

	node := inst.nodeByID(inst.CurrentNodeID)
	if node == nil || node.Kind != workflow.NodeApproval {
		return ErrNotAwaitingApproval
	}
	if inst.Stalled {
		return ErrStalled
	}
	if !inst.isEligible(userID) {
		return ErrNotEligible
	}
	if decision != DecisionApproved && decision != DecisionRejected {
		return fmt.Errorf("unknown decision %q", decision)
	}
	if inst.hasApproved(userID) {
		return ErrDuplicateDecision
	}

	now := time.Now()
	inst.Decisions = append(inst.Decisions, DecisionRecord{
		NodeID:    node.ID,
		StepName:  node.Approval.StepName,
		UserID:    userID,
		Decision:  decision,
		Comment:   comment,
		DecidedAt: now,
	})
	inst.UpdatedAt = now

	if decision == DecisionRejected {
		return e.leaveApproval(ctx, inst, node, workflow.PortRejected)
	}

	inst.ApprovedBy = append(inst.ApprovedBy, userID)
	if node.Approval.RequireAll && len(inst.ApprovedBy) < len(inst.EligibleApprovers) {
		// Step not settled yet; wait for the rest of the pool
		return nil
	}
	return e.leaveApproval(ctx, inst, node, workflow.PortApproved)
}

func (e *Engine) leaveApproval(ctx context.Context, inst *WorkflowInstance, node *workflow.Node, port string) error {
	next := inst.outEdge(node.ID, port)
	if next == nil {
		e.fault(inst, fmt.Sprintf("approval %s has no %s edge", node.ID, port))
		return nil
	}

	inst.CurrentNodeID = next.Target
	inst.StepName = ""
	inst.EligibleApprovers = nil
	inst.ApprovedBy = nil
	return e.Advance(ctx, inst)
}

// RetryStalled re-resolves the approver pool of a stalled instance. It
// reports whether the instance unstalled.
func (e *Engine) RetryStalled(ctx context.Context, inst *WorkflowInstance) (bool, error) {
	if inst.Status != StatusRunning || !inst.Stalled {
		return false, nil
	}
	node := inst.nodeByID(inst.CurrentNodeID)
	if node == nil || node.Kind != workflow.NodeApproval {
		return false, ErrNotAwaitingApproval
	}
	if err := e.enterApproval(ctx, inst, node); err != nil {
		return false, err
	}
	return !inst.Stalled, nil
}

func (e *Engine) conclude(inst *WorkflowInstance, outcome workflow.Outcome) {
	now := time.Now()
	inst.Outcome = outcome
	switch outcome {
	case workflow.OutcomeApproved:
		inst.Status = StatusApproved
	case workflow.OutcomeRejected:
		inst.Status = StatusRejected
	case workflow.OutcomeRevision:
		inst.Status = StatusRevision
	default:
		e.fault(inst, fmt.Sprintf("end node carries unknown outcome %q", outcome))
		return
	}
	inst.CurrentNodeID = ""
	inst.StepName = ""
	inst.EligibleApprovers = nil
	inst.ApprovedBy = nil
	inst.Stalled = false
	inst.UpdatedAt = now
	inst.ConcludedAt = &now
}

func (e *Engine) fault(inst *WorkflowInstance, reason string) {
	now := time.Now()
	inst.Status = StatusFaulted
	inst.FaultReason = reason
	inst.UpdatedAt = now
	inst.ConcludedAt = &now
}

package instance

import (
	"context"
	"errors"
	"testing"

	"go-estimate/internal/features/workflow"
	"go-estimate/pkg/rulechain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeResolver maps role ids straight to user ids.
type fakeResolver struct {
	byRole map[string][]string
	err    error
}

func (f *fakeResolver) ResolveApprovers(ctx context.Context, roleIDs []string) (map[string]struct{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]struct{})
	for _, role := range roleIDs {
		for _, u := range f.byRole[role] {
			out[u] = struct{}{}
		}
	}
	return out, nil
}

func approvalStep(id, step string, requireAll bool, roles ...string) workflow.Node {
	return workflow.Node{ID: id, Kind: workflow.NodeApproval, Approval: &workflow.ApprovalPayload{
		StepName:      step,
		ApproverRoles: roles,
		RequireAll:    requireAll,
	}}
}

func terminal(id string, outcome workflow.Outcome) workflow.Node {
	return workflow.Node{ID: id, Kind: workflow.NodeEnd, End: &workflow.EndPayload{Outcome: outcome}}
}

// singleStepWorkflow: start -> review -> approved/rejected ends.
func singleStepWorkflow(requireAll bool) *workflow.Workflow {
	return &workflow.Workflow{
		ID:     primitive.NewObjectID(),
		Name:   "single step",
		Family: workflow.FamilyApproval,
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.NodeStart},
			approvalStep("review", "Manager Review", requireAll, "managers"),
			terminal("ok", workflow.OutcomeApproved),
			terminal("no", workflow.OutcomeRejected),
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "review"},
			{Source: "review", Port: workflow.PortApproved, Target: "ok"},
			{Source: "review", Port: workflow.PortRejected, Target: "no"},
		},
	}
}

// tieredWorkflow routes big projects to an executive step before the manager
// step; small ones go straight to the manager.
func tieredWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		ID:     primitive.NewObjectID(),
		Name:   "tiered",
		Family: workflow.FamilyApproval,
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.NodeStart},
			{ID: "big", Kind: workflow.NodeCondition, Condition: &workflow.ConditionPayload{
				Rules: []rulechain.Rule{
					{Field: "project_value", Operator: rulechain.OperatorGreaterThan, Value: 50000.0},
				},
			}},
			approvalStep("exec", "Executive Review", false, "executives"),
			approvalStep("mgr", "Manager Review", false, "managers"),
			terminal("ok", workflow.OutcomeApproved),
			terminal("no", workflow.OutcomeRejected),
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "big"},
			{Source: "big", Port: workflow.PortTrue, Target: "exec"},
			{Source: "big", Port: workflow.PortFalse, Target: "mgr"},
			{Source: "exec", Port: workflow.PortApproved, Target: "ok"},
			{Source: "exec", Port: workflow.PortRejected, Target: "no"},
			{Source: "mgr", Port: workflow.PortApproved, Target: "ok"},
			{Source: "mgr", Port: workflow.PortRejected, Target: "no"},
		},
	}
}

func managers(users ...string) *fakeResolver {
	return &fakeResolver{byRole: map[string][]string{"managers": users}}
}

func TestInstantiateAdvancesToFirstApproval(t *testing.T) {
	e := NewEngine(managers("alice"))

	inst, err := e.Instantiate(context.Background(), singleStepWorkflow(false), "estimate", "est-1", rulechain.Snapshot{
		"project_value": 1000.0,
	})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	if inst.Status != StatusRunning {
		t.Fatalf("status = %s, want running", inst.Status)
	}
	if inst.CurrentNodeID != "review" {
		t.Fatalf("current node = %s, want review", inst.CurrentNodeID)
	}
	if inst.StepName != "Manager Review" {
		t.Fatalf("step name = %q", inst.StepName)
	}
	if len(inst.EligibleApprovers) != 1 || inst.EligibleApprovers[0] != "alice" {
		t.Fatalf("eligible approvers = %v", inst.EligibleApprovers)
	}
}

func TestInstantiateRefusesInvalidGraph(t *testing.T) {
	wf := singleStepWorkflow(false)
	wf.Edges = wf.Edges[:1] // approval loses both out-edges

	e := NewEngine(managers("alice"))
	if _, err := e.Instantiate(context.Background(), wf, "estimate", "est-1", nil); err == nil {
		t.Fatal("expected instantiate to refuse an invalid graph")
	}
}

func TestInstanceSnapshotIsIndependent(t *testing.T) {
	wf := singleStepWorkflow(false)
	rec := rulechain.Snapshot{"project_value": 1000.0}

	e := NewEngine(managers("alice"))
	inst, err := e.Instantiate(context.Background(), wf, "estimate", "est-1", rec)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	// Mutating the source workflow and record after the fact must not show
	// up in the instance
	wf.Nodes[1].Approval.StepName = "Renamed"
	rec["project_value"] = 9999999.0

	if inst.nodeByID("review").Approval.StepName == "Renamed" {
		t.Error("graph snapshot shares payloads with the source workflow")
	}
	if inst.Record["project_value"] != 1000.0 {
		t.Error("record snapshot shares storage with the caller's map")
	}
}

func TestConditionRouting(t *testing.T) {
	resolver := &fakeResolver{byRole: map[string][]string{
		"managers":   {"alice"},
		"executives": {"erin"},
	}}
	e := NewEngine(resolver)

	tests := []struct {
		name     string
		amount   float64
		wantNode string
	}{
		{"above threshold routes to executives", 80000, "exec"},
		{"below threshold routes to managers", 10000, "mgr"},
		{"at threshold is not above it", 50000, "mgr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := e.Instantiate(context.Background(), tieredWorkflow(), "estimate", "est-1", rulechain.Snapshot{
				"project_value": tt.amount,
			})
			if err != nil {
				t.Fatalf("instantiate: %v", err)
			}
			if inst.CurrentNodeID != tt.wantNode {
				t.Fatalf("current node = %s, want %s", inst.CurrentNodeID, tt.wantNode)
			}
		})
	}
}

func TestConditionEvalErrorFaultsInstance(t *testing.T) {
	e := NewEngine(managers("alice"))

	// Record is missing project_value entirely
	inst, err := e.Instantiate(context.Background(), tieredWorkflow(), "estimate", "est-1", rulechain.Snapshot{
		"project_type": "construction",
	})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	if inst.Status != StatusFaulted {
		t.Fatalf("status = %s, want faulted", inst.Status)
	}
	if inst.FaultReason == "" {
		t.Fatal("faulted instance has no reason")
	}
	if inst.ConcludedAt == nil {
		t.Fatal("faulted instance has no concluded timestamp")
	}
}

func TestAnyModeFirstApprovalConcludes(t *testing.T) {
	e := NewEngine(managers("alice", "bob"))
	inst, _ := e.Instantiate(context.Background(), singleStepWorkflow(false), "estimate", "est-1", nil)

	if err := e.ApplyDecision(context.Background(), inst, "alice", DecisionApproved, "lgtm"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if inst.Status != StatusApproved {
		t.Fatalf("status = %s, want approved after a single approval", inst.Status)
	}
	if len(inst.Decisions) != 1 || inst.Decisions[0].UserID != "alice" {
		t.Fatalf("decision log = %+v", inst.Decisions)
	}
}

func TestRequireAllWaitsForWholePool(t *testing.T) {
	e := NewEngine(managers("alice", "bob", "carol"))
	inst, _ := e.Instantiate(context.Background(), singleStepWorkflow(true), "estimate", "est-1", nil)

	for _, user := range []string{"alice", "bob"} {
		if err := e.ApplyDecision(context.Background(), inst, user, DecisionApproved, ""); err != nil {
			t.Fatalf("apply %s: %v", user, err)
		}
		if inst.Status != StatusRunning {
			t.Fatalf("instance concluded after %s with approvals outstanding", user)
		}
	}

	if err := e.ApplyDecision(context.Background(), inst, "carol", DecisionApproved, ""); err != nil {
		t.Fatalf("apply carol: %v", err)
	}
	if inst.Status != StatusApproved {
		t.Fatalf("status = %s, want approved after the full pool", inst.Status)
	}
	if len(inst.Decisions) != 3 {
		t.Fatalf("decision log has %d entries, want 3", len(inst.Decisions))
	}
}

func TestRejectionShortCircuitsRequireAll(t *testing.T) {
	e := NewEngine(managers("alice", "bob", "carol"))
	inst, _ := e.Instantiate(context.Background(), singleStepWorkflow(true), "estimate", "est-1", nil)

	if err := e.ApplyDecision(context.Background(), inst, "alice", DecisionApproved, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := e.ApplyDecision(context.Background(), inst, "bob", DecisionRejected, "too expensive"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if inst.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected on the first rejection", inst.Status)
	}
	if inst.Outcome != workflow.OutcomeRejected {
		t.Fatalf("outcome = %s", inst.Outcome)
	}
}

func TestDuplicateApprovalRefused(t *testing.T) {
	e := NewEngine(managers("alice", "bob"))
	inst, _ := e.Instantiate(context.Background(), singleStepWorkflow(true), "estimate", "est-1", nil)

	if err := e.ApplyDecision(context.Background(), inst, "alice", DecisionApproved, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	err := e.ApplyDecision(context.Background(), inst, "alice", DecisionApproved, "again")
	if !errors.Is(err, ErrDuplicateDecision) {
		t.Fatalf("expected ErrDuplicateDecision, got %v", err)
	}

	// The duplicate left no trace and the step still waits on bob
	if len(inst.Decisions) != 1 {
		t.Fatalf("decision log has %d entries, want 1", len(inst.Decisions))
	}
	if inst.Status != StatusRunning {
		t.Fatalf("status = %s, want running", inst.Status)
	}
}

func TestIneligibleUserRefused(t *testing.T) {
	e := NewEngine(managers("alice"))
	inst, _ := e.Instantiate(context.Background(), singleStepWorkflow(false), "estimate", "est-1", nil)

	err := e.ApplyDecision(context.Background(), inst, "mallory", DecisionApproved, "")
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	if inst.Status != StatusRunning || len(inst.Decisions) != 0 {
		t.Fatal("ineligible decision left a trace on the instance")
	}
}

func TestDecisionOnConcludedInstanceRefused(t *testing.T) {
	e := NewEngine(managers("alice", "bob"))
	inst, _ := e.Instantiate(context.Background(), singleStepWorkflow(false), "estimate", "est-1", nil)

	if err := e.ApplyDecision(context.Background(), inst, "alice", DecisionApproved, ""); err != nil {
		t.Fatalf("apply: %v", err)
	}
	err := e.ApplyDecision(context.Background(), inst, "bob", DecisionApproved, "")
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestEmptyApproverPoolStalls(t *testing.T) {
	resolver := managers() // nobody holds the role
	e := NewEngine(resolver)

	inst, err := e.Instantiate(context.Background(), singleStepWorkflow(false), "estimate", "est-1", nil)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	if inst.Status != StatusRunning {
		t.Fatalf("status = %s, want running while stalled", inst.Status)
	}
	if !inst.Stalled {
		t.Fatal("instance with an empty pool is not marked stalled")
	}

	// Decisions are refused while stalled
	if err := e.ApplyDecision(context.Background(), inst, "alice", DecisionApproved, ""); !errors.Is(err, ErrStalled) {
		t.Fatalf("expected ErrStalled, got %v", err)
	}

	// A user gains the role; the sweep unstalls the instance
	resolver.byRole["managers"] = []string{"alice"}
	ok, err := e.RetryStalled(context.Background(), inst)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !ok || inst.Stalled {
		t.Fatal("instance did not unstall after the pool filled")
	}

	if err := e.ApplyDecision(context.Background(), inst, "alice", DecisionApproved, ""); err != nil {
		t.Fatalf("apply after unstall: %v", err)
	}
	if inst.Status != StatusApproved {
		t.Fatalf("status = %s, want approved", inst.Status)
	}
}

func TestResolverFailureLeavesInstanceRetryable(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("store timeout")}
	e := NewEngine(resolver)

	_, err := e.Instantiate(context.Background(), singleStepWorkflow(false), "estimate", "est-1", nil)
	if err == nil {
		t.Fatal("expected instantiate to surface the resolver failure")
	}
}

func TestMultiStepScenario(t *testing.T) {
	resolver := &fakeResolver{byRole: map[string][]string{
		"managers":   {"alice"},
		"executives": {"erin", "frank"},
	}}
	e := NewEngine(resolver)

	// Big project: condition routes to the executive step
	inst, err := e.Instantiate(context.Background(), tieredWorkflow(), "estimate", "est-42", rulechain.Snapshot{
		"project_value": 120000.0,
	})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	if inst.CurrentNodeID != "exec" {
		t.Fatalf("current node = %s, want exec", inst.CurrentNodeID)
	}

	if err := e.ApplyDecision(context.Background(), inst, "erin", DecisionApproved, "within budget"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if inst.Status != StatusApproved {
		t.Fatalf("status = %s, want approved", inst.Status)
	}
	if inst.Outcome != workflow.OutcomeApproved {
		t.Fatalf("outcome = %s", inst.Outcome)
	}
	if inst.CurrentNodeID != "" || len(inst.EligibleApprovers) != 0 {
		t.Fatal("concluded instance still carries step state")
	}
	if len(inst.Decisions) != 1 || inst.Decisions[0].StepName != "Executive Review" {
		t.Fatalf("decision log = %+v", inst.Decisions)
	}
}

// smallProjectsBypassReview: values at or under the threshold skip the
// executive step entirely, the false edge terminating in an approved end.
func smallProjectsBypassReview() *workflow.Workflow {
	return &workflow.Workflow{
		ID:     primitive.NewObjectID(),
		Name:   "bypass small projects",
		Family: workflow.FamilyApproval,
		Nodes: []workflow.Node{
			{ID: "start", Kind: workflow.NodeStart},
			{ID: "big", Kind: workflow.NodeCondition, Condition: &workflow.ConditionPayload{
				Rules: []rulechain.Rule{
					{Field: "project_value", Operator: rulechain.OperatorGreaterThan, Value: 100000.0},
				},
			}},
			approvalStep("exec", "Executive Review", false, "executives"),
			terminal("ok", workflow.OutcomeApproved),
			terminal("no", workflow.OutcomeRejected),
		},
		Edges: []workflow.Edge{
			{Source: "start", Target: "big"},
			{Source: "big", Port: workflow.PortTrue, Target: "exec"},
			{Source: "big", Port: workflow.PortFalse, Target: "ok"},
			{Source: "exec", Port: workflow.PortApproved, Target: "ok"},
			{Source: "exec", Port: workflow.PortRejected, Target: "no"},
		},
	}
}

func TestConditionFalseEdgeConcludesWithoutDecisions(t *testing.T) {
	e := NewEngine(&fakeResolver{byRole: map[string][]string{"executives": {"erin"}}})

	inst, err := e.Instantiate(context.Background(), smallProjectsBypassReview(), "estimate", "est-7", rulechain.Snapshot{
		"project_value": 50000.0,
	})
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	if inst.Status != StatusApproved {
		t.Fatalf("status = %s, want approved", inst.Status)
	}
	if inst.Outcome != workflow.OutcomeApproved {
		t.Fatalf("outcome = %s", inst.Outcome)
	}
	if len(inst.Decisions) != 0 {
		t.Fatalf("decision log = %+v, want empty", inst.Decisions)
	}
	if inst.CurrentNodeID != "" || len(inst.EligibleApprovers) != 0 {
		t.Fatal("concluded instance still carries step state")
	}
	if inst.ConcludedAt == nil {
		t.Fatal("concluded instance has no conclusion time")
	}
}

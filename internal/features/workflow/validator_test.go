package workflow

import (
	"testing"

	"go-estimate/pkg/rulechain"
)

func approvalNode(id string, roles ...string) Node {
	return Node{ID: id, Kind: NodeApproval, Approval: &ApprovalPayload{
		StepName:      id,
		ApproverRoles: roles,
	}}
}

func conditionNode(id string, rules ...rulechain.Rule) Node {
	return Node{ID: id, Kind: NodeCondition, Condition: &ConditionPayload{Rules: rules}}
}

func endNode(id string, outcome Outcome) Node {
	return Node{ID: id, Kind: NodeEnd, End: &EndPayload{Outcome: outcome}}
}

func amountRule() rulechain.Rule {
	return rulechain.Rule{Field: "project_value", Operator: rulechain.OperatorGreaterThan, Value: 1000.0}
}

// validGraph is the smallest executable workflow: start -> approval with both
// ports wired to end nodes.
func validGraph() *Workflow {
	return &Workflow{
		Name:   "manager sign-off",
		Family: FamilyApproval,
		Nodes: []Node{
			{ID: "start", Kind: NodeStart},
			approvalNode("review", "managers"),
			endNode("done", OutcomeApproved),
			endNode("nope", OutcomeRejected),
		},
		Edges: []Edge{
			{Source: "start", Target: "review"},
			{Source: "review", Port: PortApproved, Target: "done"},
			{Source: "review", Port: PortRejected, Target: "nope"},
		},
	}
}

func hasCode(errs []ValidationError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestValidateAcceptsExecutableGraph(t *testing.T) {
	if errs := Validate(validGraph()); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestValidateAcceptsConditionBranches(t *testing.T) {
	w := &Workflow{
		Name:   "tiered approval",
		Family: FamilyApproval,
		Nodes: []Node{
			{ID: "start", Kind: NodeStart},
			conditionNode("big", amountRule()),
			approvalNode("exec", "executives"),
			approvalNode("mgr", "managers"),
			endNode("ok", OutcomeApproved),
			endNode("no", OutcomeRejected),
		},
		Edges: []Edge{
			{Source: "start", Target: "big"},
			{Source: "big", Port: PortTrue, Target: "exec"},
			{Source: "big", Port: PortFalse, Target: "mgr"},
			{Source: "exec", Port: PortApproved, Target: "ok"},
			{Source: "exec", Port: PortRejected, Target: "no"},
			{Source: "mgr", Port: PortApproved, Target: "ok"},
			{Source: "mgr", Port: PortRejected, Target: "no"},
		},
	}
	if errs := Validate(w); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestValidateStructuralErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(w *Workflow)
		wantCode string
	}{
		{
			name: "no start node",
			mutate: func(w *Workflow) {
				w.Nodes = w.Nodes[1:]
				w.Edges = w.Edges[1:]
			},
			wantCode: ErrCodeNoStart,
		},
		{
			name: "multiple start nodes",
			mutate: func(w *Workflow) {
				w.Nodes = append(w.Nodes, Node{ID: "start2", Kind: NodeStart})
				w.Edges = append(w.Edges, Edge{Source: "start2", Target: "review"})
			},
			wantCode: ErrCodeMultipleStart,
		},
		{
			name: "no end node",
			mutate: func(w *Workflow) {
				w.Nodes = w.Nodes[:2]
				w.Edges = w.Edges[:1]
			},
			wantCode: ErrCodeNoEnd,
		},
		{
			name: "duplicate node id",
			mutate: func(w *Workflow) {
				w.Nodes = append(w.Nodes, approvalNode("review", "managers"))
			},
			wantCode: ErrCodeDuplicateNode,
		},
		{
			name: "approval without approver roles",
			mutate: func(w *Workflow) {
				w.Nodes[1].Approval.ApproverRoles = nil
			},
			wantCode: ErrCodeNoApprovers,
		},
		{
			name: "end without outcome",
			mutate: func(w *Workflow) {
				w.Nodes[2].End = nil
			},
			wantCode: ErrCodeMissingPayload,
		},
		{
			name: "edge to missing node",
			mutate: func(w *Workflow) {
				w.Edges = append(w.Edges, Edge{Source: "review", Port: PortApproved, Target: "ghost"})
			},
			wantCode: ErrCodeDanglingEdge,
		},
		{
			name: "wrong port label for node kind",
			mutate: func(w *Workflow) {
				w.Edges[1].Port = PortTrue
			},
			wantCode: ErrCodeBadPort,
		},
		{
			name: "approval missing an outgoing port",
			mutate: func(w *Workflow) {
				w.Edges = w.Edges[:2]
				w.Nodes = w.Nodes[:3]
			},
			wantCode: ErrCodeBadCardinality,
		},
		{
			name: "node with no incoming edge",
			mutate: func(w *Workflow) {
				w.Edges[0].Target = "done"
				w.Edges[0].Port = ""
			},
			wantCode: ErrCodeNoIncoming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := validGraph()
			tt.mutate(w)
			errs := Validate(w)
			if !hasCode(errs, tt.wantCode) {
				t.Fatalf("expected code %s, got %v", tt.wantCode, errs)
			}
		})
	}
}

func TestValidateConditionWithoutRules(t *testing.T) {
	w := validGraph()
	w.Nodes = append(w.Nodes, conditionNode("empty"))
	errs := Validate(w)
	if !hasCode(errs, ErrCodeNoRules) {
		t.Fatalf("expected %s, got %v", ErrCodeNoRules, errs)
	}
}

func TestValidateUnreachableNode(t *testing.T) {
	w := validGraph()
	w.Nodes = append(w.Nodes, approvalNode("island", "managers"), endNode("island_end", OutcomeApproved))
	w.Edges = append(w.Edges,
		Edge{Source: "island", Port: PortApproved, Target: "island_end"},
		Edge{Source: "island", Port: PortRejected, Target: "island_end"},
		Edge{Source: "island_end", Target: "island"}, // give island an incoming edge
	)

	errs := Validate(w)
	if !hasCode(errs, ErrCodeUnreachable) {
		t.Fatalf("expected %s, got %v", ErrCodeUnreachable, errs)
	}
}

func TestValidateNoPathToEnd(t *testing.T) {
	// Both approval ports loop back into the condition subgraph with no end
	// downstream of "stuck".
	w := &Workflow{
		Nodes: []Node{
			{ID: "start", Kind: NodeStart},
			approvalNode("stuck", "managers"),
			approvalNode("stuck2", "managers"),
			endNode("done", OutcomeApproved),
		},
		Edges: []Edge{
			{Source: "start", Target: "stuck"},
			{Source: "stuck", Port: PortApproved, Target: "stuck2"},
			{Source: "stuck", Port: PortRejected, Target: "stuck2"},
			{Source: "stuck2", Port: PortApproved, Target: "stuck"},
			{Source: "stuck2", Port: PortRejected, Target: "stuck"},
		},
	}

	errs := Validate(w)
	if !hasCode(errs, ErrCodeNoPathToEnd) {
		t.Fatalf("expected %s, got %v", ErrCodeNoPathToEnd, errs)
	}
	if !hasCode(errs, ErrCodeCycle) {
		t.Fatalf("expected %s for the loop, got %v", ErrCodeCycle, errs)
	}
}

func TestValidateCycle(t *testing.T) {
	w := validGraph()
	// rejected loops back to the review step instead of ending
	w.Edges[2].Target = "review"
	errs := Validate(w)
	if !hasCode(errs, ErrCodeCycle) {
		t.Fatalf("expected %s, got %v", ErrCodeCycle, errs)
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	w := &Workflow{
		Nodes: []Node{
			approvalNode("lonely"),
		},
	}
	errs := Validate(w)

	for _, want := range []string{ErrCodeNoStart, ErrCodeNoEnd, ErrCodeNoApprovers, ErrCodeBadCardinality} {
		if !hasCode(errs, want) {
			t.Errorf("expected code %s in %v", want, errs)
		}
	}
}

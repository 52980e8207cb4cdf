package workflow

import (
	"testing"
)

func TestBuilderDoesNotMutateSource(t *testing.T) {
	src := validGraph()
	nodeCount := len(src.Nodes)
	edgeCount := len(src.Edges)

	b := NewBuilder(src)
	b.AddNode(conditionNode("gate", amountRule()))
	b.Disconnect("start", "")
	b.Connect("start", "", "gate")
	if _, _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(src.Nodes) != nodeCount || len(src.Edges) != edgeCount {
		t.Fatalf("source graph was mutated: %d nodes, %d edges", len(src.Nodes), len(src.Edges))
	}
}

func TestBuilderAddDuplicateNode(t *testing.T) {
	b := NewBuilder(validGraph())
	b.AddNode(approvalNode("review", "managers"))
	if _, _, err := b.Build(); err == nil {
		t.Fatal("expected error for duplicate node id")
	}
}

func TestBuilderConnectReplacesOccupiedPort(t *testing.T) {
	b := NewBuilder(validGraph())
	b.AddNode(endNode("alt", OutcomeRevision))
	// Re-dragging the rejected connection must not leave two edges on the port
	b.Connect("review", PortRejected, "alt")

	w, _, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	edges := 0
	for _, e := range w.Edges {
		if e.Source == "review" && e.Port == PortRejected {
			edges++
			if e.Target != "alt" {
				t.Fatalf("rejected port targets %s, want alt", e.Target)
			}
		}
	}
	if edges != 1 {
		t.Fatalf("expected 1 edge on rejected port, got %d", edges)
	}
}

func TestBuilderRemoveNodeDropsEdges(t *testing.T) {
	b := NewBuilder(validGraph())
	b.RemoveNode("review")

	w, errs, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, e := range w.Edges {
		if e.Source == "review" || e.Target == "review" {
			t.Fatalf("edge %v still references the removed node", e)
		}
	}
	// The gutted graph is a saveable draft but cannot be activated
	if len(errs) == 0 {
		t.Fatal("expected validation errors after removing the only approval step")
	}
}

func TestBuilderUnknownNodeReference(t *testing.T) {
	b := NewBuilder(validGraph())
	b.Connect("ghost", PortApproved, "done")
	if _, _, err := b.Build(); err == nil {
		t.Fatal("expected error for unknown source node")
	}
}

func TestBuilderFirstErrorWins(t *testing.T) {
	b := NewBuilder(validGraph())
	b.AddNode(Node{Kind: NodeApproval}) // missing id
	b.Connect("start", "", "done")      // would otherwise succeed
	_, _, err := b.Build()
	if err == nil || err.Error() != "node id is required" {
		t.Fatalf("expected the first operation error, got %v", err)
	}
}

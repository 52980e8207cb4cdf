package workflow

import (
	"errors"
	"fmt"
)

// Builder applies graph edits to a private copy of a workflow and hands back
// a new value from Build. The source workflow is never mutated, so editors
// can apply a batch of operations and only persist the result if they like
// the validation outcome.
type Builder struct {
	w   *Workflow
	err error
}

// NewBuilder deep-copies the workflow into a fresh builder.
func NewBuilder(w *Workflow) *Builder {
	return &Builder{w: cloneGraph(w)}
}

// Clone returns a deep copy of the workflow. Instances snapshot graphs with
// it so later edits never leak into in-flight executions.
func (w *Workflow) Clone() *Workflow {
	return cloneGraph(w)
}

// AddNode appends a node. Node ids must be unique within the graph.
func (b *Builder) AddNode(n Node) *Builder {
	if b.err != nil {
		return b
	}
	if n.ID == "" {
		b.err = errors.New("node id is required")
		return b
	}
	if b.w.NodeByID(n.ID) != nil {
		b.err = fmt.Errorf("node %q already exists", n.ID)
		return b
	}
	b.w.Nodes = append(b.w.Nodes, n)
	return b
}

// RemoveNode deletes a node and every edge touching it.
func (b *Builder) RemoveNode(id string) *Builder {
	if b.err != nil {
		return b
	}
	if b.w.NodeByID(id) == nil {
		b.err = fmt.Errorf("node %q not found", id)
		return b
	}

	nodes := b.w.Nodes[:0]
	for _, n := range b.w.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	b.w.Nodes = nodes

	edges := b.w.Edges[:0]
	for _, e := range b.w.Edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	b.w.Edges = edges
	return b
}

// Connect adds a port-labeled edge. Reconnecting an occupied port replaces
// the previous edge, matching how the visual editor re-drags a connection.
func (b *Builder) Connect(source, port, target string) *Builder {
	if b.err != nil {
		return b
	}
	if b.w.NodeByID(source) == nil {
		b.err = fmt.Errorf("node %q not found", source)
		return b
	}
	if b.w.NodeByID(target) == nil {
		b.err = fmt.Errorf("node %q not found", target)
		return b
	}

	edges := b.w.Edges[:0]
	for _, e := range b.w.Edges {
		if !(e.Source == source && e.Port == port) {
			edges = append(edges, e)
		}
	}
	b.w.Edges = append(edges, Edge{Source: source, Port: port, Target: target})
	return b
}

// Disconnect removes the edge leaving source on port, if any.
func (b *Builder) Disconnect(source, port string) *Builder {
	if b.err != nil {
		return b
	}
	edges := b.w.Edges[:0]
	for _, e := range b.w.Edges {
		if !(e.Source == source && e.Port == port) {
			edges = append(edges, e)
		}
	}
	b.w.Edges = edges
	return b
}

// Build returns the edited graph and its current validation state. The
// operation error (bad node reference etc.) takes precedence; validation
// errors are informational for drafts and binding for activation.
func (b *Builder) Build() (*Workflow, []ValidationError, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	return b.w, Validate(b.w), nil
}

func cloneGraph(w *Workflow) *Workflow {
	out := *w

	out.Nodes = make([]Node, len(w.Nodes))
	for i, n := range w.Nodes {
		cn := n
		if n.Approval != nil {
			p := *n.Approval
			p.ApproverRoles = append([]string(nil), n.Approval.ApproverRoles...)
			cn.Approval = &p
		}
		if n.Condition != nil {
			p := *n.Condition
			p.Rules = append(p.Rules[:0:0], n.Condition.Rules...)
			cn.Condition = &p
		}
		if n.End != nil {
			p := *n.End
			cn.End = &p
		}
		out.Nodes[i] = cn
	}

	out.Edges = append([]Edge(nil), w.Edges...)

	if w.Trigger != nil {
		t := *w.Trigger
		t.CostTypes = append([]string(nil), w.Trigger.CostTypes...)
		out.Trigger = &t
	}
	out.SelectionRules = append(out.SelectionRules[:0:0], w.SelectionRules...)

	return &out
}

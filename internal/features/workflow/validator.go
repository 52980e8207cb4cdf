package workflow

import "fmt"

// ValidationError is a user-facing structural problem in a workflow graph.
// Validation errors block activation and instantiation but never block
// saving a draft.
type ValidationError struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.NodeID == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (node %s)", e.Message, e.NodeID)
}

const (
	ErrCodeNoStart        = "no_start"
	ErrCodeMultipleStart  = "multiple_start"
	ErrCodeNoEnd          = "no_end"
	ErrCodeDuplicateNode  = "duplicate_node"
	ErrCodeDanglingEdge   = "dangling_edge"
	ErrCodeBadPort        = "bad_port"
	ErrCodeNoApprovers    = "no_approvers"
	ErrCodeNoRules        = "no_rules"
	ErrCodeBadCardinality = "bad_cardinality"
	ErrCodeNoIncoming     = "no_incoming"
	ErrCodeUnreachable    = "unreachable"
	ErrCodeNoPathToEnd    = "no_path_to_end"
	ErrCodeCycle          = "cycle"
	ErrCodeMissingPayload = "missing_payload"
)

// validPorts lists the out-edge ports each kind must use, in the exact
// multiplicity required. End nodes have none.
var validPorts = map[NodeKind][]string{
	NodeStart:     {""},
	NodeApproval:  {PortApproved, PortRejected},
	NodeCondition: {PortTrue, PortFalse},
	NodeEnd:       {},
}

// Validate runs every structural check and returns all violations. An empty
// result means the graph is executable.
func Validate(w *Workflow) []ValidationError {
	var errs []ValidationError

	byID := make(map[string]*Node, len(w.Nodes))
	startCount := 0
	endCount := 0
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if _, dup := byID[n.ID]; dup {
			errs = append(errs, ValidationError{Code: ErrCodeDuplicateNode, NodeID: n.ID, Message: "duplicate node id"})
			continue
		}
		byID[n.ID] = n

		switch n.Kind {
		case NodeStart:
			startCount++
		case NodeEnd:
			endCount++
			if n.End == nil {
				errs = append(errs, ValidationError{Code: ErrCodeMissingPayload, NodeID: n.ID, Message: "end node is missing its outcome"})
			}
		case NodeApproval:
			if n.Approval == nil || len(n.Approval.ApproverRoles) == 0 {
				errs = append(errs, ValidationError{Code: ErrCodeNoApprovers, NodeID: n.ID, Message: "approval step has no approver roles"})
			}
		case NodeCondition:
			if n.Condition == nil || len(n.Condition.Rules) == 0 {
				errs = append(errs, ValidationError{Code: ErrCodeNoRules, NodeID: n.ID, Message: "condition node has no rules"})
			}
		}
	}

	if startCount == 0 {
		errs = append(errs, ValidationError{Code: ErrCodeNoStart, Message: "workflow has no start node"})
	} else if startCount > 1 {
		errs = append(errs, ValidationError{Code: ErrCodeMultipleStart, Message: "workflow has more than one start node"})
	}
	if endCount == 0 {
		errs = append(errs, ValidationError{Code: ErrCodeNoEnd, Message: "workflow has no end node"})
	}

	// Edge integrity and port labels
	incoming := make(map[string]int)
	outPorts := make(map[string][]string)
	for _, e := range w.Edges {
		src, srcOK := byID[e.Source]
		_, dstOK := byID[e.Target]
		if !srcOK || !dstOK {
			errs = append(errs, ValidationError{Code: ErrCodeDanglingEdge, Message: fmt.Sprintf("edge %s->%s references a missing node", e.Source, e.Target)})
			continue
		}
		incoming[e.Target]++
		outPorts[e.Source] = append(outPorts[e.Source], e.Port)

		if src != nil && !portAllowed(src.Kind, e.Port) {
			errs = append(errs, ValidationError{Code: ErrCodeBadPort, NodeID: e.Source, Message: fmt.Sprintf("port %q is not valid for a %s node", e.Port, src.Kind)})
		}
	}

	// Out-edge cardinality: every required port present exactly once
	for id, n := range byID {
		want := validPorts[n.Kind]
		have := outPorts[id]
		if !portsMatch(want, have) {
			errs = append(errs, ValidationError{
				Code:   ErrCodeBadCardinality,
				NodeID: id,
				Message: fmt.Sprintf("%s node must have exactly %d outgoing edge(s) with distinct ports %v, found %d",
					n.Kind, len(want), want, len(have)),
			})
		}
		if n.Kind != NodeStart && incoming[id] == 0 {
			errs = append(errs, ValidationError{Code: ErrCodeNoIncoming, NodeID: id, Message: "node has no incoming edge"})
		}
	}

	// Traversal checks only make sense on a graph with a unique start
	if startCount == 1 {
		start := w.StartNode()

		reachable := forwardReach(w, start.ID)
		for id := range byID {
			if !reachable[id] {
				errs = append(errs, ValidationError{Code: ErrCodeUnreachable, NodeID: id, Message: "node is unreachable from start"})
			}
		}

		reachesEnd := reverseReach(w, byID)
		for id, n := range byID {
			if n.Kind != NodeEnd && !reachesEnd[id] {
				errs = append(errs, ValidationError{Code: ErrCodeNoPathToEnd, NodeID: id, Message: "no path from node to any end node"})
			}
		}
	}

	if onCycle := findCycle(w, byID); onCycle != "" {
		errs = append(errs, ValidationError{Code: ErrCodeCycle, NodeID: onCycle, Message: "workflow graph contains a cycle"})
	}

	return errs
}

func portAllowed(kind NodeKind, port string) bool {
	for _, p := range validPorts[kind] {
		if p == port {
			return true
		}
	}
	return false
}

// portsMatch checks the multiset of used ports equals the required set.
func portsMatch(want, have []string) bool {
	if len(want) != len(have) {
		return false
	}
	seen := make(map[string]bool, len(have))
	for _, p := range have {
		if seen[p] {
			return false
		}
		seen[p] = true
	}
	for _, p := range want {
		if !seen[p] {
			return false
		}
	}
	return true
}

func forwardReach(w *Workflow, from string) map[string]bool {
	visited := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, e := range w.OutEdges(id) {
			stack = append(stack, e.Target)
		}
	}
	return visited
}

// reverseReach marks every node with a path to some End node.
func reverseReach(w *Workflow, byID map[string]*Node) map[string]bool {
	parents := make(map[string][]string)
	for _, e := range w.Edges {
		parents[e.Target] = append(parents[e.Target], e.Source)
	}

	visited := map[string]bool{}
	var stack []string
	for id, n := range byID {
		if n.Kind == NodeEnd {
			stack = append(stack, id)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		stack = append(stack, parents[id]...)
	}
	return visited
}

// findCycle runs DFS with a recursion stack; returns a node on a cycle or "".
func findCycle(w *Workflow, byID map[string]*Node) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(byID))

	var visit func(id string) string
	visit = func(id string) string {
		color[id] = gray
		for _, e := range w.OutEdges(id) {
			switch color[e.Target] {
			case gray:
				return e.Target
			case white:
				if hit := visit(e.Target); hit != "" {
					return hit
				}
			}
		}
		color[id] = black
		return ""
	}

	for id := range byID {
		if color[id] == white {
			if hit := visit(id); hit != "" {
				return hit
			}
		}
	}
	return ""
}

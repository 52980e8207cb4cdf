package workflow

import (
	"context"
	"errors"
	"slices"

	"go-estimate/pkg/rulechain"
)

// ErrNoApplicableWorkflow is returned when no active workflow matches a
// submitted record. The submission caller decides whether that blocks the
// submission; no instance is created.
var ErrNoApplicableWorkflow = errors.New("no applicable workflow for record")

// WorkflowSelector picks the workflow a submitted record should run through.
type WorkflowSelector interface {
	SelectWorkflow(ctx context.Context, family Family, rec rulechain.Snapshot) (*Workflow, error)
}

type WorkflowSelectorImpl struct {
	Repo WorkflowRepository
}

func NewWorkflowSelector(repo WorkflowRepository) WorkflowSelector {
	return &WorkflowSelectorImpl{Repo: repo}
}

func (s *WorkflowSelectorImpl) SelectWorkflow(ctx context.Context, family Family, rec rulechain.Snapshot) (*Workflow, error) {
	candidates, err := s.Repo.ListActiveByFamily(ctx, family)
	if err != nil {
		return nil, err
	}

	switch family {
	case FamilyCostReview:
		return selectCostReview(candidates, rec)
	default:
		return selectApproval(candidates, rec)
	}
}

// selectCostReview picks the most specific trigger: the highest min_amount
// the record still meets, with the cost-type filter (when present) also
// matching. Threshold ties break on priority for determinism.
func selectCostReview(candidates []Workflow, rec rulechain.Snapshot) (*Workflow, error) {
	amount, _ := rec["calculated_value"].(float64)
	costType, _ := rec["cost_type"].(string)

	var best *Workflow
	for i := range candidates {
		wf := &candidates[i]
		if wf.Trigger == nil {
			continue
		}
		if amount < wf.Trigger.MinAmount {
			continue
		}
		if len(wf.Trigger.CostTypes) > 0 && !slices.Contains(wf.Trigger.CostTypes, costType) {
			continue
		}

		if best == nil ||
			wf.Trigger.MinAmount > best.Trigger.MinAmount ||
			(wf.Trigger.MinAmount == best.Trigger.MinAmount && wf.Priority < best.Priority) {
			best = wf
		}
	}

	if best == nil {
		return nil, ErrNoApplicableWorkflow
	}
	return best, nil
}

// selectApproval matches rule-carrying workflows first (priority order),
// then falls back to the tenant's default workflow.
func selectApproval(candidates []Workflow, rec rulechain.Snapshot) (*Workflow, error) {
	slices.SortFunc(candidates, func(a, b Workflow) int {
		if a.Priority != b.Priority {
			return a.Priority - b.Priority
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})

	for i := range candidates {
		wf := &candidates[i]
		if len(wf.SelectionRules) == 0 {
			continue
		}
		// A selection chain that cannot be evaluated just means "does not
		// match": nothing is running yet, so there is no instance to fault.
		match, err := rulechain.Evaluate(wf.SelectionRules, rec)
		if err == nil && match {
			return wf, nil
		}
	}

	for i := range candidates {
		if candidates[i].IsDefault {
			return &candidates[i], nil
		}
	}

	return nil, ErrNoApplicableWorkflow
}

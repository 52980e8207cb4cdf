package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-estimate/pkg/rulechain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeRepo serves a fixed catalog; only ListActiveByFamily is used by the
// selector.
type fakeRepo struct {
	WorkflowRepository
	workflows []Workflow
}

func (f *fakeRepo) ListActiveByFamily(ctx context.Context, family Family) ([]Workflow, error) {
	var out []Workflow
	for _, w := range f.workflows {
		if w.Family == family && w.Active {
			out = append(out, w)
		}
	}
	return out, nil
}

func activeWorkflow(name string, family Family) Workflow {
	return Workflow{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Family:    family,
		Active:    true,
		CreatedAt: time.Now(),
	}
}

func TestSelectCostReviewPicksHighestMetThreshold(t *testing.T) {
	small := activeWorkflow("over 1k", FamilyCostReview)
	small.Trigger = &TriggerConditions{MinAmount: 1000}
	big := activeWorkflow("over 10k", FamilyCostReview)
	big.Trigger = &TriggerConditions{MinAmount: 10000}

	sel := NewWorkflowSelector(&fakeRepo{workflows: []Workflow{small, big}})

	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{"meets both thresholds", 25000, "over 10k"},
		{"meets only the lower", 5000, "over 1k"},
		{"exactly at the higher", 10000, "over 10k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sel.SelectWorkflow(context.Background(), FamilyCostReview, rulechain.Snapshot{
				"calculated_value": tt.amount,
			})
			if err != nil {
				t.Fatalf("select: %v", err)
			}
			if got.Name != tt.want {
				t.Fatalf("selected %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestSelectCostReviewFiltersCostType(t *testing.T) {
	labor := activeWorkflow("labor review", FamilyCostReview)
	labor.Trigger = &TriggerConditions{MinAmount: 1000, CostTypes: []string{"labor"}}
	any := activeWorkflow("general review", FamilyCostReview)
	any.Trigger = &TriggerConditions{MinAmount: 500}

	sel := NewWorkflowSelector(&fakeRepo{workflows: []Workflow{labor, any}})

	got, err := sel.SelectWorkflow(context.Background(), FamilyCostReview, rulechain.Snapshot{
		"calculated_value": 2000.0,
		"cost_type":        "material",
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Name != "general review" {
		t.Fatalf("selected %q, want the type-agnostic workflow", got.Name)
	}

	got, err = sel.SelectWorkflow(context.Background(), FamilyCostReview, rulechain.Snapshot{
		"calculated_value": 2000.0,
		"cost_type":        "labor",
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Name != "labor review" {
		t.Fatalf("selected %q, want the labor workflow", got.Name)
	}
}

func TestSelectCostReviewBelowAllThresholds(t *testing.T) {
	wf := activeWorkflow("over 1k", FamilyCostReview)
	wf.Trigger = &TriggerConditions{MinAmount: 1000}
	sel := NewWorkflowSelector(&fakeRepo{workflows: []Workflow{wf}})

	_, err := sel.SelectWorkflow(context.Background(), FamilyCostReview, rulechain.Snapshot{
		"calculated_value": 500.0,
	})
	if !errors.Is(err, ErrNoApplicableWorkflow) {
		t.Fatalf("expected ErrNoApplicableWorkflow, got %v", err)
	}
}

func TestSelectApprovalRulesBeatDefault(t *testing.T) {
	def := activeWorkflow("default", FamilyApproval)
	def.IsDefault = true

	construction := activeWorkflow("construction", FamilyApproval)
	construction.SelectionRules = []rulechain.Rule{
		{Field: "project_type", Operator: rulechain.OperatorEquals, Value: "construction"},
	}

	sel := NewWorkflowSelector(&fakeRepo{workflows: []Workflow{def, construction}})

	got, err := sel.SelectWorkflow(context.Background(), FamilyApproval, rulechain.Snapshot{
		"project_type": "construction",
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Name != "construction" {
		t.Fatalf("selected %q, want the rule-matched workflow", got.Name)
	}

	got, err = sel.SelectWorkflow(context.Background(), FamilyApproval, rulechain.Snapshot{
		"project_type": "renovation",
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Name != "default" {
		t.Fatalf("selected %q, want the default fallback", got.Name)
	}
}

func TestSelectApprovalPriorityOrder(t *testing.T) {
	lowPri := activeWorkflow("broad", FamilyApproval)
	lowPri.Priority = 5
	lowPri.SelectionRules = []rulechain.Rule{
		{Field: "project_value", Operator: rulechain.OperatorGreaterThan, Value: 0.0},
	}

	highPri := activeWorkflow("specific", FamilyApproval)
	highPri.Priority = 1
	highPri.SelectionRules = []rulechain.Rule{
		{Field: "project_value", Operator: rulechain.OperatorGreaterThan, Value: 0.0},
	}

	sel := NewWorkflowSelector(&fakeRepo{workflows: []Workflow{lowPri, highPri}})

	got, err := sel.SelectWorkflow(context.Background(), FamilyApproval, rulechain.Snapshot{
		"project_value": 100.0,
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Name != "specific" {
		t.Fatalf("selected %q, want the lower priority number", got.Name)
	}
}

func TestSelectApprovalBrokenRulesMeanNoMatch(t *testing.T) {
	broken := activeWorkflow("broken", FamilyApproval)
	broken.SelectionRules = []rulechain.Rule{
		{Field: "no_such_field", Operator: rulechain.OperatorEquals, Value: "x"},
	}
	def := activeWorkflow("default", FamilyApproval)
	def.IsDefault = true

	sel := NewWorkflowSelector(&fakeRepo{workflows: []Workflow{broken, def}})

	got, err := sel.SelectWorkflow(context.Background(), FamilyApproval, rulechain.Snapshot{
		"project_type": "construction",
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if got.Name != "default" {
		t.Fatalf("selected %q, want the default after the broken chain", got.Name)
	}
}

func TestSelectApprovalNothingMatches(t *testing.T) {
	wf := activeWorkflow("rules only", FamilyApproval)
	wf.SelectionRules = []rulechain.Rule{
		{Field: "project_type", Operator: rulechain.OperatorEquals, Value: "construction"},
	}
	sel := NewWorkflowSelector(&fakeRepo{workflows: []Workflow{wf}})

	_, err := sel.SelectWorkflow(context.Background(), FamilyApproval, rulechain.Snapshot{
		"project_type": "renovation",
	})
	if !errors.Is(err, ErrNoApplicableWorkflow) {
		t.Fatalf("expected ErrNoApplicableWorkflow, got %v", err)
	}
}

package rulechain

import (
	"errors"
	"testing"
)

func TestEvaluateChains(t *testing.T) {
	rec := Snapshot{
		"calculated_value": 150000.0,
		"project_type":     "Retrofit",
		"profit_margin":    12.5,
		"client_name":      "Acme Industrial",
	}

	tests := []struct {
		name  string
		rules []Rule
		want  bool
	}{
		{
			name: "AND chain both true",
			rules: []Rule{
				{Field: "calculated_value", Operator: OperatorGreaterThan, Value: 100000, Connector: ConnectorAnd},
				{Field: "project_type", Operator: OperatorEquals, Value: "Retrofit"},
			},
			want: true,
		},
		{
			name: "AND chain second false",
			rules: []Rule{
				{Field: "calculated_value", Operator: OperatorGreaterThan, Value: 100000, Connector: ConnectorAnd},
				{Field: "project_type", Operator: OperatorEquals, Value: "FM"},
			},
			want: false,
		},
		{
			name: "OR rescues false head",
			rules: []Rule{
				{Field: "calculated_value", Operator: OperatorLessThan, Value: 1000, Connector: ConnectorOr},
				{Field: "project_type", Operator: OperatorEquals, Value: "Retrofit"},
			},
			want: true,
		},
		{
			name: "left to right fold, not precedence",
			// ((false OR true) AND false) = false; precedence parsing would give true
			rules: []Rule{
				{Field: "calculated_value", Operator: OperatorLessThan, Value: 1000, Connector: ConnectorOr},
				{Field: "project_type", Operator: OperatorEquals, Value: "Retrofit", Connector: ConnectorAnd},
				{Field: "profit_margin", Operator: OperatorGreaterThan, Value: 50},
			},
			want: false,
		},
		{
			name: "between inclusive",
			rules: []Rule{
				{Field: "calculated_value", Operator: OperatorBetween, Value: []interface{}{150000, 200000}},
			},
			want: true,
		},
		{
			name: "in list from delimited string",
			rules: []Rule{
				{Field: "project_type", Operator: OperatorIn, Value: "Retrofit, FM, New Build"},
			},
			want: true,
		},
		{
			name: "not_in list",
			rules: []Rule{
				{Field: "project_type", Operator: OperatorNotIn, Value: []interface{}{"FM", "New Build"}},
			},
			want: true,
		},
		{
			name: "contains is case insensitive",
			rules: []Rule{
				{Field: "client_name", Operator: OperatorContains, Value: "acme"},
			},
			want: true,
		},
		{
			name: "not_contains",
			rules: []Rule{
				{Field: "client_name", Operator: OperatorNotContains, Value: "Gov"},
			},
			want: true,
		},
		{
			name: "numeric comparison is numeric not lexicographic",
			rules: []Rule{
				// "9" < "100000" lexicographically would be false
				{Field: "calculated_value", Operator: OperatorGreaterThan, Value: "9"},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.rules, rec)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	rec := Snapshot{
		"calculated_value": 150000.0,
		"project_type":     "Retrofit",
	}

	tests := []struct {
		name  string
		rules []Rule
	}{
		{name: "empty chain", rules: nil},
		{
			name:  "unknown field",
			rules: []Rule{{Field: "unknown_field", Operator: OperatorEquals, Value: 1}},
		},
		{
			name:  "field missing from snapshot",
			rules: []Rule{{Field: "profit_margin", Operator: OperatorGreaterThan, Value: 1}},
		},
		{
			name:  "type mismatch on rule value",
			rules: []Rule{{Field: "calculated_value", Operator: OperatorGreaterThan, Value: "not-a-number"}},
		},
		{
			name:  "operator invalid for text field",
			rules: []Rule{{Field: "project_type", Operator: OperatorGreaterThan, Value: "A"}},
		},
		{
			name:  "between with one bound",
			rules: []Rule{{Field: "calculated_value", Operator: OperatorBetween, Value: []interface{}{100}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.rules, rec)
			if err == nil {
				t.Fatal("Evaluate() expected error, got nil")
			}
			var evalErr *EvalError
			if !errors.As(err, &evalErr) {
				t.Errorf("expected *EvalError, got %T", err)
			}
		})
	}
}

func TestEvaluateMistypedSnapshotValue(t *testing.T) {
	rec := Snapshot{"calculated_value": "lots"}
	_, err := Evaluate([]Rule{{Field: "calculated_value", Operator: OperatorGreaterThan, Value: 10}}, rec)
	if err == nil {
		t.Fatal("expected evaluation error for mistyped snapshot value, got nil")
	}
}

func TestEvaluateBsonNumericShapes(t *testing.T) {
	// bson decoding hands back int32/int64 depending on the stored width
	rec := Snapshot{"duration_months": int32(18), "total_labor_cost": int64(420000)}

	ok, err := Evaluate([]Rule{
		{Field: "duration_months", Operator: OperatorGreaterEq, Value: 12, Connector: ConnectorAnd},
		{Field: "total_labor_cost", Operator: OperatorLessEq, Value: 500000.0},
	}, rec)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !ok {
		t.Error("Evaluate() = false, want true")
	}
}

// Package rulechain evaluates flat AND/OR rule chains against point-in-time
// record snapshots. Rules are authored as data on condition nodes and on
// workflow selection criteria; evaluation is pure and side-effect free.
package rulechain

import (
	"fmt"
	"strconv"
	"strings"
)

type FieldKind string

const (
	FieldNumeric FieldKind = "numeric"
	FieldText    FieldKind = "text"
)

// Schema maps record attribute names to their declared kinds.
type Schema map[string]FieldKind

// RecordSchema is the fixed attribute schema shared by estimate and
// cost-entry snapshots. Callers never evaluate against live records, only
// against a snapshot captured at instantiation time.
var RecordSchema = Schema{
	"project_value":       FieldNumeric,
	"calculated_value":    FieldNumeric,
	"profit_margin":       FieldNumeric,
	"duration_months":     FieldNumeric,
	"total_labor_cost":    FieldNumeric,
	"total_material_cost": FieldNumeric,
	"project_type":        FieldText,
	"client_name":         FieldText,
	"cost_type":           FieldText,
}

type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorGreaterThan Operator = "gt"
	OperatorGreaterEq   Operator = "gte"
	OperatorLessThan    Operator = "lt"
	OperatorLessEq      Operator = "lte"
	OperatorBetween     Operator = "between"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "not_in"
	OperatorContains    Operator = "contains"
	OperatorNotContains Operator = "not_contains"
)

type Connector string

const (
	ConnectorAnd Connector = "AND"
	ConnectorOr  Connector = "OR"
)

// Rule is one (field, operator, value) test. Connector joins this rule's
// result with the NEXT rule in the chain; the last rule's connector is
// ignored, as is an empty one.
type Rule struct {
	Field     string      `json:"field" bson:"field"`
	Operator  Operator    `json:"operator" bson:"operator"`
	Value     interface{} `json:"value" bson:"value"`
	Connector Connector   `json:"connector,omitempty" bson:"connector,omitempty"`
}

// Snapshot is a flat copy of record attributes keyed by schema field name.
type Snapshot map[string]interface{}

// EvalError reports a chain that cannot be resolved against the snapshot.
// Callers must treat it as a hard fault, never as "false": guessing a
// branch would mis-route a financial approval.
type EvalError struct {
	Field  string
	Reason string
}

func (e *EvalError) Error() string {
	if e.Field == "" {
		return "rule evaluation failed: " + e.Reason
	}
	return fmt.Sprintf("rule evaluation failed on field %q: %s", e.Field, e.Reason)
}

// Evaluate folds the chain left to right against the fixed record schema.
func Evaluate(rules []Rule, rec Snapshot) (bool, error) {
	return EvaluateWithSchema(rules, rec, RecordSchema)
}

// EvaluateWithSchema is Evaluate with an explicit schema.
func EvaluateWithSchema(rules []Rule, rec Snapshot, schema Schema) (bool, error) {
	if len(rules) == 0 {
		return false, &EvalError{Reason: "empty rule chain"}
	}

	result, err := applyOperator(rules[0], rec, schema)
	if err != nil {
		return false, err
	}

	for i := 1; i < len(rules); i++ {
		next, err := applyOperator(rules[i], rec, schema)
		if err != nil {
			return false, err
		}
		switch rules[i-1].Connector {
		case ConnectorOr:
			result = result || next
		case ConnectorAnd, "":
			result = result && next
		default:
			return false, &EvalError{Field: rules[i-1].Field, Reason: fmt.Sprintf("unknown connector %q", rules[i-1].Connector)}
		}
	}

	return result, nil
}

func applyOperator(rule Rule, rec Snapshot, schema Schema) (bool, error) {
	kind, ok := schema[rule.Field]
	if !ok {
		return false, &EvalError{Field: rule.Field, Reason: "field not in schema"}
	}

	raw, ok := rec[rule.Field]
	if !ok {
		return false, &EvalError{Field: rule.Field, Reason: "field missing from record snapshot"}
	}

	switch kind {
	case FieldNumeric:
		return applyNumeric(rule, raw)
	case FieldText:
		return applyText(rule, raw)
	default:
		return false, &EvalError{Field: rule.Field, Reason: fmt.Sprintf("unknown field kind %q", kind)}
	}
}

func applyNumeric(rule Rule, raw interface{}) (bool, error) {
	val, err := toFloat(raw)
	if err != nil {
		return false, &EvalError{Field: rule.Field, Reason: err.Error()}
	}

	switch rule.Operator {
	case OperatorEquals, OperatorNotEquals, OperatorGreaterThan, OperatorGreaterEq, OperatorLessThan, OperatorLessEq:
		ref, err := toFloat(rule.Value)
		if err != nil {
			return false, &EvalError{Field: rule.Field, Reason: "rule value is not numeric: " + err.Error()}
		}
		switch rule.Operator {
		case OperatorEquals:
			return val == ref, nil
		case OperatorNotEquals:
			return val != ref, nil
		case OperatorGreaterThan:
			return val > ref, nil
		case OperatorGreaterEq:
			return val >= ref, nil
		case OperatorLessThan:
			return val < ref, nil
		default:
			return val <= ref, nil
		}

	case OperatorBetween:
		bounds, err := toFloatList(rule.Value)
		if err != nil {
			return false, &EvalError{Field: rule.Field, Reason: "between value: " + err.Error()}
		}
		if len(bounds) != 2 {
			return false, &EvalError{Field: rule.Field, Reason: "between requires exactly two bounds"}
		}
		return val >= bounds[0] && val <= bounds[1], nil

	case OperatorIn, OperatorNotIn:
		list, err := toFloatList(rule.Value)
		if err != nil {
			return false, &EvalError{Field: rule.Field, Reason: "list value: " + err.Error()}
		}
		found := false
		for _, item := range list {
			if item == val {
				found = true
				break
			}
		}
		if rule.Operator == OperatorIn {
			return found, nil
		}
		return !found, nil

	default:
		return false, &EvalError{Field: rule.Field, Reason: fmt.Sprintf("operator %q not valid for numeric field", rule.Operator)}
	}
}

func applyText(rule Rule, raw interface{}) (bool, error) {
	val, ok := raw.(string)
	if !ok {
		return false, &EvalError{Field: rule.Field, Reason: fmt.Sprintf("expected text, got %T", raw)}
	}

	switch rule.Operator {
	case OperatorEquals, OperatorNotEquals:
		ref, ok := rule.Value.(string)
		if !ok {
			return false, &EvalError{Field: rule.Field, Reason: "rule value is not text"}
		}
		if rule.Operator == OperatorEquals {
			return val == ref, nil
		}
		return val != ref, nil

	case OperatorContains, OperatorNotContains:
		ref, ok := rule.Value.(string)
		if !ok {
			return false, &EvalError{Field: rule.Field, Reason: "rule value is not text"}
		}
		found := strings.Contains(strings.ToLower(val), strings.ToLower(ref))
		if rule.Operator == OperatorContains {
			return found, nil
		}
		return !found, nil

	case OperatorIn, OperatorNotIn:
		list, err := toStringList(rule.Value)
		if err != nil {
			return false, &EvalError{Field: rule.Field, Reason: "list value: " + err.Error()}
		}
		found := false
		for _, item := range list {
			if item == val {
				found = true
				break
			}
		}
		if rule.Operator == OperatorIn {
			return found, nil
		}
		return !found, nil

	default:
		return false, &EvalError{Field: rule.Field, Reason: fmt.Sprintf("operator %q not valid for text field", rule.Operator)}
	}
}

// toFloat accepts the numeric shapes the bson and json decoders produce.
func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toFloatList(v interface{}) ([]float64, error) {
	items, err := toList(v)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		f, err := toFloat(item)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func toStringList(v interface{}) ([]string, error) {
	items, err := toList(v)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected text list item, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// toList accepts a decoded slice or a comma-delimited string.
func toList(v interface{}) ([]interface{}, error) {
	switch list := v.(type) {
	case []interface{}:
		return list, nil
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, nil
	case string:
		parts := strings.Split(list, ",")
		out := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}

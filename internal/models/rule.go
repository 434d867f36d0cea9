package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type Field string

const (
	FieldTitle       Field = "title"
	FieldContent     Field = "content"
	FieldTags        Field = "tags"
	FieldCreatedDate Field = "created_date"
	FieldUpdatedDate Field = "updated_date"
)

type Operator string

const (
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpHasAny      Operator = "has_any"
	OpHasAll      Operator = "has_all"
	OpBefore      Operator = "before"
	OpAfter       Operator = "after"
	OpLastNDays   Operator = "last_n_days"
)

var (
	ErrInvalidField    = errors.New("models: invalid rule field")
	ErrInvalidOperator = errors.New("models: operator not allowed for field")
	ErrEmptyValue      = errors.New("models: rule value is empty")
)

var fieldOperators = map[Field][]Operator{
	FieldTitle:       {OpContains, OpNotContains, OpStartsWith, OpEndsWith, OpEquals, OpNotEquals},
	FieldContent:     {OpContains, OpNotContains},
	FieldTags:        {OpContains, OpNotContains, OpHasAny, OpHasAll},
	FieldCreatedDate: {OpBefore, OpAfter, OpLastNDays},
	FieldUpdatedDate: {OpBefore, OpAfter, OpLastNDays},
}

// Fields lists every field a condition can target, in display order.
func Fields() []Field {
	return []Field{FieldTitle, FieldContent, FieldTags, FieldCreatedDate, FieldUpdatedDate}
}

func (f Field) Valid() bool {
	_, ok := fieldOperators[f]
	return ok
}

// Operators returns the operators legal for f, or nil for an unknown field.
func (f Field) Operators() []Operator {
	ops := fieldOperators[f]
	out := make([]Operator, len(ops))
	copy(out, ops)
	return out
}

func (f Field) Allows(op Operator) bool {
	for _, o := range fieldOperators[f] {
		if o == op {
			return true
		}
	}
	return false
}

// Condition compares one note field against Value. Value is literal text, a
// comma separated tag list, a date, or a day count depending on the field.
type Condition struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value"`
}

// Validate is used when editing rules. Evaluation never calls it.
func (c Condition) Validate() error {
	if !c.Field.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidField, c.Field)
	}
	if !c.Field.Allows(c.Operator) {
		return fmt.Errorf("%w: %q on %q", ErrInvalidOperator, c.Operator, c.Field)
	}
	if c.Value == "" && c.Operator != OpHasAny && c.Operator != OpHasAll {
		return ErrEmptyValue
	}
	return nil
}

// RuleGroup matches a note when every condition holds.
type RuleGroup struct {
	Conditions []Condition `json:"conditions"`
}

type ruleGroupRecord struct {
	Conditions []json.RawMessage `json:"conditions"`
	Field      Field             `json:"field"`
	Operator   Operator          `json:"operator"`
	Value      json.RawMessage   `json:"value"`
}

type conditionRecord struct {
	Field    Field           `json:"field"`
	Operator Operator        `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

// unreadable stands in for a stored condition that could not be decoded. Its
// empty field never matches, so the group it sits in fails closed.
var unreadable = Condition{}

// DecodeRuleGroups reads stored rule groups. Older rows keep one condition per
// group as a bare {field, operator, value} object; those become one-condition
// groups. Groups left without conditions are dropped.
//
// Each group and condition is decoded on its own. Scalar values are read as
// their literal text, so a numeric day count loads as "30". An element that
// cannot be read at all is kept as a condition that never matches. Only input
// that is not a JSON array is an error.
func DecodeRuleGroups(data []byte) ([]RuleGroup, error) {
	if isNull(data) {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("decode rule groups: %w", err)
	}

	groups := make([]RuleGroup, 0, len(elems))
	for _, elem := range elems {
		var rec ruleGroupRecord
		if err := json.Unmarshal(elem, &rec); err != nil {
			groups = append(groups, RuleGroup{Conditions: []Condition{unreadable}})
			continue
		}
		if rec.Conditions == nil && rec.Field != "" {
			groups = append(groups, RuleGroup{Conditions: []Condition{
				toCondition(rec.Field, rec.Operator, rec.Value),
			}})
			continue
		}
		if len(rec.Conditions) == 0 {
			continue
		}
		conds := make([]Condition, 0, len(rec.Conditions))
		for _, raw := range rec.Conditions {
			conds = append(conds, decodeCondition(raw))
		}
		groups = append(groups, RuleGroup{Conditions: conds})
	}
	return groups, nil
}

func decodeCondition(raw json.RawMessage) Condition {
	var rec conditionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return unreadable
	}
	return toCondition(rec.Field, rec.Operator, rec.Value)
}

func toCondition(field Field, op Operator, value json.RawMessage) Condition {
	v, ok := scalarText(value)
	if !ok {
		return unreadable
	}
	return Condition{Field: field, Operator: op, Value: v}
}

// scalarText returns a JSON string's contents, or the literal text of a number
// or boolean. null and a missing value give "".
func scalarText(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b), true
	}
	return "", false
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// EncodeRuleGroups writes groups in the canonical shape.
func EncodeRuleGroups(groups []RuleGroup) ([]byte, error) {
	if groups == nil {
		groups = []RuleGroup{}
	}
	data, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("encode rule groups: %w", err)
	}
	return data, nil
}

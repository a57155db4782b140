// Package rules evaluates declarative business rules against single records.
package rules

import (
	"strings"

	"go.uber.org/zap"

	"github.com/gridwatch/sentinel/internal/model"
)

// Engine holds an immutable rule set and evaluates records against it.
type Engine struct {
	rules []model.Rule
}

// NewEngine creates an engine over the given rules.
func NewEngine(rules []model.Rule) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the configured rule set.
func (e *Engine) Rules() []model.Rule {
	return e.rules
}

// Evaluate returns the rules that fire on the record. A rule fires only
// when all of its conditions hold; evaluation short-circuits on the first
// failing or missing-field condition.
func (e *Engine) Evaluate(record model.DataPoint) []model.Rule {
	var fired []model.Rule
	for _, rule := range e.rules {
		if e.matches(rule, record) {
			fired = append(fired, rule)
		}
	}
	return fired
}

func (e *Engine) matches(rule model.Rule, record model.DataPoint) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, cond := range rule.Conditions {
		if !evalCondition(cond, record) {
			return false
		}
	}
	return true
}

// evalCondition checks one condition against the record. Missing fields,
// unsupported operators, and type-mismatched comparisons all fail closed.
func evalCondition(cond model.Condition, record model.DataPoint) bool {
	actual, ok := record[cond.Field]
	if !ok {
		return false
	}

	switch cond.Operator {
	case ">", "<", ">=", "<=":
		a, aok := model.ToFloat(actual)
		b, bok := model.ToFloat(cond.Value)
		if !aok || !bok {
			return false
		}
		switch cond.Operator {
		case ">":
			return a > b
		case "<":
			return a < b
		case ">=":
			return a >= b
		default:
			return a <= b
		}

	case "=", "==":
		return looseEqual(actual, cond.Value)

	case "!=":
		if !sameClass(actual, cond.Value) {
			return false
		}
		return !looseEqual(actual, cond.Value)

	case "in":
		items, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if looseEqual(actual, item) {
				return true
			}
		}
		return false

	case "not_in":
		items, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if looseEqual(actual, item) {
				return false
			}
		}
		return true

	case "contains", "startsWith", "endsWith":
		s, sok := actual.(string)
		sub, vok := cond.Value.(string)
		if !sok || !vok {
			return false
		}
		switch cond.Operator {
		case "contains":
			return strings.Contains(s, sub)
		case "startsWith":
			return strings.HasPrefix(s, sub)
		default:
			return strings.HasSuffix(s, sub)
		}

	default:
		zap.L().Debug("rules: unsupported operator", zap.String("operator", cond.Operator))
		return false
	}
}

// looseEqual compares two values, treating all numeric types as float64 so
// that a yaml int matches a json float. Non-numeric values must match in
// type and value.
func looseEqual(a, b any) bool {
	if af, aok := model.ToFloat(a); aok {
		bf, bok := model.ToFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// sameClass reports whether the two values are of the same comparison
// class (both numeric, both strings, or both bools).
func sameClass(a, b any) bool {
	if _, ok := model.ToFloat(a); ok {
		_, bok := model.ToFloat(b)
		return bok
	}
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	default:
		return false
	}
}

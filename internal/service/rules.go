package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RuleResolver turns an opaque loyalty points rule identifier into a point
// amount for a deposit. How rules are configured is an external concern; the
// core only records the identifier and the amount the resolver hands back.
type RuleResolver interface {
	Resolve(rule string, paymentAmount *decimal.Decimal) (decimal.Decimal, error)
}

// Rule describes one earning rule: a fixed point grant, a rate applied to the
// linked payment amount, or both.
type Rule struct {
	FixedPoints decimal.Decimal
	PaymentRate decimal.Decimal
}

// StaticRuleResolver resolves rules from an immutable in-process table.
// Production deployments swap in a resolver backed by the rule engine.
type StaticRuleResolver struct {
	rules map[string]Rule
}

func NewStaticRuleResolver(rules map[string]Rule) *StaticRuleResolver {
	copied := make(map[string]Rule, len(rules))
	for name, r := range rules {
		copied[name] = r
	}
	return &StaticRuleResolver{rules: copied}
}

// DefaultRules is the built-in rule table used when no external rule engine
// is wired up: a flat welcome grant and a 10% earn rate on payments.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		"promo1":   {FixedPoints: decimal.NewFromInt(100)},
		"standard": {PaymentRate: decimal.RequireFromString("0.10")},
	}
}

func (r *StaticRuleResolver) Resolve(rule string, paymentAmount *decimal.Decimal) (decimal.Decimal, error) {
	spec, ok := r.rules[rule]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no loyalty points rule %q", rule)
	}

	points := spec.FixedPoints
	if !spec.PaymentRate.IsZero() && paymentAmount != nil {
		points = points.Add(paymentAmount.Mul(spec.PaymentRate).Round(2))
	}
	return points, nil
}

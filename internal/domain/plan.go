// Package domain contains core business types and interfaces.
//
// This file defines the plan catalog: the single authoritative mapping from
// (plan, billing frequency) to price and query limit. The table is fixed at
// deploy time. Subscriptions snapshot the limit at creation time, so edits
// here never retroactively change already-sold subscriptions.
package domain

// PlanID identifies a pricing plan.
type PlanID string

const (
	PlanStarter    PlanID = "starter"
	PlanRecruiter  PlanID = "recruiter"
	PlanEnterprise PlanID = "enterprise"
)

// Frequency identifies the billing cadence of a plan.
type Frequency string

const (
	FrequencyMonthly  Frequency = "monthly"
	FrequencyAnnually Frequency = "annually"
)

// QueryLimitUnlimited is the sentinel limit for unlimited-query plans.
const QueryLimitUnlimited = -1

// FreeTierQueryLimit is the lifetime query allowance for users without an
// active subscription.
const FreeTierQueryLimit = 2

// PlanDefinition is an immutable description of a purchasable plan.
type PlanDefinition struct {
	PlanID     PlanID
	Frequency  Frequency
	PriceCents int64 // currency-agnostic minor units
	QueryLimit int   // queries per billing period, QueryLimitUnlimited for no cap
}

// Unlimited reports whether the plan has no query cap.
func (p PlanDefinition) Unlimited() bool {
	return p.QueryLimit == QueryLimitUnlimited
}

type planKey struct {
	plan PlanID
	freq Frequency
}

// planCatalog holds every sellable (plan, frequency) pair exactly once.
var planCatalog = map[planKey]PlanDefinition{
	{PlanStarter, FrequencyMonthly}:     {PlanStarter, FrequencyMonthly, 2999, 100},
	{PlanStarter, FrequencyAnnually}:    {PlanStarter, FrequencyAnnually, 35988, 100},
	{PlanRecruiter, FrequencyMonthly}:   {PlanRecruiter, FrequencyMonthly, 9900, 500},
	{PlanRecruiter, FrequencyAnnually}:  {PlanRecruiter, FrequencyAnnually, 118800, 500},
	{PlanEnterprise, FrequencyMonthly}:  {PlanEnterprise, FrequencyMonthly, 29900, QueryLimitUnlimited},
	{PlanEnterprise, FrequencyAnnually}: {PlanEnterprise, FrequencyAnnually, 358800, QueryLimitUnlimited},
}

// ResolvePlan looks up the definition for a (plan, frequency) pair.
// Unknown pairs return ENOTFOUND.
func ResolvePlan(plan PlanID, freq Frequency) (PlanDefinition, error) {
	def, ok := planCatalog[planKey{plan, freq}]
	if !ok {
		return PlanDefinition{}, Errorf(ENOTFOUND, "plan.resolve", "no plan %q with frequency %q", plan, freq)
	}
	return def, nil
}

// ValidPlanID reports whether the given string names a known plan.
func ValidPlanID(s string) (PlanID, bool) {
	switch PlanID(s) {
	case PlanStarter, PlanRecruiter, PlanEnterprise:
		return PlanID(s), true
	}
	return "", false
}

// ValidFrequency reports whether the given string names a known frequency.
func ValidFrequency(s string) (Frequency, bool) {
	switch Frequency(s) {
	case FrequencyMonthly, FrequencyAnnually:
		return Frequency(s), true
	}
	return "", false
}

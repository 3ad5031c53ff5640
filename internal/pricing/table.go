package pricing

import (
	"fmt"
	"sort"
)

// RiskTier is a creditworthiness class.
type RiskTier string

const (
	TierA        RiskTier = "A"
	TierB        RiskTier = "B"
	TierC        RiskTier = "C"
	TierRejected RiskTier = "REJECTED"
)

// Rank orders tiers by creditworthiness, A first. Unknown tiers rank last.
func (t RiskTier) Rank() int {
	switch t {
	case TierA:
		return 0
	case TierB:
		return 1
	case TierC:
		return 2
	case TierRejected:
		return 3
	default:
		return 4
	}
}

func (t RiskTier) IsRejected() bool {
	return t == TierRejected
}

// ParseRiskTier accepts the four tier names exactly.
func ParseRiskTier(s string) (RiskTier, error) {
	switch RiskTier(s) {
	case TierA, TierB, TierC, TierRejected:
		return RiskTier(s), nil
	default:
		return "", fmt.Errorf("unknown risk tier %q", s)
	}
}

// TierPricing is one row of the pricing table, in percent.
type TierPricing struct {
	BorrowerRatePct  float64 `json:"borrowerRatePct" mapstructure:"borrower_rate_pct"`
	InvestorYieldPct float64 `json:"investorYieldPct" mapstructure:"investor_yield_pct"`
	OriginationPct   float64 `json:"originationPct" mapstructure:"origination_pct"`
}

// InvalidTierError is raised (as a panic) when a tier without a price is looked up.
type InvalidTierError struct {
	Tier RiskTier
}

func (e *InvalidTierError) Error() string {
	return fmt.Sprintf("pricing: no rate entry for risk tier %q", e.Tier)
}

// Table maps accepted risk tiers to their pricing. The zero value has no entries.
type Table struct {
	entries map[RiskTier]TierPricing
}

// NewTable copies entries; later changes to the map do not affect the table.
func NewTable(entries map[RiskTier]TierPricing) (Table, error) {
	copied := make(map[RiskTier]TierPricing, len(entries))
	for tier, p := range entries {
		if tier == TierRejected {
			return Table{}, fmt.Errorf("pricing: tier %s cannot carry a rate entry", tier)
		}
		if _, err := ParseRiskTier(string(tier)); err != nil {
			return Table{}, fmt.Errorf("pricing: %w", err)
		}
		if p.BorrowerRatePct < 0 || p.InvestorYieldPct < 0 {
			return Table{}, fmt.Errorf("pricing: tier %s has a negative rate", tier)
		}
		if err := ValidateOriginationPct(p.OriginationPct); err != nil {
			return Table{}, fmt.Errorf("pricing: tier %s: %w", tier, err)
		}
		copied[tier] = p
	}
	return Table{entries: copied}, nil
}

func DefaultTable() Table {
	return Table{entries: map[RiskTier]TierPricing{
		TierA: {BorrowerRatePct: 15, InvestorYieldPct: 10, OriginationPct: 3},
		TierB: {BorrowerRatePct: 17, InvestorYieldPct: 12, OriginationPct: 4},
		TierC: {BorrowerRatePct: 20, InvestorYieldPct: 15, OriginationPct: 5},
	}}
}

// Lookup panics with *InvalidTierError for REJECTED or any tier missing from the table.
// Callers branch on rejection first.
func (t Table) Lookup(tier RiskTier) TierPricing {
	p, ok := t.entries[tier]
	if !ok {
		panic(&InvalidTierError{Tier: tier})
	}
	return p
}

func (t Table) Has(tier RiskTier) bool {
	_, ok := t.entries[tier]
	return ok
}

// Tiers returns the priced tiers, best first.
func (t Table) Tiers() []RiskTier {
	tiers := make([]RiskTier, 0, len(t.entries))
	for tier := range t.entries {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Rank() < tiers[j].Rank() })
	return tiers
}

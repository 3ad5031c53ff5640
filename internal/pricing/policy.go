package pricing

import (
	"fmt"
	"math"
)

// FeeSchedule holds the fee constants shared by gross-up and amortization.
type FeeSchedule struct {
	FlatFeeThreshold float64 // net amounts at or below this pay FlatFee
	FlatFee          float64
	ServiceFeeRate   float64 // fraction of the pre-payment balance, per period
	ServiceFeeFloor  float64
}

// DefaultFeeSchedule is the 450 flat fee up to 10000 and a 0.15% service fee floored at 10.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		FlatFeeThreshold: 10000,
		FlatFee:          450,
		ServiceFeeRate:   0.0015,
		ServiceFeeFloor:  10,
	}
}

func (f FeeSchedule) validate() error {
	for name, v := range map[string]float64{
		"flat fee threshold": f.FlatFeeThreshold,
		"flat fee":           f.FlatFee,
		"service fee rate":   f.ServiceFeeRate,
		"service fee floor":  f.ServiceFeeFloor,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("pricing: %s must be a finite non-negative number, got %v", name, v)
		}
	}
	return nil
}

// Policy is the complete pricing regime. It is passed by value and never mutated.
type Policy struct {
	Table Table
	Fees  FeeSchedule
}

// DefaultPolicy pairs DefaultTable with DefaultFeeSchedule.
func DefaultPolicy() Policy {
	return Policy{
		Table: DefaultTable(),
		Fees:  DefaultFeeSchedule(),
	}
}

// NewPolicy validates fees and requires at least one priced tier.
func NewPolicy(table Table, fees FeeSchedule) (Policy, error) {
	if err := fees.validate(); err != nil {
		return Policy{}, err
	}
	if len(table.entries) == 0 {
		return Policy{}, fmt.Errorf("pricing: table has no priced tiers")
	}
	return Policy{Table: table, Fees: fees}, nil
}

package pricing

import (
	"fmt"
	"math"
)

// GrossUpResult holds the fee and principal for a net amount. GrossPrincipal is always
// NetAmount plus OriginationFee.
type GrossUpResult struct {
	NetAmount      float64
	OriginationFee float64
	GrossPrincipal float64
	MinFeeApplied  bool
}

// InvalidPercentageError is raised (as a panic) for origination percentages outside [0, 100).
type InvalidPercentageError struct {
	Pct float64
}

func (e *InvalidPercentageError) Error() string {
	return fmt.Sprintf("pricing: origination percentage %v outside [0, 100)", e.Pct)
}

// ValidateOriginationPct reports a percentage GrossUp would panic on.
func ValidateOriginationPct(pct float64) error {
	if math.IsNaN(pct) || math.IsInf(pct, 0) || pct < 0 || pct/100 >= 1 {
		return &InvalidPercentageError{Pct: pct}
	}
	return nil
}

// GrossUp computes the principal that leaves net in the borrower's hands after the origination fee.
// Small loans pay the flat fee regardless of pct. Panics with *InvalidPercentageError on a bad pct.
func (p Policy) GrossUp(net, originationPct float64) GrossUpResult {
	if err := ValidateOriginationPct(originationPct); err != nil {
		panic(err)
	}

	if !(net > 0) {
		return GrossUpResult{}
	}

	if net <= p.Fees.FlatFeeThreshold {
		return GrossUpResult{
			NetAmount:      net,
			OriginationFee: p.Fees.FlatFee,
			GrossPrincipal: net + p.Fees.FlatFee,
			MinFeeApplied:  true,
		}
	}

	rate := originationPct / 100
	if rate == 0 {
		return GrossUpResult{NetAmount: net, GrossPrincipal: net}
	}

	return GrossUpResult{
		NetAmount:      net,
		OriginationFee: net * rate / (1 - rate),
		GrossPrincipal: net / (1 - rate),
	}
}

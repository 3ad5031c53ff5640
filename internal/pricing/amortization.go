package pricing

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotComputable marks degenerate amortization input. It is distinct from a loan that costs zero.
var ErrNotComputable = errors.New("amortization not computable")

// NotComputableError says why a request was not computable.
type NotComputableError struct {
	Reason string
}

func (e *NotComputableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotComputable.Error(), e.Reason)
}

func (e *NotComputableError) Is(target error) bool {
	return target == ErrNotComputable
}

// BalanceTolerance bounds how far the final balance and principal sum may drift from exact.
const BalanceTolerance = 0.01

// AmortizationRequest is the input to Amortize. OriginationFee is the one-off fee
// produced by the gross-up and already folded into GrossPrincipal.
type AmortizationRequest struct {
	GrossPrincipal float64
	AnnualRatePct  float64
	TermMonths     int
	OriginationFee float64
}

// RequestFromGrossUp carries a gross-up's principal and fee into a request.
func RequestFromGrossUp(g GrossUpResult, annualRatePct float64, termMonths int) AmortizationRequest {
	return AmortizationRequest{
		GrossPrincipal: g.GrossPrincipal,
		AnnualRatePct:  annualRatePct,
		TermMonths:     termMonths,
		OriginationFee: g.OriginationFee,
	}
}

// AmortizationLine is one installment of a schedule.
type AmortizationLine struct {
	Installment int
	Payment     float64 // principal + interest + service fee
	Principal   float64
	Interest    float64
	ServiceFee  float64
	Balance     float64 // remaining after this installment
}

// AmortizationSummary aggregates a schedule.
type AmortizationSummary struct {
	TotalInterest         float64
	TotalServiceFee       float64
	OriginationFee        float64
	TotalCreditCost       float64
	TotalToPay            float64
	AverageMonthlyPayment float64
	// AnnuityPayment is the level principal+interest payment.
	AnnuityPayment float64
	// BlendedMonthlyPayment is AnnuityPayment plus the average service fee, the headline figure.
	BlendedMonthlyPayment float64
}

// Schedule is the result of Amortize.
type Schedule struct {
	Lines        []AmortizationLine
	Summary      AmortizationSummary
	StraightLine bool
}

// Amortize builds the monthly schedule. The service fee is charged on each period's
// pre-payment balance and never reduces the balance.
func (p Policy) Amortize(req AmortizationRequest) (*Schedule, error) {
	if err := req.check(); err != nil {
		return nil, err
	}

	principal := req.GrossPrincipal
	n := req.TermMonths
	monthlyRate := req.AnnualRatePct / 100 / 12

	pmt, straightLine := levelPayment(principal, monthlyRate, n)

	lines := make([]AmortizationLine, 0, n)
	balance := principal
	var totalInterest, totalServiceFee float64

	for i := 1; i <= n; i++ {
		interest := balance * monthlyRate
		fee := math.Max(balance*p.Fees.ServiceFeeRate, p.Fees.ServiceFeeFloor)

		var principalPart, payment float64
		if straightLine {
			principalPart = principal / float64(n)
			payment = principalPart + interest + fee
		} else {
			principalPart = pmt - interest
			payment = pmt + fee
		}
		balance -= principalPart

		totalInterest += interest
		totalServiceFee += fee

		lines = append(lines, AmortizationLine{
			Installment: i,
			Payment:     payment,
			Principal:   principalPart,
			Interest:    interest,
			ServiceFee:  fee,
			Balance:     balance,
		})
	}

	if math.IsNaN(totalInterest) || math.IsInf(totalInterest, 0) {
		return nil, &NotComputableError{Reason: "interest overflow"}
	}

	originationFee := req.OriginationFee
	creditCost := originationFee + totalInterest + totalServiceFee
	net := principal - originationFee

	return &Schedule{
		Lines:        lines,
		StraightLine: straightLine,
		Summary: AmortizationSummary{
			TotalInterest:         totalInterest,
			TotalServiceFee:       totalServiceFee,
			OriginationFee:        originationFee,
			TotalCreditCost:       creditCost,
			TotalToPay:            net + creditCost,
			AverageMonthlyPayment: (net + creditCost) / float64(n),
			AnnuityPayment:        pmt,
			BlendedMonthlyPayment: pmt + totalServiceFee/float64(n),
		},
	}, nil
}

func (r AmortizationRequest) check() error {
	switch {
	case math.IsNaN(r.GrossPrincipal) || math.IsInf(r.GrossPrincipal, 0):
		return &NotComputableError{Reason: "principal is not finite"}
	case r.GrossPrincipal <= 0:
		return &NotComputableError{Reason: "principal must be positive"}
	case r.TermMonths <= 0:
		return &NotComputableError{Reason: "term must be positive"}
	case math.IsNaN(r.AnnualRatePct) || math.IsInf(r.AnnualRatePct, 0):
		return &NotComputableError{Reason: "rate is not finite"}
	case r.AnnualRatePct < 0:
		return &NotComputableError{Reason: "rate is negative"}
	}
	fee := r.OriginationFee
	if math.IsNaN(fee) || math.IsInf(fee, 0) || fee < 0 || fee >= r.GrossPrincipal {
		return &NotComputableError{Reason: "origination fee outside [0, principal)"}
	}
	return nil
}

// levelPayment returns the annuity payment, or the straight-line share when the
// rate is zero or the annuity formula overflows.
func levelPayment(principal, monthlyRate float64, n int) (float64, bool) {
	if monthlyRate > 0 {
		pmt := principal * monthlyRate / (1 - math.Pow(1+monthlyRate, -float64(n)))
		if !math.IsNaN(pmt) && !math.IsInf(pmt, 0) {
			return pmt, false
		}
	}
	return principal / float64(n), true
}

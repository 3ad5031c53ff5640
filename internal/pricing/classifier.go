package pricing

import "math"

const (
	IncomeFloor     = 3000.0
	DTICeiling      = 50.0
	cardAmortizePct = 100.0 // balance / cardAmortizePct approximates the monthly principal payment
)

// RejectReason explains a REJECTED classification.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectMissingAttribute RejectReason = "MISSING_ATTRIBUTE"
	RejectIncomeBelowFloor RejectReason = "INCOME_BELOW_FLOOR"
	RejectDTIAboveCeiling  RejectReason = "DTI_ABOVE_CEILING"
	RejectScoreTooLow      RejectReason = "SCORE_TOO_LOW"
)

// ApplicantSnapshot is a point-in-time view of an application. Missing attributes are NaN.
type ApplicantSnapshot struct {
	MonthlyIncome float64
	CardBalance   float64
	CardRatePct   float64
	TenureMonths  float64
}

func (s ApplicantSnapshot) complete() bool {
	for _, v := range []float64{s.MonthlyIncome, s.CardBalance, s.CardRatePct, s.TenureMonths} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ScoreBreakdown holds the points from each band.
type ScoreBreakdown struct {
	Income int `json:"income"`
	DTI    int `json:"dti"`
	Tenure int `json:"tenure"`
}

func (b ScoreBreakdown) Total() int {
	return b.Income + b.DTI + b.Tenure
}

// Classification is the result of Classify. DebtService and DTI are zero when the
// snapshot was rejected before they were computed.
type Classification struct {
	Tier         RiskTier
	Score        int
	Breakdown    ScoreBreakdown
	DebtService  float64
	DTI          float64
	RejectReason RejectReason
}

// Classify assigns a risk tier. Hard floors on income and DTI reject before any scoring.
func Classify(s ApplicantSnapshot) Classification {
	if !s.complete() {
		return Classification{Tier: TierRejected, RejectReason: RejectMissingAttribute}
	}
	if s.MonthlyIncome < IncomeFloor {
		return Classification{Tier: TierRejected, RejectReason: RejectIncomeBelowFloor}
	}

	debtService := EstimateDebtService(s.CardBalance, s.CardRatePct)
	dti := debtService * 100 / s.MonthlyIncome

	if dti > DTICeiling {
		return Classification{
			Tier:         TierRejected,
			DebtService:  debtService,
			DTI:          dti,
			RejectReason: RejectDTIAboveCeiling,
		}
	}

	breakdown := ScoreBreakdown{
		Income: incomePoints(s.MonthlyIncome),
		DTI:    dtiPoints(dti),
		Tenure: tenurePoints(s.TenureMonths),
	}
	score := breakdown.Total()
	tier := tierForScore(score)

	reason := RejectNone
	if tier == TierRejected {
		reason = RejectScoreTooLow
	}

	return Classification{
		Tier:         tier,
		Score:        score,
		Breakdown:    breakdown,
		DebtService:  debtService,
		DTI:          dti,
		RejectReason: reason,
	}
}

// EstimateDebtService is one month of card interest plus a flat 1% principal payment.
func EstimateDebtService(balance, annualRatePct float64) float64 {
	interest := balance * (annualRatePct / 100) / 12
	principal := balance / cardAmortizePct
	return interest + principal
}

func incomePoints(income float64) int {
	switch {
	case income > 8000:
		return 3
	case income >= 5000:
		return 2
	case income >= 3000:
		return 1
	default:
		return 0
	}
}

// dtiPoints scores 30 itself in the top band.
func dtiPoints(dti float64) int {
	switch {
	case dti <= 30:
		return 3
	case dti <= 40:
		return 2
	case dti <= 50:
		return 1
	default:
		return 0
	}
}

func tenurePoints(months float64) int {
	switch {
	case months >= 24:
		return 2
	case months >= 12:
		return 1
	default:
		return 0
	}
}

func tierForScore(score int) RiskTier {
	switch {
	case score >= 7:
		return TierA
	case score >= 5:
		return TierB
	case score >= 2:
		return TierC
	default:
		return TierRejected
	}
}

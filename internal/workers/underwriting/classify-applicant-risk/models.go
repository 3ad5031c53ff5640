// internal/workers/underwriting/classify-applicant-risk/models.go
package classifyapplicantrisk

import (
	"math"

	"p2p-lending-workers/internal/pricing"
)

// Input carries the applicant snapshot. Absent attributes stay nil.
type Input struct {
	ApplicationID string   `json:"applicationId"`
	MonthlyIncome *float64 `json:"monthlyIncome"`
	CardBalance   *float64 `json:"cardBalance"`
	CardRatePct   *float64 `json:"cardRatePct"`
	TenureMonths  *float64 `json:"tenureMonths"`
}

func (in *Input) Snapshot() pricing.ApplicantSnapshot {
	return pricing.ApplicantSnapshot{
		MonthlyIncome: valueOrNaN(in.MonthlyIncome),
		CardBalance:   valueOrNaN(in.CardBalance),
		CardRatePct:   valueOrNaN(in.CardRatePct),
		TenureMonths:  valueOrNaN(in.TenureMonths),
	}
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

type Output struct {
	RiskTier         string                 `json:"riskTier"`
	RiskScore        int                    `json:"riskScore"`
	ScoreBreakdown   pricing.ScoreBreakdown `json:"scoreBreakdown"`
	DebtService      float64                `json:"debtService"`
	DebtToIncome     float64                `json:"debtToIncome"`
	Rejected         bool                   `json:"rejected"`
	RejectReason     string                 `json:"rejectReason,omitempty"`
	BorrowerRatePct  *float64               `json:"borrowerRatePct,omitempty"`
	InvestorYieldPct *float64               `json:"investorYieldPct,omitempty"`
	OriginationPct   *float64               `json:"originationPct,omitempty"`
}

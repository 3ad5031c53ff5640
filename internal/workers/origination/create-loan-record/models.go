// internal/workers/origination/create-loan-record/models.go
package createloanrecord

type Input struct {
	ApplicationID         string  `json:"applicationId"`
	ApplicantID           string  `json:"applicantId"`
	RiskTier              string  `json:"riskTier"`
	BorrowerRatePct       float64 `json:"borrowerRatePct"`
	InvestorYieldPct      float64 `json:"investorYieldPct"`
	NetAmount             float64 `json:"netAmount"`
	OriginationFee        float64 `json:"originationFee"`
	GrossPrincipal        float64 `json:"grossPrincipal"`
	TermMonths            int     `json:"termMonths"`
	AnnuityPayment        float64 `json:"annuityPayment"`
	BlendedMonthlyPayment float64 `json:"blendedMonthlyPayment"`
	TotalCreditCost       float64 `json:"totalCreditCost"`
}

type Output struct {
	LoanID     string `json:"loanId"`
	LoanStatus string `json:"loanStatus"`
	CreatedAt  string `json:"createdAt"`
}

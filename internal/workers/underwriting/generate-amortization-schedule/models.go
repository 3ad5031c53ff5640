// internal/workers/underwriting/generate-amortization-schedule/models.go
package generateamortizationschedule

type Input struct {
	ApplicationID  string   `json:"applicationId"`
	GrossPrincipal float64  `json:"grossPrincipal"`
	TermMonths     int      `json:"termMonths"`
	RiskTier       string   `json:"riskTier"`
	AnnualRatePct  *float64 `json:"annualRatePct,omitempty"`
	OriginationFee *float64 `json:"originationFee,omitempty"`
	IncludeLines   *bool    `json:"includeLines,omitempty"`
}

type Installment struct {
	Installment int     `json:"installment"`
	Payment     float64 `json:"payment"`
	Principal   float64 `json:"principal"`
	Interest    float64 `json:"interest"`
	ServiceFee  float64 `json:"serviceFee"`
	Balance     float64 `json:"balance"`
}

type Output struct {
	AnnualRatePct         float64       `json:"annualRatePct"`
	TermMonths            int           `json:"termMonths"`
	AnnuityPayment        float64       `json:"annuityPayment"`
	BlendedMonthlyPayment float64       `json:"blendedMonthlyPayment"`
	AverageMonthlyPayment float64       `json:"averageMonthlyPayment"`
	TotalInterest         float64       `json:"totalInterest"`
	TotalServiceFee       float64       `json:"totalServiceFee"`
	OriginationFee        float64       `json:"originationFee"`
	TotalCreditCost       float64       `json:"totalCreditCost"`
	TotalToPay            float64       `json:"totalToPay"`
	StraightLine          bool          `json:"straightLine"`
	Schedule              []Installment `json:"schedule,omitempty"`
}

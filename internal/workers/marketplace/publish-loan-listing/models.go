// internal/workers/marketplace/publish-loan-listing/models.go
package publishloanlisting

type Input struct {
	LoanID                string  `json:"loanId"`
	ApplicationID         string  `json:"applicationId"`
	RiskTier              string  `json:"riskTier"`
	InvestorYieldPct      float64 `json:"investorYieldPct"`
	GrossPrincipal        float64 `json:"grossPrincipal"`
	TermMonths            int     `json:"termMonths"`
	BlendedMonthlyPayment float64 `json:"blendedMonthlyPayment"`
}

type Output struct {
	ListingID      string `json:"listingId"`
	ListingIndex   string `json:"listingIndex"`
	ListingVersion int64  `json:"listingVersion"`
	ListingResult  string `json:"listingResult"`
	LoanStatus     string `json:"loanStatus"`
	ListedAt       string `json:"listedAt"`
}

type indexResponse struct {
	ID      string `json:"_id"`
	Version int64  `json:"_version"`
	Result  string `json:"result"`
}

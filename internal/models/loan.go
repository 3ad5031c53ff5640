// internal/models/loan.go
package models

import "time"

type LoanStatus string

const (
	LoanStatusPendingFunding LoanStatus = "PENDING_FUNDING"
	LoanStatusListed         LoanStatus = "LISTED"
	LoanStatusFunded         LoanStatus = "FUNDED"
	LoanStatusCancelled      LoanStatus = "CANCELLED"
)

// Loan is a row of the loans table.
type Loan struct {
	ID                    string     `json:"id" db:"id"`
	ApplicationID         string     `json:"applicationId" db:"application_id"`
	BorrowerID            string     `json:"borrowerId" db:"borrower_id"`
	RiskTier              string     `json:"riskTier" db:"risk_tier"`
	BorrowerRatePct       float64    `json:"borrowerRatePct" db:"borrower_rate_pct"`
	InvestorYieldPct      float64    `json:"investorYieldPct" db:"investor_yield_pct"`
	NetAmount             float64    `json:"netAmount" db:"net_amount"`
	OriginationFee        float64    `json:"originationFee" db:"origination_fee"`
	GrossPrincipal        float64    `json:"grossPrincipal" db:"gross_principal"`
	TermMonths            int        `json:"termMonths" db:"term_months"`
	AnnuityPayment        float64    `json:"annuityPayment" db:"annuity_payment"`
	BlendedMonthlyPayment float64    `json:"blendedMonthlyPayment" db:"blended_monthly_payment"`
	TotalCreditCost       float64    `json:"totalCreditCost" db:"total_credit_cost"`
	Status                LoanStatus `json:"status" db:"status"`
	CreatedAt             time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time  `json:"updatedAt" db:"updated_at"`
}

// Listing is the investor-facing document stored in the listing index.
type Listing struct {
	LoanID           string     `json:"loanId"`
	ApplicationID    string     `json:"applicationId"`
	RiskTier         string     `json:"riskTier"`
	InvestorYieldPct float64    `json:"investorYieldPct"`
	GrossPrincipal   float64    `json:"grossPrincipal"`
	TermMonths       int        `json:"termMonths"`
	MonthlyPayment   float64    `json:"monthlyPayment"`
	Status           LoanStatus `json:"status"`
	ListedAt         time.Time  `json:"listedAt"`
}

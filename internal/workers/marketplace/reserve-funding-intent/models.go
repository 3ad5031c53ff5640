// internal/workers/marketplace/reserve-funding-intent/models.go
package reservefundingintent

type Input struct {
	LoanID         string  `json:"loanId"`
	InvestorID     string  `json:"investorId"`
	Amount         float64 `json:"amount"`
	GrossPrincipal float64 `json:"grossPrincipal"`
}

type Output struct {
	ReservationID string  `json:"reservationId"`
	ExpiresAt     string  `json:"expiresAt"`
	ReservedTotal float64 `json:"reservedTotal"`
	Remaining     float64 `json:"remaining"`
	FullyReserved bool    `json:"fullyReserved"`
}

type reservation struct {
	ReservationID string  `json:"reservationId"`
	InvestorID    string  `json:"investorId"`
	Amount        float64 `json:"amount"`
	CreatedAt     string  `json:"createdAt"`
}

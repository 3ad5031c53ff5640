// internal/workers/underwriting/compute-gross-up/models.go
package computegrossup

type Input struct {
	ApplicationID string `json:"applicationId"`
	// NetAmount is what the borrower asked to receive.
	NetAmount float64 `json:"netAmount"`
	// VerifiedNetAmount overrides NetAmount when underwriting adjusted the request.
	VerifiedNetAmount *float64 `json:"verifiedNetAmount,omitempty"`
	RiskTier          string   `json:"riskTier"`
	OriginationPct    *float64 `json:"originationPct,omitempty"`
}

type Output struct {
	NetAmount               float64 `json:"netAmount"`
	OriginationPct          float64 `json:"originationPct"`
	OriginationFee          float64 `json:"originationFee"`
	GrossPrincipal          float64 `json:"grossPrincipal"`
	MinFeeApplied           bool    `json:"minFeeApplied"`
	VerifiedOverrideApplied bool    `json:"verifiedOverrideApplied"`
}

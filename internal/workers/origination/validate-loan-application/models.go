// internal/workers/origination/validate-loan-application/models.go
package validateloanapplication

import "p2p-lending-workers/internal/common/validation"

type Input struct {
	ApplicationID   string                 `json:"applicationId"`
	LoanApplication map[string]interface{} `json:"loanApplication"`
}

// Output lifts the validated fields to top-level process variables for the
// pricing steps that follow.
type Output struct {
	IsValid          bool                         `json:"isValid"`
	ApplicantID      string                       `json:"applicantId"`
	NetAmount        float64                      `json:"netAmount"`
	TermMonths       int                          `json:"termMonths"`
	Purpose          string                       `json:"purpose"`
	ContactEmail     string                       `json:"contactEmail"`
	ContactPhone     string                       `json:"contactPhone,omitempty"`
	ValidationErrors []validation.ValidationError `json:"validationErrors"`
}

var Purposes = []string{
	"debt_consolidation",
	"credit_card_refinance",
	"home_improvement",
	"education",
	"medical",
	"business",
	"other",
}

const applicationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["applicantId", "netAmount", "termMonths", "purpose", "contact"],
  "properties": {
    "applicantId": {"type": "string", "minLength": 1, "maxLength": 64},
    "netAmount":   {"type": "number", "minimum": 1, "maximum": 1000000},
    "termMonths":  {"type": "integer", "minimum": 6, "maximum": 60},
    "purpose": {
      "type": "string",
      "enum": ["debt_consolidation", "credit_card_refinance", "home_improvement", "education", "medical", "business", "other"]
    },
    "contact": {
      "type": "object",
      "required": ["email"],
      "properties": {
        "email": {"type": "string", "format": "email"},
        "phone": {"type": "string", "pattern": "^\\+?[1-9][0-9]{6,14}$"}
      }
    }
  }
}`

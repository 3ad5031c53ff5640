// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeParseError    ErrorCode = "PARSE_ERROR"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"

	ErrCodeApplicantNotFound        ErrorCode = "APPLICANT_NOT_FOUND"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQueryFailed      ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeDuplicateLoan            ErrorCode = "DUPLICATE_LOAN"

	ErrCodeInvalidPricingInput    ErrorCode = "INVALID_PRICING_INPUT"
	ErrCodeScheduleNotComputable  ErrorCode = "SCHEDULE_NOT_COMPUTABLE"
	ErrCodeLoanApplicationInvalid ErrorCode = "LOAN_APPLICATION_INVALID"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeListingIndexFailed            ErrorCode = "LISTING_INDEX_FAILED"

	ErrCodeCacheOperationFailed ErrorCode = "CACHE_OPERATION_FAILED"
	ErrCodeFundingLimitExceeded ErrorCode = "FUNDING_LIMIT_EXCEEDED"
	ErrCodeReservationExists    ErrorCode = "RESERVATION_EXISTS"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeRecipientNotFound      ErrorCode = "RECIPIENT_NOT_FOUND"
	ErrCodeInvalidNotification    ErrorCode = "INVALID_NOTIFICATION"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a key that is carried into the BPMN error variables.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

var defaultMessages = map[ErrorCode]string{
	ErrCodeParseError:                    "Job variables could not be parsed",
	ErrCodeInternalError:                 "Unexpected error",
	ErrCodeApplicantNotFound:             "Applicant profile not found",
	ErrCodeDatabaseConnectionFailed:      "Failed to connect to database",
	ErrCodeDatabaseQueryFailed:           "Database query failed",
	ErrCodeDatabaseInsertFailed:          "Failed to insert record",
	ErrCodeQueryTimeout:                  "Database query timed out",
	ErrCodeDuplicateLoan:                 "A loan already exists for this application",
	ErrCodeInvalidPricingInput:           "Pricing input is invalid",
	ErrCodeScheduleNotComputable:         "Amortization schedule cannot be computed",
	ErrCodeLoanApplicationInvalid:        "Loan application failed validation",
	ErrCodeElasticsearchConnectionFailed: "Failed to connect to Elasticsearch",
	ErrCodeListingIndexFailed:            "Marketplace listing could not be indexed",
	ErrCodeCacheOperationFailed:          "Cache operation failed",
	ErrCodeFundingLimitExceeded:          "Reservation exceeds the remaining loan amount",
	ErrCodeReservationExists:             "Investor already holds a reservation on this loan",
	ErrCodeNotificationSendFailed:        "Failed to send notification",
	ErrCodeRecipientNotFound:             "Notification recipient not found",
	ErrCodeInvalidNotification:           "Notification request is invalid",
}

// New builds a StandardError for code with its default message.
func New(code ErrorCode, details string) *StandardError {
	msg, ok := defaultMessages[code]
	if !ok {
		msg = string(code)
	}
	return &StandardError{
		Code:      code,
		Message:   msg,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap builds a StandardError for code whose details carry err's message.
// An err that already is a StandardError is returned unchanged.
func Wrap(code ErrorCode, err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	details := ""
	if err != nil {
		details = err.Error()
	}
	return New(code, details)
}

func NewParseError(err error) *StandardError {
	return Wrap(ErrCodeParseError, err)
}

func NewInternalError(details string) *StandardError {
	return New(ErrCodeInternalError, details)
}

func NewApplicantNotFoundError(applicationID string) *StandardError {
	return New(ErrCodeApplicantNotFound, fmt.Sprintf("no applicant profile for application %s", applicationID)).
		WithMetadata("applicationId", applicationID)
}

func NewDatabaseQueryFailedError(err error) *StandardError {
	return Wrap(ErrCodeDatabaseQueryFailed, err)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return Wrap(ErrCodeDatabaseInsertFailed, err)
}

func NewDuplicateLoanError(applicationID string) *StandardError {
	return New(ErrCodeDuplicateLoan, fmt.Sprintf("loan already recorded for application %s", applicationID)).
		WithMetadata("applicationId", applicationID)
}

func NewInvalidPricingInputError(details string) *StandardError {
	return New(ErrCodeInvalidPricingInput, details)
}

func NewScheduleNotComputableError(err error) *StandardError {
	return Wrap(ErrCodeScheduleNotComputable, err)
}

// NewLoanApplicationInvalidError carries the individual validation failures in the metadata.
func NewLoanApplicationInvalidError(details string, violations []string) *StandardError {
	return New(ErrCodeLoanApplicationInvalid, details).WithMetadata("validationErrors", violations)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return Wrap(ErrCodeElasticsearchConnectionFailed, err)
}

func NewListingIndexFailedError(loanID string, err error) *StandardError {
	return Wrap(ErrCodeListingIndexFailed, err).WithMetadata("loanId", loanID)
}

func NewFundingLimitExceededError(loanID string, remaining float64) *StandardError {
	return New(ErrCodeFundingLimitExceeded, fmt.Sprintf("loan %s has %.2f left to fund", loanID, remaining)).
		WithMetadata("remaining", remaining)
}

func NewReservationExistsError(loanID, investorID string) *StandardError {
	return New(ErrCodeReservationExists, fmt.Sprintf("investor %s already reserved loan %s", investorID, loanID))
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return Wrap(ErrCodeNotificationSendFailed, err).WithMetadata("notificationType", notificationType)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the codes modelled on the BPMN
// boundary events. Codes missing here are thrown as-is.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeParseError:                    "PARSE_ERROR",
	ErrCodeInternalError:                 "INTERNAL_ERROR",
	ErrCodeApplicantNotFound:             "APPLICANT_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseQueryFailed:           "DATABASE_QUERY_FAILED",
	ErrCodeDatabaseInsertFailed:          "DATABASE_INSERT_FAILED",
	ErrCodeQueryTimeout:                  "DATABASE_QUERY_FAILED",
	ErrCodeDuplicateLoan:                 "DUPLICATE_LOAN",
	ErrCodeInvalidPricingInput:           "INVALID_PRICING_INPUT",
	ErrCodeScheduleNotComputable:         "SCHEDULE_NOT_COMPUTABLE",
	ErrCodeLoanApplicationInvalid:        "LOAN_APPLICATION_INVALID",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeListingIndexFailed:            "LISTING_INDEX_FAILED",
	ErrCodeCacheOperationFailed:          "CACHE_OPERATION_FAILED",
	ErrCodeFundingLimitExceeded:          "FUNDING_LIMIT_EXCEEDED",
	ErrCodeReservationExists:             "RESERVATION_EXISTS",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeRecipientNotFound:             "RECIPIENT_NOT_FOUND",
	ErrCodeInvalidNotification:           "INVALID_NOTIFICATION",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeCacheOperationFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeListingIndexFailed:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || code == ErrCodeApplicantNotFound:
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "LISTING"):
		return "SEARCH"
	case strings.Contains(codeStr, "FUNDING") || strings.Contains(codeStr, "RESERVATION") || strings.Contains(codeStr, "CACHE"):
		return "MARKETPLACE"
	case strings.Contains(codeStr, "PRICING") || strings.Contains(codeStr, "SCHEDULE"):
		return "PRICING"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "RECIPIENT"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "DUPLICATE") || code == ErrCodeParseError:
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

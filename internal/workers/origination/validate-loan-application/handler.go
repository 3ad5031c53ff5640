// internal/workers/origination/validate-loan-application/handler.go
package validateloanapplication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
	"p2p-lending-workers/internal/common/validation"
)

const (
	TaskType = "validate-loan-application"
)

var (
	ErrApplicationInvalid = errors.New("LOAN_APPLICATION_INVALID")
)

var schema = validation.MustCompile(applicationSchema)

// InvalidApplicationError carries the schema violations of a rejected payload.
type InvalidApplicationError struct {
	Errors []validation.ValidationError
}

func (e *InvalidApplicationError) Error() string {
	return fmt.Sprintf("%s: %d validation errors", ErrApplicationInvalid, len(e.Errors))
}

func (e *InvalidApplicationError) Unwrap() error {
	return ErrApplicationInvalid
}

type Handler struct {
	config *Config
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		errors: apperrors.NewErrorHandler(scoped),
		logger: scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewParseError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, toStandardError(err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input.LoanApplication == nil {
		return nil, &InvalidApplicationError{Errors: []validation.ValidationError{{
			Field:   "loanApplication",
			Message: "loanApplication is required",
			Code:    "REQUIRED",
		}}}
	}

	doc := normalize(input.LoanApplication)

	result, err := schema.Validate(doc)
	if err != nil {
		return nil, err
	}

	h.logger.Info("validation completed", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"isValid":       result.Valid,
		"errorCount":    len(result.Errors),
	})

	if !result.Valid {
		return nil, &InvalidApplicationError{Errors: result.Errors}
	}

	contact, _ := doc["contact"].(map[string]interface{})
	email, _ := contact["email"].(string)
	phone, _ := contact["phone"].(string)
	applicantID, _ := doc["applicantId"].(string)
	purpose, _ := doc["purpose"].(string)
	net, _ := doc["netAmount"].(float64)
	term, _ := doc["termMonths"].(float64)

	return &Output{
		IsValid:          true,
		ApplicantID:      applicantID,
		NetAmount:        net,
		TermMonths:       int(term),
		Purpose:          purpose,
		ContactEmail:     email,
		ContactPhone:     phone,
		ValidationErrors: []validation.ValidationError{},
	}, nil
}

// normalize trims strings, lower-cases the purpose and email and strips
// formatting characters from the phone number.
func normalize(app map[string]interface{}) map[string]interface{} {
	doc := make(map[string]interface{}, len(app))
	for k, v := range app {
		if s, ok := v.(string); ok {
			v = strings.TrimSpace(s)
		}
		doc[k] = v
	}
	if purpose, ok := doc["purpose"].(string); ok {
		doc["purpose"] = strings.ToLower(purpose)
	}

	if contact, ok := app["contact"].(map[string]interface{}); ok {
		c := make(map[string]interface{}, len(contact))
		for k, v := range contact {
			c[k] = v
		}
		if email, ok := c["email"].(string); ok {
			c["email"] = strings.ToLower(strings.TrimSpace(email))
		}
		if phone, ok := c["phone"].(string); ok {
			c["phone"] = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(phone)
		}
		doc["contact"] = c
	}
	return doc
}

func toStandardError(err error) *apperrors.StandardError {
	var invalid *InvalidApplicationError
	if errors.As(err, &invalid) {
		messages := (&validation.ValidationResult{Errors: invalid.Errors}).GetErrorMessages()
		return apperrors.NewLoanApplicationInvalidError(strings.Join(messages, "; "), messages)
	}
	return apperrors.Wrap(apperrors.ErrCodeInternalError, err)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, stdErr *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}

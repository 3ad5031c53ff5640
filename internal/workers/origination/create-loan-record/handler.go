// internal/workers/origination/create-loan-record/handler.go
package createloanrecord

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
	"p2p-lending-workers/internal/common/money"
	"p2p-lending-workers/internal/models"
	"p2p-lending-workers/internal/pricing"
)

const (
	TaskType = "create-loan-record"

	pqUniqueViolation = "23505"
)

var (
	ErrDatabaseInsertFailed = errors.New("DATABASE_INSERT_FAILED")
	ErrDuplicateLoan        = errors.New("DUPLICATE_LOAN")
	ErrInvalidLoan          = errors.New("INVALID_PRICING_INPUT")
)

type Handler struct {
	config *Config
	db     *sql.DB
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		db:     db,
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
		h.failJob(client, job, toStandardError(input.ApplicationID, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	var exists bool
	err := h.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM loans WHERE application_id = $1
		)`, input.ApplicationID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("%w: duplicate check failed: %v", ErrDatabaseInsertFailed, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: loan already exists for application %s", ErrDuplicateLoan, input.ApplicationID)
	}

	now := time.Now().UTC()
	loan := models.Loan{
		ID:                    uuid.New().String(),
		ApplicationID:         input.ApplicationID,
		BorrowerID:            input.ApplicantID,
		RiskTier:              input.RiskTier,
		BorrowerRatePct:       input.BorrowerRatePct,
		InvestorYieldPct:      input.InvestorYieldPct,
		NetAmount:             money.Round(input.NetAmount),
		OriginationFee:        money.Round(input.OriginationFee),
		GrossPrincipal:        money.Round(input.GrossPrincipal),
		TermMonths:            input.TermMonths,
		AnnuityPayment:        money.Round(input.AnnuityPayment),
		BlendedMonthlyPayment: money.Round(input.BlendedMonthlyPayment),
		TotalCreditCost:       money.Round(input.TotalCreditCost),
		Status:                models.LoanStatusPendingFunding,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO loans (
			id, application_id, borrower_id, risk_tier, borrower_rate_pct, investor_yield_pct,
			net_amount, origination_fee, gross_principal, term_months,
			annuity_payment, blended_monthly_payment, total_credit_cost,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		loan.ID,
		loan.ApplicationID,
		loan.BorrowerID,
		loan.RiskTier,
		loan.BorrowerRatePct,
		loan.InvestorYieldPct,
		loan.NetAmount,
		loan.OriginationFee,
		loan.GrossPrincipal,
		loan.TermMonths,
		loan.AnnuityPayment,
		loan.BlendedMonthlyPayment,
		loan.TotalCreditCost,
		string(loan.Status),
		loan.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, fmt.Errorf("%w: loan already exists for application %s", ErrDuplicateLoan, input.ApplicationID)
		}
		return nil, fmt.Errorf("%w: insert failed: %v", ErrDatabaseInsertFailed, err)
	}

	h.writeAudit(ctx, loan)

	h.logger.Info("loan record created", map[string]interface{}{
		"loanId":         loan.ID,
		"applicationId":  loan.ApplicationID,
		"riskTier":       loan.RiskTier,
		"grossPrincipal": money.String(loan.GrossPrincipal),
	})

	return &Output{
		LoanID:     loan.ID,
		LoanStatus: string(loan.Status),
		CreatedAt:  now.Format(time.RFC3339),
	}, nil
}

func validate(input *Input) error {
	var problems []string
	if strings.TrimSpace(input.ApplicationID) == "" {
		problems = append(problems, "applicationId is required")
	}
	if strings.TrimSpace(input.ApplicantID) == "" {
		problems = append(problems, "applicantId is required")
	}
	if tier, err := pricing.ParseRiskTier(input.RiskTier); err != nil || tier.IsRejected() {
		problems = append(problems, fmt.Sprintf("riskTier %q cannot be booked", input.RiskTier))
	}
	if !(input.GrossPrincipal > 0) || input.GrossPrincipal < input.NetAmount {
		problems = append(problems, "grossPrincipal must be positive and cover netAmount")
	}
	if input.TermMonths <= 0 {
		problems = append(problems, "termMonths must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLoan, strings.Join(problems, "; "))
	}
	return nil
}

// writeAudit is best effort. A missing audit row never fails the job.
func (h *Handler) writeAudit(ctx context.Context, loan models.Loan) {
	details, err := json.Marshal(map[string]interface{}{
		"applicationId":  loan.ApplicationID,
		"borrowerId":     loan.BorrowerID,
		"riskTier":       loan.RiskTier,
		"grossPrincipal": loan.GrossPrincipal,
		"termMonths":     loan.TermMonths,
	})
	if err != nil {
		details = []byte("{}")
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"loan_created",
		"loan",
		loan.ID,
		details,
		loan.CreatedAt,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":  err,
			"loanId": loan.ID,
		})
	}
}

func toStandardError(applicationID string, err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrDuplicateLoan):
		return apperrors.NewDuplicateLoanError(applicationID)
	case errors.Is(err, ErrInvalidLoan):
		return apperrors.NewInvalidPricingInputError(err.Error())
	case errors.Is(err, ErrDatabaseInsertFailed):
		return apperrors.NewDatabaseInsertFailedError(err)
	default:
		return apperrors.Wrap(apperrors.ErrCodeInternalError, err)
	}
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

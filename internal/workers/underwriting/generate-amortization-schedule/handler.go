// internal/workers/underwriting/generate-amortization-schedule/handler.go
package generateamortizationschedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
	"p2p-lending-workers/internal/common/money"
	"p2p-lending-workers/internal/pricing"
)

const (
	TaskType = "generate-amortization-schedule"
)

var (
	ErrRateUnavailable = errors.New("RATE_UNAVAILABLE")
	ErrFeeMissing      = errors.New("ORIGINATION_FEE_MISSING")
)

type Handler struct {
	config *Config
	policy pricing.Policy
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, policy pricing.Policy, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		policy: policy,
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
	rate, err := h.resolveRate(input)
	if err != nil {
		return nil, err
	}

	// The fee depends on which gross-up branch produced the principal, which the
	// principal alone does not reveal.
	if input.OriginationFee == nil {
		return nil, fmt.Errorf("%w: originationFee is required", ErrFeeMissing)
	}

	schedule, err := h.policy.Amortize(pricing.AmortizationRequest{
		GrossPrincipal: input.GrossPrincipal,
		AnnualRatePct:  rate,
		TermMonths:     input.TermMonths,
		OriginationFee: *input.OriginationFee,
	})
	if err != nil {
		return nil, err
	}

	s := schedule.Summary
	output := &Output{
		AnnualRatePct:         rate,
		TermMonths:            input.TermMonths,
		AnnuityPayment:        money.Round(s.AnnuityPayment),
		BlendedMonthlyPayment: money.Round(s.BlendedMonthlyPayment),
		AverageMonthlyPayment: money.Round(s.AverageMonthlyPayment),
		TotalInterest:         money.Round(s.TotalInterest),
		TotalServiceFee:       money.Round(s.TotalServiceFee),
		OriginationFee:        money.Round(s.OriginationFee),
		TotalCreditCost:       money.Round(s.TotalCreditCost),
		TotalToPay:            money.Round(s.TotalToPay),
		StraightLine:          schedule.StraightLine,
	}

	includeLines := h.config.IncludeLinesByDefault
	if input.IncludeLines != nil {
		includeLines = *input.IncludeLines
	}
	if includeLines {
		output.Schedule = make([]Installment, len(schedule.Lines))
		for i, line := range schedule.Lines {
			output.Schedule[i] = Installment{
				Installment: line.Installment,
				Payment:     money.Round(line.Payment),
				Principal:   money.Round(line.Principal),
				Interest:    money.Round(line.Interest),
				ServiceFee:  money.Round(line.ServiceFee),
				Balance:     money.Round(line.Balance),
			}
		}
	}

	h.logger.Info("schedule generated", map[string]interface{}{
		"applicationId":   input.ApplicationID,
		"termMonths":      input.TermMonths,
		"annuityPayment":  money.String(s.AnnuityPayment),
		"totalCreditCost": money.String(s.TotalCreditCost),
		"straightLine":    schedule.StraightLine,
	})

	return output, nil
}

// resolveRate takes annualRatePct when given, else the borrower rate of the tier.
func (h *Handler) resolveRate(input *Input) (float64, error) {
	if input.AnnualRatePct != nil {
		return *input.AnnualRatePct, nil
	}
	if tier, err := pricing.ParseRiskTier(input.RiskTier); err == nil && h.policy.Table.Has(tier) {
		return h.policy.Table.Lookup(tier).BorrowerRatePct, nil
	}
	return 0, fmt.Errorf("%w: no annualRatePct and tier %q is not priced", ErrRateUnavailable, input.RiskTier)
}

func toStandardError(err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, pricing.ErrNotComputable):
		return apperrors.NewScheduleNotComputableError(err)
	case errors.Is(err, ErrRateUnavailable), errors.Is(err, ErrFeeMissing):
		return apperrors.NewInvalidPricingInputError(err.Error())
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

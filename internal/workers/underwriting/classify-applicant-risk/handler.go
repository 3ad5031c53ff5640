// internal/workers/underwriting/classify-applicant-risk/handler.go
package classifyapplicantrisk

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
	TaskType = "classify-applicant-risk"
)

var (
	ErrInvalidSnapshot = errors.New("INVALID_PRICING_INPUT")
	ErrTierNotPriced   = errors.New("TIER_NOT_PRICED")
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
		h.failJob(client, job, apperrors.NewInvalidPricingInputError(err.Error()))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	for name, v := range map[string]*float64{
		"cardBalance":  input.CardBalance,
		"cardRatePct":  input.CardRatePct,
		"tenureMonths": input.TenureMonths,
	} {
		if v != nil && *v < 0 {
			return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalidSnapshot, name)
		}
	}

	c := pricing.Classify(input.Snapshot())
	metrics.LoanRiskTier.WithLabelValues(string(c.Tier)).Inc()

	output := &Output{
		RiskTier:       string(c.Tier),
		RiskScore:      c.Score,
		ScoreBreakdown: c.Breakdown,
		DebtService:    money.Round(c.DebtService),
		DebtToIncome:   money.RoundPct(c.DTI),
		Rejected:       c.Tier.IsRejected(),
		RejectReason:   string(c.RejectReason),
	}

	if !output.Rejected {
		if !h.policy.Table.Has(c.Tier) {
			return nil, fmt.Errorf("%w: tier %s has no pricing entry", ErrTierNotPriced, c.Tier)
		}
		p := h.policy.Table.Lookup(c.Tier)
		output.BorrowerRatePct = &p.BorrowerRatePct
		output.InvestorYieldPct = &p.InvestorYieldPct
		output.OriginationPct = &p.OriginationPct
	}

	h.logger.Info("applicant classified", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"tier":          c.Tier,
		"score":         c.Score,
		"dti":           output.DebtToIncome,
		"rejectReason":  c.RejectReason,
	})

	return output, nil
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

// internal/workers/marketplace/publish-loan-listing/handler.go
package publishloanlisting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
	"p2p-lending-workers/internal/common/money"
	"p2p-lending-workers/internal/models"
	"p2p-lending-workers/internal/pricing"
)

const (
	TaskType = "publish-loan-listing"
)

var (
	ErrElasticsearchConnectionFailed = errors.New("ELASTICSEARCH_CONNECTION_FAILED")
	ErrListingIndexFailed            = errors.New("LISTING_INDEX_FAILED")
	ErrInvalidListing                = errors.New("INVALID_LISTING")
)

type Handler struct {
	config   *Config
	esClient *elasticsearch.Client
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, esClient *elasticsearch.Client, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		esClient: esClient,
		errors:   apperrors.NewErrorHandler(scoped),
		logger:   scoped,
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
		h.failJob(client, job, toStandardError(input.LoanID, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.LoanID) == "" {
		return nil, fmt.Errorf("%w: loanId is required", ErrInvalidListing)
	}
	if tier, err := pricing.ParseRiskTier(input.RiskTier); err != nil || tier.IsRejected() {
		return nil, fmt.Errorf("%w: riskTier %q cannot be listed", ErrInvalidListing, input.RiskTier)
	}

	listedAt := time.Now().UTC()
	doc := models.Listing{
		LoanID:           input.LoanID,
		ApplicationID:    input.ApplicationID,
		RiskTier:         input.RiskTier,
		InvestorYieldPct: input.InvestorYieldPct,
		GrossPrincipal:   money.Round(input.GrossPrincipal),
		TermMonths:       input.TermMonths,
		MonthlyPayment:   money.Round(input.BlendedMonthlyPayment),
		Status:           models.LoanStatusListed,
		ListedAt:         listedAt,
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: encode listing: %v", ErrListingIndexFailed, err)
	}

	req := esapi.IndexRequest{
		Index:      h.config.Index,
		DocumentID: input.LoanID,
		Body:       bytes.NewReader(body),
		Refresh:    h.config.Refresh,
	}

	res, err := req.Do(ctx, h.esClient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrElasticsearchConnectionFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrListingIndexFailed, res.String())
	}

	var r indexResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		h.logger.Warn("could not decode index response", map[string]interface{}{
			"loanId": input.LoanID,
			"error":  err,
		})
		r.ID = input.LoanID
	}

	h.logger.Info("loan listing published", map[string]interface{}{
		"loanId":  input.LoanID,
		"index":   h.config.Index,
		"result":  r.Result,
		"version": r.Version,
	})

	return &Output{
		ListingID:      r.ID,
		ListingIndex:   h.config.Index,
		ListingVersion: r.Version,
		ListingResult:  r.Result,
		LoanStatus:     string(models.LoanStatusListed),
		ListedAt:       listedAt.Format(time.RFC3339),
	}, nil
}

func toStandardError(loanID string, err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrElasticsearchConnectionFailed):
		return apperrors.NewElasticsearchConnectionFailedError(err)
	case errors.Is(err, ErrListingIndexFailed):
		return apperrors.NewListingIndexFailedError(loanID, err)
	case errors.Is(err, ErrInvalidListing):
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

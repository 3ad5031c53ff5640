// internal/workers/notification/send-loan-notification/handler.go
package sendloannotification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	apperrors "p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
	"p2p-lending-workers/internal/models"
)

const (
	TaskType = "send-loan-notification"
)

var (
	ErrInvalidNotification    = errors.New("INVALID_NOTIFICATION")
	ErrUnknownTemplate        = errors.New("UNKNOWN_NOTIFICATION_TYPE")
	ErrRecipientNotFound      = errors.New("RECIPIENT_NOT_FOUND")
	ErrContactLookupFailed    = errors.New("DATABASE_QUERY_FAILED")
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var priorityRank = map[string]int{
	PriorityLow:    0,
	PriorityNormal: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

type Handler struct {
	config    *Config
	db        *sql.DB
	sesClient SESService
	snsClient SNSService
	errors    *apperrors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		db:        db,
		sesClient: sesClient,
		snsClient: snsClient,
		errors:    apperrors.NewErrorHandler(scoped),
		logger:    scoped,
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
		h.failJob(client, job, toStandardError(&input, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.RecipientID) == "" {
		return nil, fmt.Errorf("%w: recipientId is required", ErrInvalidNotification)
	}
	if input.RecipientType != RecipientTypeBorrower && input.RecipientType != RecipientTypeInvestor {
		return nil, fmt.Errorf("%w: invalid recipient type %q", ErrInvalidNotification, input.RecipientType)
	}

	tmpl, ok := lookupTemplate(input.NotificationType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, input.NotificationType)
	}

	output := &Output{
		NotificationID:   uuid.New().String(),
		NotificationType: input.NotificationType,
		Channels:         []string{},
		SentAt:           time.Now().UTC().Format(time.RFC3339),
	}

	contact, err := h.getRecipientContact(ctx, input.RecipientID)
	if errors.Is(err, ErrRecipientNotFound) {
		h.logger.Warn("recipient not found", map[string]interface{}{
			"recipientId": input.RecipientID,
			"type":        input.RecipientType,
		})
		output.Status = StatusDisabled
		return output, nil
	}
	if err != nil {
		return nil, err
	}

	data := map[string]interface{}{
		"recipientId":      input.RecipientID,
		"notificationType": input.NotificationType,
		"loanId":           input.LoanID,
		"applicationId":    input.ApplicationID,
		"priority":         input.Priority,
		"fullName":         contact.FullName,
	}
	for k, v := range input.Metadata {
		data[k] = v
	}

	subject := renderTemplate(tmpl.Subject, data)
	body := renderTemplate(tmpl.Body, data)

	if h.config.EmailEnabled && contact.Email != "" {
		if err := h.sendEmail(ctx, contact.Email, subject, body); err != nil {
			return h.sendFailed(input, output, ChannelEmail, err)
		}
		output.Channels = append(output.Channels, ChannelEmail)
	}

	if h.config.SMSEnabled && contact.Phone != "" && h.smsPriority(input.Priority) {
		if err := h.sendSMS(ctx, contact.Phone, renderTemplate(tmpl.SMS, data)); err != nil {
			return h.sendFailed(input, output, ChannelSMS, err)
		}
		output.Channels = append(output.Channels, ChannelSMS)
	}

	output.Status = StatusDisabled
	if len(output.Channels) > 0 {
		output.Status = StatusSent
	}

	h.logger.Info("notification processed", map[string]interface{}{
		"notificationId":   output.NotificationID,
		"notificationType": input.NotificationType,
		"status":           output.Status,
		"channels":         output.Channels,
	})
	return output, nil
}

// sendFailed completes with status "failed" unless the caller demanded delivery.
func (h *Handler) sendFailed(input *Input, output *Output, channel string, err error) (*Output, error) {
	h.logger.Error("notification send failed", map[string]interface{}{
		"channel":          channel,
		"notificationType": input.NotificationType,
		"recipientId":      input.RecipientID,
		"error":            err,
	})
	if input.MustDeliver {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotificationSendFailed, channel, err)
	}
	output.Status = StatusFailed
	return output, nil
}

func (h *Handler) smsPriority(priority string) bool {
	rank, ok := priorityRank[strings.ToLower(priority)]
	if !ok {
		return false
	}
	threshold, ok := priorityRank[strings.ToLower(h.config.SMSPriorityThreshold)]
	if !ok {
		threshold = priorityRank[PriorityHigh]
	}
	return rank >= threshold
}

func (h *Handler) getRecipientContact(ctx context.Context, recipientID string) (*models.Contact, error) {
	var (
		contact                models.Contact
		email, phone, fullName sql.NullString
	)
	err := h.db.QueryRowContext(ctx,
		`SELECT id, email, phone, full_name FROM users WHERE id = $1`, recipientID,
	).Scan(&contact.ID, &email, &phone, &fullName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRecipientNotFound, recipientID)
		}
		return nil, fmt.Errorf("%w: %v", ErrContactLookupFailed, err)
	}
	contact.Email = email.String
	contact.Phone = phone.String
	contact.FullName = fullName.String
	return &contact, nil
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func toStandardError(input *Input, err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrNotificationSendFailed):
		return apperrors.NewNotificationSendFailedError(input.NotificationType, err)
	case errors.Is(err, ErrContactLookupFailed):
		return apperrors.NewDatabaseQueryFailedError(err)
	case errors.Is(err, ErrInvalidNotification), errors.Is(err, ErrUnknownTemplate):
		return apperrors.New(apperrors.ErrCodeInvalidNotification, err.Error()).
			WithMetadata("notificationType", input.NotificationType)
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

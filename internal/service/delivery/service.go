package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawline/notify-api/internal/channel"
	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
	"github.com/pawline/notify-api/internal/service/template"
	"github.com/pawline/notify-api/pkg/logger"
	"github.com/pawline/notify-api/pkg/messaging"
	"github.com/pawline/notify-api/pkg/metrics"
)

const sweepBatchSize = 100

// ChatSender is the chat adapter surface the engine needs.
type ChatSender interface {
	SendTemplate(ctx context.Context, to string, payload channel.TemplatePayload) channel.Result
	SendText(ctx context.Context, to, text string) channel.Result
}

// EmailSender is the email adapter surface the engine needs.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) channel.Result
}

// ContentBuilder rebuilds template parameters against current emergency data,
// so a retry never replays stale content.
type ContentBuilder interface {
	Build(ctx context.Context, emergencyID uuid.UUID, language string) (*template.Content, error)
}

type Config struct {
	MaxRetries int
	RetryDelay time.Duration
}

// Service drives each message through the attempt loop: one adapter call per
// attempt with an automatic chat-template to email fallback, linear backoff
// between attempts, and a terminal state after MaxRetries failures.
type Service struct {
	messages  repository.MessageRepository
	hospitals repository.HospitalRepository
	builder   ContentBuilder
	chat      ChatSender
	email     EmailSender
	broker    messaging.Publisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cfg       Config
}

func NewService(
	messages repository.MessageRepository,
	hospitals repository.HospitalRepository,
	builder ContentBuilder,
	chat ChatSender,
	email EmailSender,
	broker messaging.Publisher,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	cfg Config,
) *Service {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}

	return &Service{
		messages:  messages,
		hospitals: hospitals,
		builder:   builder,
		chat:      chat,
		email:     email,
		broker:    broker,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Submit persists the message and runs its first attempt synchronously. The
// caller gets the message back in its post-attempt state: sent, failed, or
// queued with a persisted next-attempt time that the retry sweep picks up.
func (s *Service) Submit(ctx context.Context, msg *model.Message) error {
	if msg.Channel == "" || msg.Recipient == "" {
		return fmt.Errorf("message channel and recipient are required")
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.Status = model.MessageStatusQueued

	if err := s.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	s.attempt(ctx, msg)
	return nil
}

// SweepOnce re-attempts every queued message whose next-attempt time has
// passed. This replaces in-memory retry timers with persisted due times, so
// retries survive a process restart.
func (s *Service) SweepOnce(ctx context.Context) error {
	due, err := s.messages.GetDueQueued(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return fmt.Errorf("failed to get due messages: %w", err)
	}

	for _, msg := range due {
		s.attempt(ctx, msg)
	}
	return nil
}

func (s *Service) attempt(ctx context.Context, msg *model.Message) {
	if msg.Terminal() {
		return
	}

	start := time.Now()
	result := s.send(ctx, msg)
	if s.metrics != nil {
		s.metrics.AdapterCallLatency.WithLabelValues(string(msg.Channel)).Observe(time.Since(start).Seconds())
	}

	switch {
	case result.Success:
		s.markSent(ctx, msg, result.ProviderID)
	case result.Permanent:
		// Retrying cannot change the outcome, skip the backoff cycle.
		s.markFailed(ctx, msg, result.ErrorReason)
	default:
		s.reschedule(ctx, msg, result.ErrorReason)
	}
}

// send makes exactly one delivery attempt over the message's channel, with
// the single same-attempt fallback: a failed chat-template send is retried
// over email when the hospital has an address.
func (s *Service) send(ctx context.Context, msg *model.Message) channel.Result {
	switch msg.Channel {
	case model.ChannelChatTemplate:
		result := s.sendTemplate(ctx, msg)
		if result.Success {
			return result
		}
		return s.fallbackToEmail(ctx, msg, result)
	case model.ChannelChatFreeform:
		return s.chat.SendText(ctx, msg.Recipient, msg.Content)
	case model.ChannelEmail:
		return s.email.Send(ctx, msg.Recipient, msg.Subject, msg.Content)
	default:
		return channel.FailedPermanently(fmt.Sprintf("unsupported channel: %s", msg.Channel))
	}
}

func (s *Service) sendTemplate(ctx context.Context, msg *model.Message) channel.Result {
	// Rebuild parameters from current emergency data; the persisted params
	// may refer to records that changed since the message was queued. A
	// reference that no longer resolves is a normal attempt failure.
	content, err := s.builder.Build(ctx, msg.EmergencyID, template.LanguageFromTemplate(msg.TemplateName))
	if err != nil {
		return channel.Failed(fmt.Sprintf("template payload no longer resolves: %v", err))
	}

	msg.TemplateName = content.TemplateName
	msg.TemplateParams = content.Params
	msg.Content = content.FallbackText
	msg.Subject = content.Subject

	return s.chat.SendTemplate(ctx, msg.Recipient, channel.TemplatePayload{
		Name:       content.TemplateName,
		ParamCount: content.ParamCount,
		Params:     content.Params,
	})
}

func (s *Service) fallbackToEmail(ctx context.Context, msg *model.Message, chatResult channel.Result) channel.Result {
	email := s.hospitalEmail(ctx, msg.HospitalID)
	if email == "" {
		return chatResult
	}

	result := s.email.Send(ctx, email, msg.Subject, msg.Content)
	if result.Success {
		// Channel switch mid-message: persist the substitution on the row.
		msg.Channel = model.ChannelEmail
		msg.Recipient = email
		if s.metrics != nil {
			s.metrics.FallbackSubstitution.Inc()
		}
		s.logger.Info("chat-template send fell back to email",
			"message_id", msg.ID.String(), "reason", chatResult.ErrorReason)
		return result
	}

	combined := fmt.Sprintf("chat: %s; email fallback: %s", chatResult.ErrorReason, result.ErrorReason)
	if chatResult.Permanent && result.Permanent {
		return channel.FailedPermanently(combined)
	}
	return channel.Failed(combined)
}

func (s *Service) hospitalEmail(ctx context.Context, hospitalID uuid.UUID) string {
	if hospitalID == uuid.Nil {
		return ""
	}
	hospital, err := s.hospitals.Get(ctx, hospitalID)
	if err != nil || hospital.Email == nil {
		return ""
	}
	return *hospital.Email
}

func (s *Service) markSent(ctx context.Context, msg *model.Message, providerID string) {
	now := time.Now()
	msg.Status = model.MessageStatusSent
	msg.SentAt = &now
	msg.NextAttemptAt = nil
	msg.ErrorReason = nil
	if providerID != "" {
		msg.ProviderMessageID = &providerID
	}

	if err := s.messages.Update(ctx, msg); err != nil {
		s.logger.Error(err, "failed to persist sent message", "message_id", msg.ID.String())
		return
	}

	if s.metrics != nil {
		s.metrics.MessagesSent.WithLabelValues(string(msg.Channel)).Inc()
	}
	s.publish(ctx, msg)
}

func (s *Service) markFailed(ctx context.Context, msg *model.Message, reason string) {
	now := time.Now()
	msg.Status = model.MessageStatusFailed
	msg.FailedAt = &now
	msg.NextAttemptAt = nil
	msg.ErrorReason = &reason

	if err := s.messages.Update(ctx, msg); err != nil {
		s.logger.Error(err, "failed to persist failed message", "message_id", msg.ID.String())
		return
	}

	if s.metrics != nil {
		s.metrics.MessagesFailed.WithLabelValues(string(msg.Channel)).Inc()
	}
	s.logger.Info("message reached terminal failure",
		"message_id", msg.ID.String(), "retry_count", msg.RetryCount, "reason", reason)
	s.publish(ctx, msg)
}

func (s *Service) reschedule(ctx context.Context, msg *model.Message, reason string) {
	msg.RetryCount++
	if msg.RetryCount >= s.cfg.MaxRetries {
		s.markFailed(ctx, msg, reason)
		return
	}

	// Linear backoff: base delay times the attempt number.
	next := time.Now().Add(s.cfg.RetryDelay * time.Duration(msg.RetryCount))
	msg.NextAttemptAt = &next
	msg.ErrorReason = &reason

	if err := s.messages.Update(ctx, msg); err != nil {
		s.logger.Error(err, "failed to persist retry state", "message_id", msg.ID.String())
		return
	}

	if s.metrics != nil {
		s.metrics.MessageRetries.WithLabelValues(string(msg.Channel)).Inc()
	}
	s.logger.Debug("message rescheduled",
		"message_id", msg.ID.String(), "retry_count", msg.RetryCount, "next_attempt_at", next)
}

func (s *Service) publish(ctx context.Context, msg *model.Message) {
	if s.broker == nil {
		return
	}

	reason := ""
	if msg.ErrorReason != nil {
		reason = *msg.ErrorReason
	}
	event := model.MessageEvent{
		MessageID:   msg.ID,
		EmergencyID: msg.EmergencyID,
		HospitalID:  msg.HospitalID,
		Channel:     msg.Channel,
		Status:      msg.Status,
		ErrorReason: reason,
		OccurredAt:  time.Now(),
	}
	if err := s.broker.Publish(ctx, messaging.ChannelMessageEvents, event); err != nil {
		s.logger.Error(err, "failed to publish message event", "message_id", msg.ID.String())
	}
}

package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/pawline/notify-api/internal/channel"
	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
	"github.com/pawline/notify-api/pkg/logger"
	"github.com/pawline/notify-api/pkg/metrics"
)

// PushSender is the multicast push adapter surface.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string) (*channel.MulticastResult, error)
}

// Service drains due scheduled broadcasts and delivers them via multicast
// push, pruning tokens the provider reports as permanently dead.
type Service struct {
	broadcasts repository.ScheduledBroadcastRepository
	tokens     repository.PushTokenRepository
	push       PushSender
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

func NewService(
	broadcasts repository.ScheduledBroadcastRepository,
	tokens repository.PushTokenRepository,
	push PushSender,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		broadcasts: broadcasts,
		tokens:     tokens,
		push:       push,
		metrics:    metrics,
		logger:     logger,
	}
}

// RunOnce drains every pending broadcast whose scheduled time has passed.
// Broadcasts are independent; one failure never aborts the batch.
func (s *Service) RunOnce(ctx context.Context) error {
	due, err := s.broadcasts.GetDue(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to get due broadcasts: %w", err)
	}

	for _, b := range due {
		if err := s.dispatch(ctx, b); err != nil {
			s.logger.Error(err, "failed to dispatch broadcast", "broadcast_id", b.ID.String())
		}
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, b *model.ScheduledBroadcast) error {
	claimed, err := s.broadcasts.Claim(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("failed to claim broadcast: %w", err)
	}
	if !claimed {
		// Another pass got here first.
		return nil
	}

	tokens, err := s.tokens.ListActive(ctx, b.TargetLanguage, b.TargetRole)
	if err != nil {
		return s.finish(ctx, b, model.BroadcastStatusFailed, 0, fmt.Sprintf("token lookup failed: %v", err))
	}

	// An empty audience is success, not failure: nobody matched the filter.
	if len(tokens) == 0 {
		return s.finish(ctx, b, model.BroadcastStatusSent, 0, "")
	}

	batch := make([]string, 0, len(tokens))
	for _, t := range tokens {
		batch = append(batch, t.Token)
	}

	result, err := s.push.SendMulticast(ctx, batch, b.Title, b.Body)
	if err != nil {
		return s.finish(ctx, b, model.BroadcastStatusFailed, len(batch), err.Error())
	}

	if len(result.InvalidTokens) > 0 {
		if err := s.tokens.Deactivate(ctx, result.InvalidTokens); err != nil {
			s.logger.Error(err, "failed to deactivate dead tokens", "count", len(result.InvalidTokens))
		} else if s.metrics != nil {
			s.metrics.TokensDeactivated.Add(float64(len(result.InvalidTokens)))
		}
	}

	return s.finish(ctx, b, model.BroadcastStatusSent, len(batch), result.Raw)
}

func (s *Service) finish(ctx context.Context, b *model.ScheduledBroadcast, status model.BroadcastStatus, recipients int, providerResponse string) error {
	now := time.Now()
	b.Status = status
	b.RecipientCount = recipients
	if providerResponse != "" {
		b.ProviderResponse = &providerResponse
	}
	if status == model.BroadcastStatusSent {
		b.SentAt = &now
	}

	if err := s.broadcasts.Update(ctx, b); err != nil {
		return fmt.Errorf("failed to persist broadcast outcome: %w", err)
	}

	if s.metrics != nil {
		s.metrics.DispatchBatches.Inc()
	}
	s.logger.Info("scheduled broadcast dispatched",
		"broadcast_id", b.ID.String(), "status", string(status), "recipients", recipients)
	return nil
}

// NotifySignal pushes a severe-weather alert to the entire active audience.
// This is the downstream fan-out the signal monitor triggers at or above its
// severity threshold.
func (s *Service) NotifySignal(ctx context.Context, alert *model.SignalAlert) error {
	tokens, err := s.tokens.ListActive(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to list push audience: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	batch := make([]string, 0, len(tokens))
	for _, t := range tokens {
		batch = append(batch, t.Token)
	}

	title := "Severe weather alert"
	body := fmt.Sprintf("Signal %s is now in force. 24-hour veterinary hospitals may adjust service.", alert.SignalCode)

	result, err := s.push.SendMulticast(ctx, batch, title, body)
	if err != nil {
		return fmt.Errorf("failed to push signal alert: %w", err)
	}

	if len(result.InvalidTokens) > 0 {
		if err := s.tokens.Deactivate(ctx, result.InvalidTokens); err != nil {
			s.logger.Error(err, "failed to deactivate dead tokens", "count", len(result.InvalidTokens))
		}
	}
	return nil
}

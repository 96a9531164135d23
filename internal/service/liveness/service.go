package liveness

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
	"github.com/pawline/notify-api/pkg/logger"
	"github.com/pawline/notify-api/pkg/messaging"
	"github.com/pawline/notify-api/pkg/metrics"
)

// 23h, not 24h: the ping pass runs on a daily schedule with jitter, and a
// full 24h window would skip a day whenever a run fires slightly early.
const pingEligibilityWindow = 23 * time.Hour

const (
	pingTextEN = "Daily check: please reply OK to confirm this channel is monitored."
	pingTextZH = "每日檢查：請回覆 OK 以確認此頻道有人值班。"
)

// Deliverer is the delivery engine surface the prober uses for the ping
// message itself.
type Deliverer interface {
	Submit(ctx context.Context, msg *model.Message) error
}

type Config struct {
	// StalenessThreshold is how long after a ping a missing reply demotes the
	// hospital to no_reply.
	StalenessThreshold time.Duration
}

// Service owns the hospital liveness state machine: active ⇄ no_reply, plus a
// manually-set paused sink the scheduler never leaves automatically.
type Service struct {
	hospitals repository.HospitalRepository
	states    repository.LivenessRepository
	delivery  Deliverer
	broker    messaging.Publisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
	cfg       Config
}

func NewService(
	hospitals repository.HospitalRepository,
	states repository.LivenessRepository,
	delivery Deliverer,
	broker messaging.Publisher,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	cfg Config,
) *Service {
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = 2 * time.Hour
	}

	return &Service{
		hospitals: hospitals,
		states:    states,
		delivery:  delivery,
		broker:    broker,
		metrics:   metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// RunPingPassOnce sends the daily health-check ping to every eligible
// hospital. Hospitals are independent; a failed ping to one never aborts the
// pass.
func (s *Service) RunPingPassOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-pingEligibilityWindow)
	hospitals, err := s.hospitals.ListPingEligible(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list ping-eligible hospitals: %w", err)
	}

	for _, hospital := range hospitals {
		if err := s.pingHospital(ctx, hospital); err != nil {
			s.logger.Error(err, "failed to ping hospital", "hospital_id", hospital.ID.String())
		}
	}
	return nil
}

func (s *Service) pingHospital(ctx context.Context, hospital *model.Hospital) error {
	recipient := ""
	if hospital.ChatID != nil && *hospital.ChatID != "" {
		recipient = *hospital.ChatID
	} else if hospital.ChatNumber != nil && *hospital.ChatNumber != "" {
		recipient = *hospital.ChatNumber
	}
	if recipient == "" {
		return fmt.Errorf("hospital %s has no chat destination", hospital.ID)
	}

	msg := &model.Message{
		HospitalID: hospital.ID,
		Channel:    model.ChannelChatFreeform,
		Recipient:  recipient,
		Content:    pingTextEN + "\n" + pingTextZH,
	}
	if err := s.delivery.Submit(ctx, msg); err != nil {
		return fmt.Errorf("failed to submit ping: %w", err)
	}
	if msg.Status != model.MessageStatusSent {
		// Queued-for-retry or failed: the state row keeps its previous ping
		// time so the hospital stays eligible next pass.
		return fmt.Errorf("ping not delivered: status=%s", msg.Status)
	}

	now := time.Now()
	state, err := s.states.Get(ctx, hospital.ID)
	if err != nil {
		return fmt.Errorf("failed to load liveness state: %w", err)
	}
	if state == nil {
		// First eligible ping creates the row.
		state = &model.LivenessState{
			HospitalID:  hospital.ID,
			PingEnabled: true,
			Status:      model.LivenessStatusActive,
		}
	}
	state.LastPingSentAt = &now
	state.LastPingMessageID = &msg.ID

	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to upsert liveness state: %w", err)
	}

	s.appendEvent(ctx, hospital.ID, model.LivenessDirectionOutbound, model.LivenessEventPingSent, msg.ProviderMessageID, nil)
	if s.metrics != nil {
		s.metrics.PingsSent.Inc()
	}
	return nil
}

// RunNoReplySweepOnce demotes hospitals whose last ping passed the staleness
// threshold with no reply since. This is a separate pass from sending,
// because a reply may legitimately arrive any time inside the window.
func (s *Service) RunNoReplySweepOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.StalenessThreshold)
	stale, err := s.states.ListStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale liveness states: %w", err)
	}

	for _, state := range stale {
		if err := s.markNoReply(ctx, state); err != nil {
			s.logger.Error(err, "failed to mark no-reply", "hospital_id", state.HospitalID.String())
		}
	}
	return nil
}

func (s *Service) markNoReply(ctx context.Context, state *model.LivenessState) error {
	now := time.Now()
	state.Status = model.LivenessStatusNoReply
	state.NoReplySince = &now

	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to upsert liveness state: %w", err)
	}

	s.appendEvent(ctx, state.HospitalID, model.LivenessDirectionOutbound, model.LivenessEventNoReplyMarked, nil, nil)
	if s.metrics != nil {
		s.metrics.NoReplyMarked.Inc()
	}
	s.logger.Info("hospital marked no-reply", "hospital_id", state.HospitalID.String())
	s.publishTransition(ctx, state)
	return nil
}

// HandleReply processes an inbound chat message from a hospital, driven by
// the provider webhook. A reply always wins over a pending no-reply
// determination.
func (s *Service) HandleReply(ctx context.Context, hospitalID uuid.UUID, providerMessageID string, receivedAt time.Time) error {
	state, err := s.states.Get(ctx, hospitalID)
	if err != nil {
		return fmt.Errorf("failed to load liveness state: %w", err)
	}
	if state == nil {
		// Reply from a hospital that was never pinged; record it so the next
		// ping pass starts from a healthy baseline.
		state = &model.LivenessState{
			HospitalID:  hospitalID,
			PingEnabled: true,
		}
	}

	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	state.Status = model.LivenessStatusActive
	state.LastReplyAt = &receivedAt
	state.NoReplySince = nil
	if state.LastPingSentAt != nil {
		latency := int64(receivedAt.Sub(*state.LastPingSentAt).Seconds())
		state.LastReplyLatencySeconds = &latency
	} else {
		state.LastReplyLatencySeconds = nil
	}

	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("failed to upsert liveness state: %w", err)
	}

	var pid *string
	if providerMessageID != "" {
		pid = &providerMessageID
	}
	s.appendEvent(ctx, hospitalID, model.LivenessDirectionInbound, model.LivenessEventReplyReceived, pid, nil)
	if s.metrics != nil {
		s.metrics.RepliesHandled.Inc()
	}
	s.publishTransition(ctx, state)
	return nil
}

func (s *Service) appendEvent(
	ctx context.Context,
	hospitalID uuid.UUID,
	direction model.LivenessDirection,
	eventType model.LivenessEventType,
	providerMessageID *string,
	payload json.RawMessage,
) {
	event := &model.LivenessEvent{
		HospitalID:        hospitalID,
		Direction:         direction,
		EventType:         eventType,
		ProviderMessageID: providerMessageID,
		Payload:           payload,
	}
	if err := s.states.AppendEvent(ctx, event); err != nil {
		s.logger.Error(err, "failed to append liveness event",
			"hospital_id", hospitalID.String(), "event_type", string(eventType))
	}
}

func (s *Service) publishTransition(ctx context.Context, state *model.LivenessState) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(ctx, messaging.ChannelLivenessEvents, state); err != nil {
		s.logger.Error(err, "failed to publish liveness transition",
			"hospital_id", state.HospitalID.String())
	}
}

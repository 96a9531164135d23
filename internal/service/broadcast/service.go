package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
	"github.com/pawline/notify-api/internal/service/template"
	"github.com/pawline/notify-api/pkg/logger"
)

const (
	hospitalCacheTTL     = 5 * time.Minute
	hospitalCacheCleanup = 10 * time.Minute

	noContactReason = "no contact method"
)

// ContentBuilder builds the emergency content once per broadcast.
type ContentBuilder interface {
	Build(ctx context.Context, emergencyID uuid.UUID, language string) (*template.Content, error)
}

// Deliverer is the delivery engine surface the orchestrator delegates to.
type Deliverer interface {
	Submit(ctx context.Context, msg *model.Message) error
}

// Service fans an emergency out to N hospitals. Each recipient is processed
// independently; one recipient's failure never blocks the rest.
type Service struct {
	builder   ContentBuilder
	hospitals repository.HospitalRepository
	messages  repository.MessageRepository
	delivery  Deliverer
	cache     *gocache.Cache
	logger    *logger.Logger
}

func NewService(
	builder ContentBuilder,
	hospitals repository.HospitalRepository,
	messages repository.MessageRepository,
	delivery Deliverer,
	logger *logger.Logger,
) *Service {
	return &Service{
		builder:   builder,
		hospitals: hospitals,
		messages:  messages,
		delivery:  delivery,
		cache:     gocache.New(hospitalCacheTTL, hospitalCacheCleanup),
		logger:    logger,
	}
}

// Broadcast builds content for the emergency once, then submits one message
// per hospital over its best available channel. Hospitals with no contact
// method get an immediately-terminal failed row so the fan-out stays
// auditable. The returned slice has one entry per recipient in input order.
func (s *Service) Broadcast(ctx context.Context, emergencyID uuid.UUID, hospitalIDs []uuid.UUID) ([]*model.Message, error) {
	// Content is built once per broadcast, in the emergency's own language.
	content, err := s.builder.Build(ctx, emergencyID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to build content: %w", err)
	}

	messages := make([]*model.Message, 0, len(hospitalIDs))
	for _, hospitalID := range hospitalIDs {
		msg := s.deliverToHospital(ctx, emergencyID, hospitalID, content)
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *Service) deliverToHospital(ctx context.Context, emergencyID, hospitalID uuid.UUID, content *template.Content) *model.Message {
	hospital, err := s.getHospital(ctx, hospitalID)
	if err != nil {
		s.logger.Error(err, "failed to load hospital for broadcast", "hospital_id", hospitalID.String())
		return s.recordUnreachable(ctx, emergencyID, hospitalID, fmt.Sprintf("hospital lookup failed: %v", err))
	}

	msg := s.routeMessage(emergencyID, hospital, content)
	if msg == nil {
		return s.recordUnreachable(ctx, emergencyID, hospitalID, noContactReason)
	}

	if err := s.delivery.Submit(ctx, msg); err != nil {
		// Submission failure is isolated to this recipient.
		s.logger.Error(err, "failed to submit message", "hospital_id", hospitalID.String())
	}
	return msg
}

// routeMessage picks the channel by fixed priority: dedicated chat ID, then
// chat number, then email. Returns nil when the hospital has none.
func (s *Service) routeMessage(emergencyID uuid.UUID, hospital *model.Hospital, content *template.Content) *model.Message {
	base := model.Message{
		EmergencyID:    emergencyID,
		HospitalID:     hospital.ID,
		Subject:        content.Subject,
		Content:        content.FallbackText,
		TemplateName:   content.TemplateName,
		TemplateParams: content.Params,
	}

	switch {
	case hospital.ChatID != nil && *hospital.ChatID != "":
		base.Channel = model.ChannelChatFreeform
		base.Recipient = *hospital.ChatID
	case hospital.ChatNumber != nil && *hospital.ChatNumber != "":
		base.Channel = model.ChannelChatTemplate
		base.Recipient = *hospital.ChatNumber
	case hospital.Email != nil && *hospital.Email != "":
		base.Channel = model.ChannelEmail
		base.Recipient = *hospital.Email
	default:
		return nil
	}
	return &base
}

// recordUnreachable persists a terminal failed row with no send attempt.
func (s *Service) recordUnreachable(ctx context.Context, emergencyID, hospitalID uuid.UUID, reason string) *model.Message {
	now := time.Now()
	msg := &model.Message{
		ID:          uuid.New(),
		EmergencyID: emergencyID,
		HospitalID:  hospitalID,
		Status:      model.MessageStatusFailed,
		FailedAt:    &now,
		ErrorReason: &reason,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		s.logger.Error(err, "failed to record unreachable hospital", "hospital_id", hospitalID.String())
	}
	return msg
}

func (s *Service) getHospital(ctx context.Context, id uuid.UUID) (*model.Hospital, error) {
	if cached, ok := s.cache.Get(id.String()); ok {
		return cached.(*model.Hospital), nil
	}
	hospital, err := s.hospitals.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(id.String(), hospital, gocache.DefaultExpiration)
	return hospital, nil
}

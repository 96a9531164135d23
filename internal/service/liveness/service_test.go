package liveness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/pkg/logger"
)

type stubHospitals struct {
	eligible []*model.Hospital
}

func (s *stubHospitals) Get(_ context.Context, _ uuid.UUID) (*model.Hospital, error) {
	return nil, errors.New("not found")
}

func (s *stubHospitals) ListPingEligible(_ context.Context, _ time.Time) ([]*model.Hospital, error) {
	return s.eligible, nil
}

type stubStates struct {
	byHospital map[uuid.UUID]*model.LivenessState
	stale      []*model.LivenessState
	events     []*model.LivenessEvent
}

func newStubStates() *stubStates {
	return &stubStates{byHospital: map[uuid.UUID]*model.LivenessState{}}
}

func (s *stubStates) Get(_ context.Context, hospitalID uuid.UUID) (*model.LivenessState, error) {
	return s.byHospital[hospitalID], nil
}

func (s *stubStates) Upsert(_ context.Context, state *model.LivenessState) error {
	s.byHospital[state.HospitalID] = state
	return nil
}

func (s *stubStates) ListStale(_ context.Context, _ time.Time) ([]*model.LivenessState, error) {
	return s.stale, nil
}

func (s *stubStates) AppendEvent(_ context.Context, event *model.LivenessEvent) error {
	s.events = append(s.events, event)
	return nil
}

// stubDelivery marks each submission with the configured status and assigns an
// ID, mimicking the engine's synchronous first attempt.
type stubDelivery struct {
	status    model.MessageStatus
	submitted []*model.Message
}

func (s *stubDelivery) Submit(_ context.Context, msg *model.Message) error {
	msg.ID = uuid.New()
	msg.Status = s.status
	s.submitted = append(s.submitted, msg)
	return nil
}

func strptr(s string) *string { return &s }

func chatHospital() *model.Hospital {
	return &model.Hospital{ID: uuid.New(), Name: "Harbour Vet 24", ChatID: strptr("group-1"), PingEnabled: true}
}

func newTestService(hospitals *stubHospitals, states *stubStates, delivery *stubDelivery, cfg Config) *Service {
	return NewService(hospitals, states, delivery, nil, nil, logger.NewFromZerolog(zerolog.Nop()), cfg)
}

func TestPingPassCreatesStateAndEvent(t *testing.T) {
	hospital := chatHospital()
	states := newStubStates()
	delivery := &stubDelivery{status: model.MessageStatusSent}
	svc := newTestService(&stubHospitals{eligible: []*model.Hospital{hospital}}, states, delivery, Config{})

	require.NoError(t, svc.RunPingPassOnce(context.Background()))

	require.Len(t, delivery.submitted, 1)
	ping := delivery.submitted[0]
	assert.Equal(t, model.ChannelChatFreeform, ping.Channel)
	assert.Equal(t, "group-1", ping.Recipient)

	state := states.byHospital[hospital.ID]
	require.NotNil(t, state)
	assert.Equal(t, model.LivenessStatusActive, state.Status)
	assert.NotNil(t, state.LastPingSentAt)
	require.NotNil(t, state.LastPingMessageID)
	assert.Equal(t, ping.ID, *state.LastPingMessageID)

	require.Len(t, states.events, 1)
	assert.Equal(t, model.LivenessEventPingSent, states.events[0].EventType)
	assert.Equal(t, model.LivenessDirectionOutbound, states.events[0].Direction)
}

func TestPingPassPrefersChatIDOverNumber(t *testing.T) {
	hospital := chatHospital()
	hospital.ChatNumber = strptr("+85200000001")
	states := newStubStates()
	delivery := &stubDelivery{status: model.MessageStatusSent}
	svc := newTestService(&stubHospitals{eligible: []*model.Hospital{hospital}}, states, delivery, Config{})

	require.NoError(t, svc.RunPingPassOnce(context.Background()))

	require.Len(t, delivery.submitted, 1)
	assert.Equal(t, "group-1", delivery.submitted[0].Recipient)
}

func TestFailedPingKeepsPreviousState(t *testing.T) {
	hospital := chatHospital()
	states := newStubStates()
	earlier := time.Now().Add(-24 * time.Hour)
	states.byHospital[hospital.ID] = &model.LivenessState{
		HospitalID:     hospital.ID,
		Status:         model.LivenessStatusActive,
		LastPingSentAt: &earlier,
	}
	delivery := &stubDelivery{status: model.MessageStatusQueued}
	svc := newTestService(&stubHospitals{eligible: []*model.Hospital{hospital}}, states, delivery, Config{})

	require.NoError(t, svc.RunPingPassOnce(context.Background()))

	// State keeps the old ping time so the hospital stays eligible next pass.
	state := states.byHospital[hospital.ID]
	assert.True(t, state.LastPingSentAt.Equal(earlier))
	assert.Empty(t, states.events)
}

func TestPingPassIsolatesHospitalFailures(t *testing.T) {
	noChat := &model.Hospital{ID: uuid.New(), PingEnabled: true}
	good := chatHospital()
	states := newStubStates()
	delivery := &stubDelivery{status: model.MessageStatusSent}
	svc := newTestService(&stubHospitals{eligible: []*model.Hospital{noChat, good}}, states, delivery, Config{})

	require.NoError(t, svc.RunPingPassOnce(context.Background()))

	require.Len(t, delivery.submitted, 1)
	assert.NotNil(t, states.byHospital[good.ID])
	assert.Nil(t, states.byHospital[noChat.ID])
}

func TestNoReplySweepMarksStaleStates(t *testing.T) {
	hospitalID := uuid.New()
	pingAt := time.Now().Add(-3 * time.Hour)
	state := &model.LivenessState{
		HospitalID:     hospitalID,
		Status:         model.LivenessStatusActive,
		LastPingSentAt: &pingAt,
	}
	states := newStubStates()
	states.byHospital[hospitalID] = state
	states.stale = []*model.LivenessState{state}
	svc := newTestService(&stubHospitals{}, states, &stubDelivery{}, Config{StalenessThreshold: 2 * time.Hour})

	require.NoError(t, svc.RunNoReplySweepOnce(context.Background()))

	assert.Equal(t, model.LivenessStatusNoReply, state.Status)
	assert.NotNil(t, state.NoReplySince)
	require.Len(t, states.events, 1)
	assert.Equal(t, model.LivenessEventNoReplyMarked, states.events[0].EventType)
}

func TestReplyRestoresActiveAndRecordsLatency(t *testing.T) {
	hospitalID := uuid.New()
	pingAt := time.Now().Add(-90 * time.Second)
	noReplyAt := time.Now().Add(-10 * time.Second)
	states := newStubStates()
	states.byHospital[hospitalID] = &model.LivenessState{
		HospitalID:     hospitalID,
		Status:         model.LivenessStatusNoReply,
		LastPingSentAt: &pingAt,
		NoReplySince:   &noReplyAt,
	}
	svc := newTestService(&stubHospitals{}, states, &stubDelivery{}, Config{})

	receivedAt := time.Now()
	require.NoError(t, svc.HandleReply(context.Background(), hospitalID, "wamid.reply", receivedAt))

	state := states.byHospital[hospitalID]
	assert.Equal(t, model.LivenessStatusActive, state.Status)
	assert.Nil(t, state.NoReplySince)
	require.NotNil(t, state.LastReplyAt)
	require.NotNil(t, state.LastReplyLatencySeconds)
	assert.InDelta(t, 90, *state.LastReplyLatencySeconds, 2)

	require.Len(t, states.events, 1)
	assert.Equal(t, model.LivenessEventReplyReceived, states.events[0].EventType)
	assert.Equal(t, model.LivenessDirectionInbound, states.events[0].Direction)
	require.NotNil(t, states.events[0].ProviderMessageID)
	assert.Equal(t, "wamid.reply", *states.events[0].ProviderMessageID)
}

func TestReplyFromUnpingedHospitalCreatesState(t *testing.T) {
	hospitalID := uuid.New()
	states := newStubStates()
	svc := newTestService(&stubHospitals{}, states, &stubDelivery{}, Config{})

	require.NoError(t, svc.HandleReply(context.Background(), hospitalID, "", time.Now()))

	state := states.byHospital[hospitalID]
	require.NotNil(t, state)
	assert.Equal(t, model.LivenessStatusActive, state.Status)
	// Latency is meaningless without a ping to measure against.
	assert.Nil(t, state.LastReplyLatencySeconds)
}

func TestReplyWithZeroTimeUsesNow(t *testing.T) {
	hospitalID := uuid.New()
	states := newStubStates()
	svc := newTestService(&stubHospitals{}, states, &stubDelivery{}, Config{})

	before := time.Now()
	require.NoError(t, svc.HandleReply(context.Background(), hospitalID, "", time.Time{}))

	state := states.byHospital[hospitalID]
	require.NotNil(t, state.LastReplyAt)
	assert.WithinDuration(t, before, *state.LastReplyAt, time.Second)
}

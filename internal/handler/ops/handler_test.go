package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/pkg/logger"
)

type stubBroadcaster struct {
	emergencyID uuid.UUID
	hospitalIDs []uuid.UUID
	err         error
}

func (s *stubBroadcaster) Broadcast(_ context.Context, emergencyID uuid.UUID, hospitalIDs []uuid.UUID) ([]*model.Message, error) {
	s.emergencyID = emergencyID
	s.hospitalIDs = hospitalIDs
	if s.err != nil {
		return nil, s.err
	}
	return []*model.Message{{ID: uuid.New(), Status: model.MessageStatusSent}}, nil
}

type stubDeliverer struct {
	submitted []*model.Message
}

func (s *stubDeliverer) Submit(_ context.Context, msg *model.Message) error {
	msg.Status = model.MessageStatusSent
	s.submitted = append(s.submitted, msg)
	return nil
}

type stubReplies struct {
	hospitalID uuid.UUID
	providerID string
	receivedAt time.Time
}

func (s *stubReplies) HandleReply(_ context.Context, hospitalID uuid.UUID, providerMessageID string, receivedAt time.Time) error {
	s.hospitalID = hospitalID
	s.providerID = providerMessageID
	s.receivedAt = receivedAt
	return nil
}

type stubRunner struct {
	calls int
}

func (s *stubRunner) RunOnce(_ context.Context) { s.calls++ }

type testHarness struct {
	router      *gin.Engine
	broadcaster *stubBroadcaster
	delivery    *stubDeliverer
	replies     *stubReplies
	pingPass    *stubRunner
	sweep       *stubRunner
	signal      *stubRunner
	dispatch    *stubRunner
}

func newHarness() *testHarness {
	gin.SetMode(gin.TestMode)
	h := &testHarness{
		broadcaster: &stubBroadcaster{},
		delivery:    &stubDeliverer{},
		replies:     &stubReplies{},
		pingPass:    &stubRunner{},
		sweep:       &stubRunner{},
		signal:      &stubRunner{},
		dispatch:    &stubRunner{},
	}
	handler := NewHandler(h.broadcaster, h.delivery, h.replies,
		h.pingPass, h.sweep, h.signal, h.dispatch,
		logger.NewFromZerolog(zerolog.Nop()))

	h.router = gin.New()
	handler.RegisterRoutes(h.router.Group("/api/v1"))
	return h
}

func (h *testHarness) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestCreateBroadcast(t *testing.T) {
	h := newHarness()
	emergencyID := uuid.New()
	hospitalID := uuid.New()

	w := h.post(t, "/api/v1/broadcasts", map[string]interface{}{
		"emergency_id": emergencyID,
		"hospital_ids": []uuid.UUID{hospitalID},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, emergencyID, h.broadcaster.emergencyID)
	assert.Equal(t, []uuid.UUID{hospitalID}, h.broadcaster.hospitalIDs)
}

func TestCreateBroadcastRequiresHospitals(t *testing.T) {
	h := newHarness()

	w := h.post(t, "/api/v1/broadcasts", map[string]interface{}{
		"emergency_id": uuid.New(),
		"hospital_ids": []uuid.UUID{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitMessage(t *testing.T) {
	h := newHarness()

	w := h.post(t, "/api/v1/messages", map[string]interface{}{
		"hospital_id": uuid.New(),
		"channel":     "email",
		"recipient":   "oncall@hospital.example",
		"subject":     "Emergency case",
		"content":     "details",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, h.delivery.submitted, 1)
	assert.Equal(t, model.ChannelEmail, h.delivery.submitted[0].Channel)
}

func TestSubmitMessageRejectsUnknownChannel(t *testing.T) {
	h := newHarness()

	w := h.post(t, "/api/v1/messages", map[string]interface{}{
		"hospital_id": uuid.New(),
		"channel":     "sms",
		"recipient":   "+85291234567",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.delivery.submitted)
}

func TestChatWebhookFeedsReplyHandler(t *testing.T) {
	h := newHarness()
	hospitalID := uuid.New()
	receivedAt := time.Now().UTC().Truncate(time.Second)

	w := h.post(t, "/api/v1/webhooks/chat", map[string]interface{}{
		"hospital_id":         hospitalID,
		"provider_message_id": "wamid.7",
		"received_at":         receivedAt,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, hospitalID, h.replies.hospitalID)
	assert.Equal(t, "wamid.7", h.replies.providerID)
	assert.True(t, h.replies.receivedAt.Equal(receivedAt))
}

func TestOpsEndpointsTriggerRunners(t *testing.T) {
	h := newHarness()

	for path, runner := range map[string]*stubRunner{
		"/api/v1/ops/liveness-ping":  h.pingPass,
		"/api/v1/ops/liveness-sweep": h.sweep,
		"/api/v1/ops/signal-check":   h.signal,
		"/api/v1/ops/dispatch":       h.dispatch,
	} {
		w := h.post(t, path, nil)
		assert.Equal(t, http.StatusAccepted, w.Code, path)
		assert.Equal(t, 1, runner.calls, path)
	}
}

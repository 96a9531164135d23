package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawline/notify-api/pkg/logger"
)

func testPushClient(endpoint string) *PushClient {
	return NewPushClient(PushConfig{
		Endpoint:  endpoint,
		ServerKey: "test-key",
	}, logger.NewFromZerolog(zerolog.Nop()))
}

func TestSendMulticastSuccess(t *testing.T) {
	var got pushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key=test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":2,"failure":0,"results":[{"message_id":"m1"},{"message_id":"m2"}]}`))
	}))
	defer srv.Close()

	result, err := testPushClient(srv.URL).SendMulticast(context.Background(),
		[]string{"tok-1", "tok-2"}, "Title", "Body")
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Zero(t, result.FailureCount)
	assert.Empty(t, result.InvalidTokens)
	assert.Equal(t, []string{"tok-1", "tok-2"}, got.RegistrationIDs)
	assert.Equal(t, "Title", got.Notification.Title)
}

func TestSendMulticastMapsInvalidTokensPositionally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":1,"failure":2,"results":[
			{"error":"NotRegistered"},
			{"message_id":"m1"},
			{"error":"Unavailable"}
		]}`))
	}))
	defer srv.Close()

	result, err := testPushClient(srv.URL).SendMulticast(context.Background(),
		[]string{"tok-dead", "tok-ok", "tok-flaky"}, "Title", "Body")
	require.NoError(t, err)

	assert.Equal(t, 2, result.FailureCount)
	// Only permanently-dead registrations are pruned; Unavailable is transient.
	assert.Equal(t, []string{"tok-dead"}, result.InvalidTokens)
}

func TestSendMulticastAllPermanentErrorCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"success":0,"failure":3,"results":[
			{"error":"NotRegistered"},
			{"error":"InvalidRegistration"},
			{"error":"MismatchSenderId"}
		]}`))
	}))
	defer srv.Close()

	result, err := testPushClient(srv.URL).SendMulticast(context.Background(),
		[]string{"a", "b", "c"}, "Title", "Body")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, result.InvalidTokens)
}

func TestSendMulticastRequiresCredentials(t *testing.T) {
	c := NewPushClient(PushConfig{Endpoint: "http://unused.example"}, logger.NewFromZerolog(zerolog.Nop()))

	_, err := c.SendMulticast(context.Background(), []string{"tok"}, "T", "B")
	assert.Error(t, err)
}

func TestSendMulticastRejectsEmptyBatch(t *testing.T) {
	_, err := testPushClient("http://unused.example").SendMulticast(context.Background(), nil, "T", "B")
	assert.Error(t, err)
}

func TestSendMulticastProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testPushClient(srv.URL).SendMulticast(context.Background(), []string{"tok"}, "T", "B")
	assert.Error(t, err)
}

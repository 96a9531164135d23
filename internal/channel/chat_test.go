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

func testChatClient(baseURL string) *ChatClient {
	return NewChatClient(ChatConfig{
		BaseURL:       baseURL,
		Token:         "test-token",
		RatePerSecond: 1000,
		Burst:         1000,
	}, logger.NewFromZerolog(zerolog.Nop()))
}

func TestSendTemplateSuccess(t *testing.T) {
	var got chatTemplateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"messages":[{"id":"wamid.42"}]}`))
	}))
	defer srv.Close()

	result := testChatClient(srv.URL).SendTemplate(context.Background(), "+85291234567", TemplatePayload{
		Name:       "emergency_basic",
		ParamCount: 2,
		Params:     []string{"Dog", "Vomiting"},
	})

	assert.True(t, result.Success)
	assert.Equal(t, "wamid.42", result.ProviderID)
	assert.Equal(t, "+85291234567", got.To)
	assert.Equal(t, "template", got.Type)
	assert.Equal(t, "en", got.Template.Language.Code)
	require.Len(t, got.Template.Components, 1)
	assert.Len(t, got.Template.Components[0].Parameters, 2)
}

func TestSendTemplateParamCountMismatchIsPermanent(t *testing.T) {
	result := testChatClient("http://unused.example").SendTemplate(context.Background(), "+85291234567", TemplatePayload{
		Name:       "emergency_basic",
		ParamCount: 7,
		Params:     []string{"only", "three", "params"},
	})

	assert.False(t, result.Success)
	assert.True(t, result.Permanent)
	assert.Contains(t, result.ErrorReason, "expects 7 parameters, got 3")
}

func TestMissingCredentialsArePermanent(t *testing.T) {
	c := NewChatClient(ChatConfig{BaseURL: "http://unused.example"}, logger.NewFromZerolog(zerolog.Nop()))

	result := c.SendText(context.Background(), "group-1", "hello")
	assert.False(t, result.Success)
	assert.True(t, result.Permanent)
}

func TestEmptyRecipientIsPermanent(t *testing.T) {
	result := testChatClient("http://unused.example").SendText(context.Background(), "", "hello")
	assert.True(t, result.Permanent)
}

func TestServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := testChatClient(srv.URL).SendText(context.Background(), "group-1", "hello")
	assert.False(t, result.Success)
	assert.False(t, result.Permanent)
}

func TestRateLimitedResponseIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	result := testChatClient(srv.URL).SendText(context.Background(), "group-1", "hello")
	assert.False(t, result.Success)
	assert.False(t, result.Permanent)
}

func TestClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"unknown template"}}`))
	}))
	defer srv.Close()

	result := testChatClient(srv.URL).SendTemplate(context.Background(), "+85291234567", TemplatePayload{
		Name: "not_a_template",
	})

	assert.False(t, result.Success)
	assert.True(t, result.Permanent)
	assert.Contains(t, result.ErrorReason, "unknown template")
}

func TestTemplateLanguageCode(t *testing.T) {
	assert.Equal(t, "zh_HK", TemplatePayload{Name: "emergency_full_zh_hk"}.LanguageCode())
	assert.Equal(t, "en", TemplatePayload{Name: "emergency_full"}.LanguageCode())
}

func TestSuccessWithoutMessageIDIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"messages":[]}`))
	}))
	defer srv.Close()

	result := testChatClient(srv.URL).SendText(context.Background(), "group-1", "hello")
	assert.False(t, result.Success)
	assert.False(t, result.Permanent)
}

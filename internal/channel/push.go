package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pawline/notify-api/pkg/logger"
)

const defaultPushTimeout = 15 * time.Second

// Token error codes the push provider reports for registrations that will
// never work again. Tokens failing with one of these are pruned from the
// audience store.
var permanentTokenErrors = map[string]bool{
	"NotRegistered":       true,
	"InvalidRegistration": true,
	"MismatchSenderId":    true,
}

type PushConfig struct {
	Endpoint  string
	ServerKey string
	Timeout   time.Duration
}

// MulticastResult is the normalized outcome of one batch push call.
type MulticastResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
	// Raw is the provider response body, persisted for diagnostics.
	Raw string
}

// PushClient delivers one notification to a batch of device tokens in a
// single multicast call.
type PushClient struct {
	cfg    PushConfig
	client *http.Client
	logger *logger.Logger
}

func NewPushClient(cfg PushConfig, logger *logger.Logger) *PushClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultPushTimeout
	}
	return &PushClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type pushRequest struct {
	RegistrationIDs []string         `json:"registration_ids"`
	Notification    pushNotification `json:"notification"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// SendMulticast posts one notification to every token in the batch. Results
// are positional: results[i] reports the outcome for tokens[i].
func (c *PushClient) SendMulticast(ctx context.Context, tokens []string, title, body string) (*MulticastResult, error) {
	if c.cfg.ServerKey == "" {
		return nil, fmt.Errorf("push credentials not configured")
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty token batch")
	}

	payload, err := json.Marshal(pushRequest{
		RegistrationIDs: tokens,
		Notification:    pushNotification{Title: title, Body: body},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+c.cfg.ServerKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("push provider error: status=%d body=%q", resp.StatusCode, string(raw))
	}

	var pr pushResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w body=%q", err, string(raw))
	}

	result := &MulticastResult{
		SuccessCount: pr.Success,
		FailureCount: pr.Failure,
		Raw:          string(raw),
	}
	for i, r := range pr.Results {
		if r.Error != "" && permanentTokenErrors[r.Error] && i < len(tokens) {
			result.InvalidTokens = append(result.InvalidTokens, tokens[i])
		}
	}

	if result.FailureCount > 0 {
		c.logger.Debug("push multicast partial failure",
			"failed", result.FailureCount, "invalid_tokens", len(result.InvalidTokens))
	}
	return result, nil
}

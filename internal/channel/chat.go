package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pawline/notify-api/pkg/logger"
)

const defaultChatTimeout = 10 * time.Second

// TemplatePayload is a named-template chat message. The provider rejects any
// send whose parameter list does not match the template's declared
// placeholder count, so the adapter checks it up front and fails hard.
type TemplatePayload struct {
	Name       string
	ParamCount int
	Params     []string
}

// LanguageCode derives the provider language code from the template naming
// convention: a "_zh_hk" suffix selects Cantonese, everything else English.
func (p TemplatePayload) LanguageCode() string {
	if strings.HasSuffix(p.Name, "_zh_hk") {
		return "zh_HK"
	}
	return "en"
}

type ChatConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RatePerSecond and Burst bound outbound calls to the provider quota.
	RatePerSecond float64
	Burst         int
}

// ChatClient talks to the chat provider's message API for both template and
// freeform sends.
type ChatClient struct {
	cfg     ChatConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

func NewChatClient(cfg ChatConfig, logger *logger.Logger) *ChatClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChatTimeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}

	return &ChatClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		logger:  logger,
	}
}

type chatTemplateRequest struct {
	To       string       `json:"to"`
	Type     string       `json:"type"`
	Template chatTemplate `json:"template"`
}

type chatTemplate struct {
	Name       string          `json:"name"`
	Language   chatLanguage    `json:"language"`
	Components []chatComponent `json:"components"`
}

type chatLanguage struct {
	Code string `json:"code"`
}

type chatComponent struct {
	Type       string          `json:"type"`
	Parameters []chatParameter `json:"parameters"`
}

type chatParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatTextRequest struct {
	To   string   `json:"to"`
	Type string   `json:"type"`
	Text chatText `json:"text"`
}

type chatText struct {
	Body string `json:"body"`
}

type chatResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SendTemplate delivers a named-template message to a chat destination.
func (c *ChatClient) SendTemplate(ctx context.Context, to string, payload TemplatePayload) Result {
	if c.cfg.Token == "" {
		return FailedPermanently("chat credentials not configured")
	}
	if to == "" {
		return FailedPermanently("empty chat recipient")
	}
	if len(payload.Params) != payload.ParamCount {
		return FailedPermanently(fmt.Sprintf(
			"template %s expects %d parameters, got %d",
			payload.Name, payload.ParamCount, len(payload.Params),
		))
	}

	params := make([]chatParameter, 0, len(payload.Params))
	for _, p := range payload.Params {
		params = append(params, chatParameter{Type: "text", Text: p})
	}

	body := chatTemplateRequest{
		To:   to,
		Type: "template",
		Template: chatTemplate{
			Name:       payload.Name,
			Language:   chatLanguage{Code: payload.LanguageCode()},
			Components: []chatComponent{{Type: "body", Parameters: params}},
		},
	}
	return c.post(ctx, body)
}

// SendText delivers a freeform text message to a chat destination.
func (c *ChatClient) SendText(ctx context.Context, to, text string) Result {
	if c.cfg.Token == "" {
		return FailedPermanently("chat credentials not configured")
	}
	if to == "" {
		return FailedPermanently("empty chat recipient")
	}

	body := chatTextRequest{
		To:   to,
		Type: "text",
		Text: chatText{Body: text},
	}
	return c.post(ctx, body)
}

func (c *ChatClient) post(ctx context.Context, body interface{}) Result {
	if err := c.limiter.Wait(ctx); err != nil {
		return Failed(fmt.Sprintf("rate limiter wait: %v", err))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return FailedPermanently(fmt.Sprintf("failed to encode chat payload: %v", err))
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return FailedPermanently(fmt.Sprintf("failed to build chat request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.client.Do(req)
	if err != nil {
		return Failed(fmt.Sprintf("chat request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil && resp.StatusCode < 300 {
		return Failed(fmt.Sprintf("failed to decode chat response: %v body=%q", err, string(raw)))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if len(cr.Messages) == 0 {
			return Failed(fmt.Sprintf("chat response missing message id body=%q", string(raw)))
		}
		return Sent(cr.Messages[0].ID)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		c.logger.Debug("chat provider transient failure", "status", resp.StatusCode)
		return Failed(fmt.Sprintf("chat provider error: status=%d body=%q", resp.StatusCode, string(raw)))
	default:
		// 4xx other than 429 means the request itself is bad; retrying the
		// identical payload cannot succeed.
		reason := fmt.Sprintf("chat provider rejected request: status=%d", resp.StatusCode)
		if cr.Error != nil && cr.Error.Message != "" {
			reason = fmt.Sprintf("%s: %s", reason, cr.Error.Message)
		}
		return FailedPermanently(reason)
	}
}

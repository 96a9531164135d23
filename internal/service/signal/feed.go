package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pawline/notify-api/pkg/logger"
)

const (
	defaultFeedTimeout    = 10 * time.Second
	feedFetchMaxElapsed   = 30 * time.Second
	feedFetchInitialDelay = 500 * time.Millisecond
)

// FeedSignal is one active severe-weather signal as reported by the feed.
type FeedSignal struct {
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

type feedResponse struct {
	// Absence of the signal field means no active signal, not an error.
	Signal *FeedSignal `json:"signal"`
}

// FeedClient polls the external severe-weather feed.
type FeedClient struct {
	url    string
	client *http.Client
	logger *logger.Logger
}

func NewFeedClient(url string, timeout time.Duration, logger *logger.Logger) *FeedClient {
	if timeout <= 0 {
		timeout = defaultFeedTimeout
	}
	return &FeedClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch returns the currently active signal, or nil when the feed reports
// none. Transient fetch errors are retried with bounded exponential backoff
// before giving up for this poll cycle.
func (c *FeedClient) Fetch(ctx context.Context) (*FeedSignal, error) {
	var signal *FeedSignal

	operation := func() error {
		s, err := c.fetchOnce(ctx)
		if err != nil {
			return err
		}
		signal = s
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = feedFetchInitialDelay
	bo.MaxElapsedTime = feedFetchMaxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("failed to fetch signal feed: %w", err)
	}
	return signal, nil
}

func (c *FeedClient) fetchOnce(ctx context.Context) (*FeedSignal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build feed request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d body=%q", resp.StatusCode, string(body))
	}

	var fr feedResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w body=%q", err, string(body))
	}
	return fr.Signal, nil
}

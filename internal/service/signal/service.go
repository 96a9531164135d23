package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/internal/repository"
	"github.com/pawline/notify-api/pkg/logger"
	"github.com/pawline/notify-api/pkg/messaging"
	"github.com/pawline/notify-api/pkg/metrics"
)

// Severity tiers, ascending. The notification threshold covers the top three:
// gale-force and above, plus black rain.
const (
	SeverityStandby    = 1 // TC1, amber rain
	SeverityStrongWind = 2 // TC3, red rain
	SeverityGale       = 3 // TC8 quadrants, black rain
	SeverityIncreasing = 4 // TC9
	SeverityHurricane  = 5 // TC10
)

// DefaultSeverityThreshold triggers downstream fan-out for the top three
// tiers.
const DefaultSeverityThreshold = SeverityGale

var knownSeverities = map[string]int{
	"TC1":        SeverityStandby,
	"TC3":        SeverityStrongWind,
	"TC8NE":      SeverityGale,
	"TC8SE":      SeverityGale,
	"TC8NW":      SeverityGale,
	"TC8SW":      SeverityGale,
	"TC9":        SeverityIncreasing,
	"TC10":       SeverityHurricane,
	"WRAINA":     SeverityStandby,
	"WRAINR":     SeverityStrongWind,
	"WRAINBLACK": SeverityGale,
}

// Fetcher is the feed client surface the monitor polls.
type Fetcher interface {
	Fetch(ctx context.Context) (*FeedSignal, error)
}

// Notifier triggers the downstream fan-out when a severe signal goes up.
type Notifier interface {
	NotifySignal(ctx context.Context, alert *model.SignalAlert) error
}

type Config struct {
	SeverityThreshold int
}

// Monitor polls the external feed and reconciles it against the persisted
// active alert. All four diff cases are idempotent under re-polling.
type Monitor struct {
	alerts   repository.SignalAlertRepository
	feed     Fetcher
	notifier Notifier
	broker   messaging.Publisher
	metrics  *metrics.Metrics
	logger   *logger.Logger
	cfg      Config
}

func NewMonitor(
	alerts repository.SignalAlertRepository,
	feed Fetcher,
	notifier Notifier,
	broker messaging.Publisher,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	cfg Config,
) *Monitor {
	if cfg.SeverityThreshold <= 0 {
		cfg.SeverityThreshold = DefaultSeverityThreshold
	}

	return &Monitor{
		alerts:   alerts,
		feed:     feed,
		notifier: notifier,
		broker:   broker,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// CheckOnce polls the feed once and applies the state transition, if any.
func (m *Monitor) CheckOnce(ctx context.Context) error {
	current, err := m.feed.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to poll signal feed: %w", err)
	}

	active, err := m.alerts.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active alert: %w", err)
	}

	switch {
	case current == nil && active == nil:
		return nil
	case current != nil && active == nil:
		return m.raise(ctx, current)
	case current == nil && active != nil:
		return m.lift(ctx, active)
	case current.Code == active.SignalCode:
		// Unchanged signal, nothing to reconcile.
		return nil
	default:
		// Code changed while active: close the old row, open a new one, so
		// history is preserved.
		if err := m.lift(ctx, active); err != nil {
			return err
		}
		return m.raise(ctx, current)
	}
}

func (m *Monitor) raise(ctx context.Context, signal *FeedSignal) error {
	severity := m.severityFor(signal.Code)

	issuedAt := signal.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	alert := &model.SignalAlert{
		SignalCode:    signal.Code,
		SeverityLevel: severity,
		IssuedAt:      issuedAt,
		IsActive:      true,
	}
	if err := m.alerts.Create(ctx, alert); err != nil {
		return fmt.Errorf("failed to create signal alert: %w", err)
	}

	if m.metrics != nil {
		m.metrics.SignalTransitions.WithLabelValues("raised").Inc()
	}
	m.logger.Info("signal alert raised", "code", signal.Code, "severity", severity)
	m.publish(ctx, alert)

	if severity >= m.cfg.SeverityThreshold && m.notifier != nil {
		if err := m.notifier.NotifySignal(ctx, alert); err != nil {
			m.logger.Error(err, "failed to trigger signal fan-out", "code", signal.Code)
		}
	}
	return nil
}

func (m *Monitor) lift(ctx context.Context, alert *model.SignalAlert) error {
	now := time.Now()
	if err := m.alerts.Lift(ctx, alert.ID, now); err != nil {
		return fmt.Errorf("failed to lift signal alert: %w", err)
	}

	alert.IsActive = false
	alert.LiftedAt = &now

	if m.metrics != nil {
		m.metrics.SignalTransitions.WithLabelValues("lifted").Inc()
	}
	m.logger.Info("signal alert lifted", "code", alert.SignalCode)
	m.publish(ctx, alert)
	return nil
}

// severityFor maps a feed code to a tier. Unmapped codes are never dropped:
// they get a best-effort severity from substring heuristics and the anomaly
// is logged for operator follow-up.
func (m *Monitor) severityFor(code string) int {
	if severity, ok := knownSeverities[code]; ok {
		return severity
	}

	m.logger.Warn("unmapped signal code, assigning heuristic severity", "code", code)

	upper := strings.ToUpper(code)
	switch {
	case strings.Contains(upper, "10"):
		return SeverityHurricane
	case strings.Contains(upper, "9"):
		return SeverityIncreasing
	case strings.Contains(upper, "8") || strings.Contains(upper, "BLACK"):
		return SeverityGale
	case strings.Contains(upper, "RED") || strings.Contains(upper, "3"):
		return SeverityStrongWind
	default:
		return SeverityStandby
	}
}

func (m *Monitor) publish(ctx context.Context, alert *model.SignalAlert) {
	if m.broker == nil {
		return
	}
	if err := m.broker.Publish(ctx, messaging.ChannelSignalEvents, alert); err != nil {
		m.logger.Error(err, "failed to publish signal transition", "code", alert.SignalCode)
	}
}

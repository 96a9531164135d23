package signal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawline/notify-api/internal/model"
	"github.com/pawline/notify-api/pkg/logger"
)

type stubAlerts struct {
	active  *model.SignalAlert
	created []*model.SignalAlert
	lifted  []uuid.UUID
}

func (s *stubAlerts) GetActive(_ context.Context) (*model.SignalAlert, error) {
	return s.active, nil
}

func (s *stubAlerts) Create(_ context.Context, alert *model.SignalAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	s.created = append(s.created, alert)
	s.active = alert
	return nil
}

func (s *stubAlerts) Lift(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.lifted = append(s.lifted, id)
	if s.active != nil && s.active.ID == id {
		s.active = nil
	}
	return nil
}

type stubFeed struct {
	signal *FeedSignal
	err    error
}

func (s *stubFeed) Fetch(_ context.Context) (*FeedSignal, error) {
	return s.signal, s.err
}

type stubNotifier struct {
	notified []*model.SignalAlert
}

func (s *stubNotifier) NotifySignal(_ context.Context, alert *model.SignalAlert) error {
	s.notified = append(s.notified, alert)
	return nil
}

func newTestMonitor(alerts *stubAlerts, feed *stubFeed, notifier *stubNotifier) *Monitor {
	return NewMonitor(alerts, feed, notifier, nil, nil, logger.NewFromZerolog(zerolog.Nop()), Config{})
}

func TestNoSignalNoAlertIsANoOp(t *testing.T) {
	alerts := &stubAlerts{}
	m := newTestMonitor(alerts, &stubFeed{}, &stubNotifier{})

	require.NoError(t, m.CheckOnce(context.Background()))

	assert.Empty(t, alerts.created)
	assert.Empty(t, alerts.lifted)
}

func TestNewSignalRaisesAlert(t *testing.T) {
	alerts := &stubAlerts{}
	notifier := &stubNotifier{}
	issuedAt := time.Now().Add(-10 * time.Minute)
	m := newTestMonitor(alerts, &stubFeed{signal: &FeedSignal{Code: "TC8NE", IssuedAt: issuedAt}}, notifier)

	require.NoError(t, m.CheckOnce(context.Background()))

	require.Len(t, alerts.created, 1)
	alert := alerts.created[0]
	assert.Equal(t, "TC8NE", alert.SignalCode)
	assert.Equal(t, SeverityGale, alert.SeverityLevel)
	assert.True(t, alert.IsActive)
	assert.True(t, alert.IssuedAt.Equal(issuedAt))

	// Gale is at the threshold, the fan-out fires.
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, alert, notifier.notified[0])
}

func TestBelowThresholdSignalSkipsFanOut(t *testing.T) {
	alerts := &stubAlerts{}
	notifier := &stubNotifier{}
	m := newTestMonitor(alerts, &stubFeed{signal: &FeedSignal{Code: "TC1"}}, notifier)

	require.NoError(t, m.CheckOnce(context.Background()))

	require.Len(t, alerts.created, 1)
	assert.Equal(t, SeverityStandby, alerts.created[0].SeverityLevel)
	assert.Empty(t, notifier.notified)
}

func TestSignalLiftClosesAlert(t *testing.T) {
	active := &model.SignalAlert{ID: uuid.New(), SignalCode: "TC8NE", SeverityLevel: SeverityGale, IsActive: true}
	alerts := &stubAlerts{active: active}
	m := newTestMonitor(alerts, &stubFeed{}, &stubNotifier{})

	require.NoError(t, m.CheckOnce(context.Background()))

	require.Len(t, alerts.lifted, 1)
	assert.Equal(t, active.ID, alerts.lifted[0])
	assert.False(t, active.IsActive)
	assert.NotNil(t, active.LiftedAt)
}

func TestUnchangedSignalIsIdempotent(t *testing.T) {
	active := &model.SignalAlert{ID: uuid.New(), SignalCode: "TC8NE", SeverityLevel: SeverityGale, IsActive: true}
	alerts := &stubAlerts{active: active}
	notifier := &stubNotifier{}
	m := newTestMonitor(alerts, &stubFeed{signal: &FeedSignal{Code: "TC8NE"}}, notifier)

	require.NoError(t, m.CheckOnce(context.Background()))
	require.NoError(t, m.CheckOnce(context.Background()))

	assert.Empty(t, alerts.created)
	assert.Empty(t, alerts.lifted)
	assert.Empty(t, notifier.notified)
}

func TestCodeChangeClosesOldAndOpensNew(t *testing.T) {
	old := &model.SignalAlert{ID: uuid.New(), SignalCode: "TC8NE", SeverityLevel: SeverityGale, IsActive: true}
	alerts := &stubAlerts{active: old}
	notifier := &stubNotifier{}
	m := newTestMonitor(alerts, &stubFeed{signal: &FeedSignal{Code: "TC9"}}, notifier)

	require.NoError(t, m.CheckOnce(context.Background()))

	require.Len(t, alerts.lifted, 1)
	assert.Equal(t, old.ID, alerts.lifted[0])
	require.Len(t, alerts.created, 1)
	assert.Equal(t, "TC9", alerts.created[0].SignalCode)
	assert.Equal(t, SeverityIncreasing, alerts.created[0].SeverityLevel)
	require.Len(t, notifier.notified, 1)
}

func TestFeedErrorLeavesStateUntouched(t *testing.T) {
	active := &model.SignalAlert{ID: uuid.New(), SignalCode: "TC8NE", IsActive: true}
	alerts := &stubAlerts{active: active}
	m := newTestMonitor(alerts, &stubFeed{err: assert.AnError}, &stubNotifier{})

	assert.Error(t, m.CheckOnce(context.Background()))
	assert.True(t, active.IsActive)
	assert.Empty(t, alerts.lifted)
}

func TestKnownSeverityMapping(t *testing.T) {
	m := newTestMonitor(&stubAlerts{}, &stubFeed{}, nil)

	cases := map[string]int{
		"TC1":        SeverityStandby,
		"TC3":        SeverityStrongWind,
		"TC8NE":      SeverityGale,
		"TC8SW":      SeverityGale,
		"TC9":        SeverityIncreasing,
		"TC10":       SeverityHurricane,
		"WRAINA":     SeverityStandby,
		"WRAINR":     SeverityStrongWind,
		"WRAINBLACK": SeverityGale,
	}
	for code, want := range cases {
		assert.Equal(t, want, m.severityFor(code), "code %s", code)
	}
}

func TestUnknownCodeGetsHeuristicSeverity(t *testing.T) {
	m := newTestMonitor(&stubAlerts{}, &stubFeed{}, nil)

	assert.Equal(t, SeverityHurricane, m.severityFor("TYPHOON10"))
	assert.Equal(t, SeverityIncreasing, m.severityFor("TC9B"))
	assert.Equal(t, SeverityGale, m.severityFor("WRAIN_BLACK"))
	assert.Equal(t, SeverityStrongWind, m.severityFor("WRAINRED"))
	assert.Equal(t, SeverityStandby, m.severityFor("MYSTERY"))
}

func TestIssuedAtDefaultsToNow(t *testing.T) {
	alerts := &stubAlerts{}
	m := newTestMonitor(alerts, &stubFeed{signal: &FeedSignal{Code: "TC1"}}, nil)

	before := time.Now()
	require.NoError(t, m.CheckOnce(context.Background()))

	require.Len(t, alerts.created, 1)
	assert.WithinDuration(t, before, alerts.created[0].IssuedAt, time.Second)
}

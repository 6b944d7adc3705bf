package dispatch

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/consent"
	"github.com/krlenix/dermotin-sub001/internal/domain"
)

var fixedTime = time.Unix(1700000000, 0)

// fakeBeaconImpl records fires and lets tests flip readiness.
type fakeBeaconImpl struct {
	mu      sync.Mutex
	ready   bool
	inited  int
	initErr error
	onReady []func()
	fired   [][2]string
	pixelID string
}

func (b *fakeBeaconImpl) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *fakeBeaconImpl) OnReady(cb func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReady = append(b.onReady, cb)
}

func (b *fakeBeaconImpl) becomeReady() {
	b.mu.Lock()
	b.ready = true
	cbs := append([]func(){}, b.onReady...)
	b.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func (b *fakeBeaconImpl) Init(pixelID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initErr != nil {
		return b.initErr
	}
	b.inited++
	b.pixelID = pixelID
	return nil
}

func (b *fakeBeaconImpl) Fire(eventName, eventID string, _ domain.CustomData) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fired = append(b.fired, [2]string{eventName, eventID})
	return nil
}

// fakeRelay records invocations.
type fakeRelay struct {
	mu     sync.Mutex
	events []*domain.TrackingEvent
}

func (r *fakeRelay) Invoke(_ context.Context, _ string, event *domain.TrackingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// openGate / closedGate are fixed consent checkers.
type staticGate bool

func (g staticGate) MayTransmitMarketing(string) bool { return bool(g) }

func testOptions() Options {
	return Options{
		Now:        func() time.Time { return fixedTime },
		After:      func(time.Duration, func()) {},
		ProbeDelay: time.Millisecond,
	}
}

func TestNewEventID_Format(t *testing.T) {
	id := NewEventID(fixedTime)
	assert.Regexp(t, regexp.MustCompile(`^1700000000-[0-9a-f]{6}$`), id)
}

func TestNewEventID_UniqueWithinSession(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := NewEventID(fixedTime)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestDispatch_SharedEventIdentityAcrossChannels(t *testing.T) {
	beacon := &fakeBeaconImpl{ready: true}
	relay := &fakeRelay{}
	d := NewDispatcher(beacon, relay, staticGate(true), nil, "RS", "pix1", zap.NewNop(), testOptions())

	id := d.Dispatch(context.Background(), domain.EventPurchase, domain.CustomData{Value: 4990}, "1700000000-ab12cd")

	assert.Equal(t, "1700000000-ab12cd", id)
	assert.Len(t, beacon.fired, 1)
	assert.Equal(t, "Purchase", beacon.fired[0][0])
	assert.Len(t, relay.events, 1)
	// Byte-identical identity on both paths.
	assert.Equal(t, beacon.fired[0][1], relay.events[0].EventID)
	assert.Equal(t, "1700000000-ab12cd", relay.events[0].EventID)
}

func TestDispatch_GeneratesIdentityWhenMissing(t *testing.T) {
	beacon := &fakeBeaconImpl{ready: true}
	relay := &fakeRelay{}
	d := NewDispatcher(beacon, relay, staticGate(true), nil, "RS", "pix1", zap.NewNop(), testOptions())

	id := d.Dispatch(context.Background(), domain.EventPageView, domain.CustomData{}, "")

	assert.Regexp(t, `^1700000000-[0-9a-f]{6}$`, id)
	assert.Equal(t, id, beacon.fired[0][1])
	assert.Equal(t, id, relay.events[0].EventID)
}

func TestDispatch_ConsentDeniedFiresNeitherChannel(t *testing.T) {
	beacon := &fakeBeaconImpl{ready: true}
	relay := &fakeRelay{}
	d := NewDispatcher(beacon, relay, staticGate(false), nil, "HR", "pix1", zap.NewNop(), testOptions())

	d.Dispatch(context.Background(), domain.EventPageView, domain.CustomData{}, "")

	assert.Empty(t, beacon.fired)
	assert.Empty(t, relay.events)
	assert.Zero(t, beacon.inited)
}

func TestDispatch_RelayFiresWithoutBeaconReadiness(t *testing.T) {
	beacon := &fakeBeaconImpl{ready: false}
	relay := &fakeRelay{}
	d := NewDispatcher(beacon, relay, staticGate(true), nil, "RS", "pix1", zap.NewNop(), testOptions())

	id := d.Dispatch(context.Background(), domain.EventViewContent, domain.CustomData{}, "")

	assert.Empty(t, beacon.fired)
	assert.Len(t, relay.events, 1)
	assert.Equal(t, id, relay.events[0].EventID)
}

func TestInitBeacon_DeferredUntilReadySignal(t *testing.T) {
	beacon := &fakeBeaconImpl{ready: false}
	relay := &fakeRelay{}
	d := NewDispatcher(beacon, relay, staticGate(true), nil, "RS", "pix1", zap.NewNop(), testOptions())

	assert.Zero(t, beacon.inited)

	beacon.becomeReady()

	assert.Equal(t, 1, beacon.inited)
	assert.Equal(t, "pix1", beacon.pixelID)

	// Re-entry is a no-op.
	d.initBeacon()
	assert.Equal(t, 1, beacon.inited)
}

func TestInitBeacon_FallbackProbeCoversMissedSignal(t *testing.T) {
	// Signal fires before any subscriber attaches; only the probe is left.
	beacon := &fakeBeaconImpl{ready: true}
	relay := &fakeRelay{}

	var probe func()
	opts := testOptions()
	opts.After = func(_ time.Duration, f func()) { probe = f }

	d := NewDispatcher(beacon, relay, staticGate(true), nil, "RS", "pix1", zap.NewNop(), opts)

	// NewDispatcher itself does not init; the probe does.
	_ = d
	assert.Zero(t, beacon.inited)
	probe()
	assert.Equal(t, 1, beacon.inited)
}

func TestInitBeacon_ConsentChangeRetriggersDeferredInit(t *testing.T) {
	beacon := &fakeBeaconImpl{ready: true}
	relay := &fakeRelay{}
	store := consentStore{granted: false}
	notifier := &consent.Notifier{}

	d := NewDispatcher(beacon, relay, &store, notifier, "HR", "pix1", zap.NewNop(), testOptions())

	d.initBeacon()
	assert.Zero(t, beacon.inited)

	store.granted = true
	notifier.NotifyConsentChanged()

	assert.Equal(t, 1, beacon.inited)
}

type consentStore struct {
	granted bool
}

func (s *consentStore) MayTransmitMarketing(string) bool { return s.granted }

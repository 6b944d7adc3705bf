package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/consent"
	"github.com/krlenix/dermotin-sub001/internal/domain"
)

// Beacon is the browser-pixel channel. The implementation wraps the
// third-party script, which loads asynchronously; Ready reports whether the
// script is available and OnReady delivers a one-shot signal when it
// becomes so.
type Beacon interface {
	Ready() bool
	OnReady(func())
	Init(pixelID string) error
	Fire(eventName, eventID string, custom domain.CustomData) error
}

// RelayInvoker is the server-to-server channel. It must be callable
// regardless of beacon readiness and must not block the caller.
type RelayInvoker interface {
	Invoke(ctx context.Context, countryCode string, event *domain.TrackingEvent)
}

// ConsentChecker gates marketing transmission per country.
type ConsentChecker interface {
	MayTransmitMarketing(countryCode string) bool
}

// Dispatcher fires one logical event down both delivery channels under a
// shared event identity. All delivery is best-effort: failures are logged
// and swallowed, nothing leaks back into the page flow.
type Dispatcher struct {
	beacon      Beacon
	relay       RelayInvoker
	gate        ConsentChecker
	countryCode string
	pixelID     string
	now         func() time.Time
	log         *zap.Logger

	mu          sync.Mutex
	initialized bool
}

// Options carries the injectable knobs. Now and After default to the real
// clock; ProbeDelay defaults to 300ms.
type Options struct {
	Now        func() time.Time
	After      func(time.Duration, func())
	ProbeDelay time.Duration
}

// NewDispatcher wires a dispatcher for one market. It subscribes to the
// beacon's ready signal and to consent changes, and additionally schedules
// one bounded fallback probe: the ready signal can fire before this
// subscriber attaches, and the probe covers that race.
func NewDispatcher(beacon Beacon, relay RelayInvoker, gate ConsentChecker, notifier *consent.Notifier, countryCode, pixelID string, log *zap.Logger, opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.After == nil {
		opts.After = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if opts.ProbeDelay == 0 {
		opts.ProbeDelay = 300 * time.Millisecond
	}

	d := &Dispatcher{
		beacon:      beacon,
		relay:       relay,
		gate:        gate,
		countryCode: countryCode,
		pixelID:     pixelID,
		now:         opts.Now,
		log:         log,
	}

	beacon.OnReady(d.initBeacon)
	if notifier != nil {
		notifier.OnConsentChanged(d.initBeacon)
	}
	opts.After(opts.ProbeDelay, d.initBeacon)

	return d
}

// initBeacon initializes the browser channel once readiness and consent
// both hold. Safe to call any number of times from any trigger; once
// initialized it is a no-op.
func (d *Dispatcher) initBeacon() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return
	}
	if !d.beacon.Ready() {
		return
	}
	if !d.gate.MayTransmitMarketing(d.countryCode) {
		return
	}
	if err := d.beacon.Init(d.pixelID); err != nil {
		d.log.Warn("Beacon init failed", zap.Error(err))
		return
	}
	d.initialized = true
	d.log.Info("Beacon channel initialized",
		zap.String("country_code", d.countryCode),
		zap.String("pixel_id", d.pixelID))
}

// Dispatch fires eventType down both channels under one event identity and
// returns the identity used. When eventID is empty a fresh one is
// generated; it is never regenerated afterwards, there is no retry on
// either channel. Dispatch never returns an error and never blocks on
// delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType domain.EventType, custom domain.CustomData, eventID string) string {
	if eventID == "" {
		eventID = NewEventID(d.now())
	}

	names, ok := domain.ChannelNamesFor(eventType)
	if !ok {
		d.log.Warn("Dropping event of unknown type", zap.String("event_type", string(eventType)))
		return eventID
	}

	if !d.gate.MayTransmitMarketing(d.countryCode) {
		d.log.Debug("Consent denied, skipping both channels",
			zap.String("event_id", eventID),
			zap.String("country_code", d.countryCode))
		return eventID
	}

	d.initBeacon()

	d.mu.Lock()
	beaconUp := d.initialized
	d.mu.Unlock()

	if beaconUp {
		if err := d.beacon.Fire(names.Pixel, eventID, custom); err != nil {
			d.log.Warn("Beacon fire failed",
				zap.String("event_id", eventID),
				zap.String("event_name", names.Pixel),
				zap.Error(err))
		}
	}

	// The relay path has no beacon dependency and fires regardless of the
	// beacon outcome, carrying the identical event identity.
	event := &domain.TrackingEvent{
		Type:       eventType,
		EventID:    eventID,
		EventTime:  d.now().Unix(),
		CustomData: custom,
	}
	d.relay.Invoke(ctx, d.countryCode, event)

	return eventID
}

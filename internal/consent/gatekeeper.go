package consent

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/attribution"
	"github.com/krlenix/dermotin-sub001/internal/domain"
)

// optInJurisdictions lists the country codes where marketing transmission
// requires explicit opt-in (EEA plus the UK). Countries outside this table
// default to consent-not-required; the default is centralized here so that
// flipping it for newly added markets is a one-line change.
var optInJurisdictions = map[string]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {},
	"EE": {}, "FI": {}, "FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {},
	"IT": {}, "LV": {}, "LT": {}, "LU": {}, "MT": {}, "NL": {}, "PL": {},
	"PT": {}, "RO": {}, "SK": {}, "SI": {}, "ES": {}, "SE": {},
	"IS": {}, "LI": {}, "NO": {}, "GB": {},
}

// RequiresOptIn reports whether countryCode is in a jurisdiction that
// requires explicit marketing opt-in.
func RequiresOptIn(countryCode string) bool {
	_, ok := optInJurisdictions[strings.ToUpper(countryCode)]
	return ok
}

// Gatekeeper decides whether marketing data may be transmitted for the
// current visitor. It reads the stored preference on every call, so a
// consent change takes effect on the very next event.
type Gatekeeper struct {
	store attribution.Store
	log   *zap.Logger
}

// NewGatekeeper creates a gatekeeper over the visitor's consent store.
func NewGatekeeper(store attribution.Store, log *zap.Logger) *Gatekeeper {
	return &Gatekeeper{store: store, log: log}
}

// MayTransmitMarketing returns true when the visitor's jurisdiction does
// not require opt-in, or when a stored preference explicitly grants the
// marketing category. No stored record in an opt-in jurisdiction fails
// closed.
func (g *Gatekeeper) MayTransmitMarketing(countryCode string) bool {
	if !RequiresOptIn(countryCode) {
		return true
	}
	state, ok := g.Stored()
	if !ok {
		return false
	}
	return state.Marketing
}

// Stored reads and parses the persisted consent record. ok is false when no
// record exists or the record is unparseable.
func (g *Gatekeeper) Stored() (domain.ConsentState, bool) {
	raw, ok := g.store.Get(attribution.CookieConsent)
	if !ok {
		return domain.DefaultConsent(), false
	}
	var state domain.ConsentState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		g.log.Warn("Unparseable consent record, treating as absent", zap.Error(err))
		return domain.DefaultConsent(), false
	}
	state.Necessary = true
	return state, true
}

// Save persists the visitor's consent preference. The record has no TTL; it
// lives until explicitly changed or cleared.
func (g *Gatekeeper) Save(state domain.ConsentState) error {
	state.Necessary = true
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return g.store.Set(attribution.CookieConsent, string(raw), 0)
}

// Notifier fans a consent-changed signal out to subscribers. The dispatcher
// uses it to re-run channel initialization that was deferred while consent
// was missing; re-initialization is idempotent, so late or duplicate
// signals are harmless.
type Notifier struct {
	mu        sync.Mutex
	callbacks []func()
}

// OnConsentChanged registers cb to run on every subsequent consent change.
func (n *Notifier) OnConsentChanged(cb func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.callbacks = append(n.callbacks, cb)
}

// NotifyConsentChanged invokes all registered callbacks synchronously.
func (n *Notifier) NotifyConsentChanged() {
	n.mu.Lock()
	cbs := make([]func(), len(n.callbacks))
	copy(cbs, n.callbacks)
	n.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

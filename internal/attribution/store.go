package attribution

import (
	"net/http"
	"time"
)

// Cookie names shared with the browser pixel script. The names are part of
// the platform contract, not ours to choose.
const (
	CookieBrowserID = "_fbp"
	CookieClickID   = "_fbc"
	CookieCampaign  = "dt_campaign"
	CookieConsent   = "dt_consent"
)

// Retention windows. Click attribution is deliberately more perishable than
// browser identity; the platform disregards stale clicks.
const (
	TTLBrowserID = 90 * 24 * time.Hour
	TTLClickID   = 7 * 24 * time.Hour
	TTLCampaign  = 28 * 24 * time.Hour
)

// Store is a key-value store with per-key TTL, backed by cookies in
// production and by memory in tests.
type Store interface {
	Get(name string) (string, bool)
	Set(name, value string, ttl time.Duration) error
}

// CookieStore reads from an inbound request's cookie header and writes
// Set-Cookie headers on the response.
type CookieStore struct {
	req    *http.Request
	w      http.ResponseWriter
	secure bool
}

// NewCookieStore binds a store to one request/response pair. Writes become
// Set-Cookie headers and are only visible to the browser on the next
// round-trip; reads see the inbound cookie header only.
func NewCookieStore(req *http.Request, w http.ResponseWriter, secure bool) *CookieStore {
	return &CookieStore{req: req, w: w, secure: secure}
}

func (s *CookieStore) Get(name string) (string, bool) {
	c, err := s.req.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (s *CookieStore) Set(name, value string, ttl time.Duration) error {
	http.SetCookie(s.w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// MemStore is an in-memory Store with TTL expiry, used in tests and as the
// degrade target when cookie persistence is unavailable.
type MemStore struct {
	now     func() time.Time
	values  map[string]string
	expires map[string]time.Time
}

// NewMemStore creates a memory store using the given clock.
func NewMemStore(now func() time.Time) *MemStore {
	if now == nil {
		now = time.Now
	}
	return &MemStore{
		now:     now,
		values:  make(map[string]string),
		expires: make(map[string]time.Time),
	}
}

func (s *MemStore) Get(name string) (string, bool) {
	v, ok := s.values[name]
	if !ok {
		return "", false
	}
	if exp, has := s.expires[name]; has && s.now().After(exp) {
		delete(s.values, name)
		delete(s.expires, name)
		return "", false
	}
	return v, true
}

func (s *MemStore) Set(name, value string, ttl time.Duration) error {
	s.values[name] = value
	if ttl > 0 {
		s.expires[name] = s.now().Add(ttl)
	} else {
		delete(s.expires, name)
	}
	return nil
}

package attribution

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/domain"
)

// Composite identifier envelope, per the platform's click-id format:
// {namespace}.{subdomainIndex}.{timestampMillis}.{payload}.
const (
	clickIDNamespace = "fb"
	subdomainIndex   = "1"
	clickParam       = "fbclid"
)

// DeriveClickID extracts the inbound ad-click token from pageURL and wraps
// it in the composite envelope the platform expects. Returns "" when the
// URL carries no click token.
func DeriveClickID(pageURL string, now time.Time) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	token := u.Query().Get(clickParam)
	if token == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s.%d.%s", clickIDNamespace, subdomainIndex, now.UnixMilli(), token)
}

// CampaignFromURL pulls the campaign attribution parameters out of a page
// URL. Absent parameters stay empty so a later merge cannot erase stored
// values with them.
func CampaignFromURL(pageURL string) domain.AttributionContext {
	u, err := url.Parse(pageURL)
	if err != nil {
		return domain.AttributionContext{}
	}
	q := u.Query()
	return domain.AttributionContext{
		CampaignID: q.Get("utm_campaign_id"),
		AdsetID:    q.Get("utm_adset_id"),
		AdID:       q.Get("utm_ad_id"),
		Medium:     q.Get("utm_medium"),
	}
}

// Capture owns the visitor's durable attribution identifiers. All writes go
// through the store; when a write fails the captured value is kept in a
// per-instance overlay so the current page load still sees it.
type Capture struct {
	store   Store
	now     func() time.Time
	randInt func() int64
	overlay map[string]string
	log     *zap.Logger
}

// NewCapture creates a Capture over the given store. now and randInt may be
// nil, defaulting to the real clock and math/rand.
func NewCapture(store Store, now func() time.Time, randInt func() int64, log *zap.Logger) *Capture {
	if now == nil {
		now = time.Now
	}
	if randInt == nil {
		randInt = func() int64 { return rand.Int63n(1_000_000_0000) }
	}
	return &Capture{
		store:   store,
		now:     now,
		randInt: randInt,
		overlay: make(map[string]string),
		log:     log,
	}
}

func (c *Capture) get(name string) (string, bool) {
	if v, ok := c.store.Get(name); ok {
		return v, true
	}
	v, ok := c.overlay[name]
	return v, ok
}

func (c *Capture) set(name, value string, ttl time.Duration) {
	if err := c.store.Set(name, value, ttl); err != nil {
		c.log.Warn("Cookie write failed, keeping value in memory for this page load",
			zap.String("cookie", name),
			zap.Error(err))
	}
	c.overlay[name] = value
}

// EnsureBrowserID returns the visitor's browser identifier, creating and
// persisting one with the long retention window if absent.
func (c *Capture) EnsureBrowserID() string {
	if v, ok := c.get(CookieBrowserID); ok {
		return v
	}
	id := fmt.Sprintf("%s.%s.%d.%d", clickIDNamespace, subdomainIndex, c.now().UnixMilli(), c.randInt())
	c.set(CookieBrowserID, id, TTLBrowserID)
	return id
}

// CaptureClick derives a click identifier from pageURL and persists it with
// the short retention window. An existing stored click id is returned
// untouched when the URL carries no new token; a new token always wins.
func (c *Capture) CaptureClick(pageURL string) string {
	if id := DeriveClickID(pageURL, c.now()); id != "" {
		c.set(CookieClickID, id, TTLClickID)
		return id
	}
	v, _ := c.get(CookieClickID)
	return v
}

// CaptureCampaign merges the campaign parameters from pageURL into the
// stored campaign record and persists the result. Merge semantics are
// last-non-empty-wins per field.
func (c *Capture) CaptureCampaign(pageURL string) domain.AttributionContext {
	existing := c.StoredCampaign()
	merged := existing.Merge(CampaignFromURL(pageURL))
	if merged != existing {
		c.set(CookieCampaign, EncodeCampaign(merged), TTLCampaign)
	}
	return merged
}

// StoredCampaign reads the persisted campaign record, empty if absent or
// unparseable.
func (c *Capture) StoredCampaign() domain.AttributionContext {
	raw, ok := c.get(CookieCampaign)
	if !ok {
		return domain.AttributionContext{}
	}
	return DecodeCampaign(raw)
}

// EncodeCampaign renders the campaign fields as a single structured cookie
// value, url-encoded key=value pairs.
func EncodeCampaign(ctx domain.AttributionContext) string {
	v := url.Values{}
	if ctx.CampaignID != "" {
		v.Set("campaign_id", ctx.CampaignID)
	}
	if ctx.AdsetID != "" {
		v.Set("adset_id", ctx.AdsetID)
	}
	if ctx.AdID != "" {
		v.Set("ad_id", ctx.AdID)
	}
	if ctx.Medium != "" {
		v.Set("medium", ctx.Medium)
	}
	return v.Encode()
}

// DecodeCampaign parses a campaign cookie value. Malformed input yields an
// empty context rather than an error; a broken cookie is treated as absent.
func DecodeCampaign(raw string) domain.AttributionContext {
	v, err := url.ParseQuery(raw)
	if err != nil {
		return domain.AttributionContext{}
	}
	return domain.AttributionContext{
		CampaignID: v.Get("campaign_id"),
		AdsetID:    v.Get("adset_id"),
		AdID:       v.Get("ad_id"),
		Medium:     v.Get("medium"),
	}
}

// ClickTokenFromURL returns the raw inbound click token, without the
// envelope. Used by the server path to decide whether a click id can be
// synthesized from the referring URL.
func ClickTokenFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(clickParam))
}

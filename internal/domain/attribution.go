package domain

// AttributionContext is the durable per-visitor attribution record. Fields
// follow last-non-empty-wins semantics per field: an incoming empty value
// never erases a previously captured one.
type AttributionContext struct {
	BrowserID  string
	ClickID    string
	CampaignID string
	AdsetID    string
	AdID       string
	Medium     string
}

// Merge applies incoming values on top of c, field by field. Only non-empty
// incoming values overwrite; the result is a new context, c is unchanged.
func (c AttributionContext) Merge(incoming AttributionContext) AttributionContext {
	out := c
	if incoming.BrowserID != "" {
		out.BrowserID = incoming.BrowserID
	}
	if incoming.ClickID != "" {
		out.ClickID = incoming.ClickID
	}
	if incoming.CampaignID != "" {
		out.CampaignID = incoming.CampaignID
	}
	if incoming.AdsetID != "" {
		out.AdsetID = incoming.AdsetID
	}
	if incoming.AdID != "" {
		out.AdID = incoming.AdID
	}
	if incoming.Medium != "" {
		out.Medium = incoming.Medium
	}
	return out
}

// CountryPixelConfig holds one market's advertising credentials. A channel
// whose credential is missing or a placeholder is disabled for that market
// only; the rest of the pipeline is unaffected.
type CountryPixelConfig struct {
	CountryCode       string
	PixelID           string
	PixelEnabled      bool
	ServerAccessToken string
	ServerEnabled     bool
	TestEventCode     string
}

package pixel

import (
	"strings"

	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/config"
	"github.com/krlenix/dermotin-sub001/internal/domain"
)

// placeholderMarkers flag credential values that are template leftovers
// rather than real secrets. A credential matching any of these disables the
// corresponding channel for that market, silently.
var placeholderMarkers = []string{
	"your_",
	"changeme",
	"change_me",
	"placeholder",
	"xxx",
	"todo",
}

// Resolver maps a market code to its advertising credentials. The table is
// built once from configuration; resolution is a pure lookup afterwards, so
// concurrent reads need no locking.
type Resolver struct {
	configs map[string]domain.CountryPixelConfig
	log     *zap.Logger
}

// NewResolver builds the per-market credential table. Markets whose
// credentials are absent or placeholders end up with the matching channel
// disabled; this is logged once at startup and never again.
func NewResolver(cfg *config.Config, log *zap.Logger) *Resolver {
	configs := make(map[string]domain.CountryPixelConfig, len(cfg.Markets))

	for code, creds := range cfg.Markets {
		code = strings.ToUpper(code)
		pc := domain.CountryPixelConfig{
			CountryCode:       code,
			PixelID:           creds.PixelID,
			PixelEnabled:      usable(creds.PixelID),
			ServerAccessToken: creds.AccessToken,
			ServerEnabled:     usable(creds.PixelID) && usable(creds.AccessToken),
			TestEventCode:     creds.TestEventCode,
		}
		configs[code] = pc

		if !pc.ServerEnabled {
			log.Info("Server channel not configured for market",
				zap.String("country_code", code))
		}
	}

	return &Resolver{configs: configs, log: log}
}

// Resolve returns the credential set for countryCode. ok is false for
// markets outside the supported list; a supported market with placeholder
// credentials still resolves, with its channels flagged disabled.
func (r *Resolver) Resolve(countryCode string) (domain.CountryPixelConfig, bool) {
	pc, ok := r.configs[strings.ToUpper(countryCode)]
	return pc, ok
}

// usable reports whether a credential value is a real secret rather than an
// empty string or a template placeholder.
func usable(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(v, marker) {
			return false
		}
	}
	return true
}

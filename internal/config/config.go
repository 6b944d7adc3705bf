package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// SupportedMarkets lists the country codes the storefront ships to. Each
// market carries its own ad-account credentials; adding a market is a matter
// of extending this list and providing the matching environment variables.
var SupportedMarkets = []string{"RS", "BA", "ME", "MK", "HR", "SI"}

// Service holds process-level settings.
type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	Port        string `envconfig:"SERVICE_PORT" default:"8080"`
}

// Graph holds the ad platform endpoint settings shared by all markets.
type Graph struct {
	BaseURL    string `envconfig:"GRAPH_BASE_URL" default:"https://graph.facebook.com"`
	APIVersion string `envconfig:"GRAPH_API_VERSION" default:"v18.0"`
}

// ClickHouse holds the optional delivery-log database settings. An empty
// Host disables the delivery log entirely.
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" default:""`
	Port            string `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database        string `envconfig:"CLICKHOUSE_DB" default:"tracking"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

// MarketCredentials is one market's raw credential set as it appears in the
// environment, before placeholder detection. Environment variables compose
// as META_<CC>_PIXEL_ID, META_<CC>_ACCESS_TOKEN, META_<CC>_TEST_EVENT_CODE.
type MarketCredentials struct {
	PixelID       string `envconfig:"PIXEL_ID" default:""`
	AccessToken   string `envconfig:"ACCESS_TOKEN" default:""`
	TestEventCode string `envconfig:"TEST_EVENT_CODE" default:""`
}

// Config is the full service configuration, loaded once at startup.
type Config struct {
	Service    Service
	Graph      Graph
	ClickHouse ClickHouse
	Markets    map[string]MarketCredentials
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg.Service); err != nil {
		return nil, fmt.Errorf("failed to process service config: %w", err)
	}
	if err := envconfig.Process("", &cfg.Graph); err != nil {
		return nil, fmt.Errorf("failed to process graph config: %w", err)
	}
	if err := envconfig.Process("", &cfg.ClickHouse); err != nil {
		return nil, fmt.Errorf("failed to process clickhouse config: %w", err)
	}

	cfg.Markets = make(map[string]MarketCredentials, len(SupportedMarkets))
	for _, code := range SupportedMarkets {
		var creds MarketCredentials
		prefix := "META_" + strings.ToUpper(code)
		if err := envconfig.Process(prefix, &creds); err != nil {
			return nil, fmt.Errorf("failed to process credentials for market %s: %w", code, err)
		}
		cfg.Markets[code] = creds
	}

	return &cfg, nil
}

// IsProduction reports whether the service runs in the production
// environment. Test event codes are only attached outside production.
func (c *Config) IsProduction() bool {
	return c.Service.Environment == "production"
}

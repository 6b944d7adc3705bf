package clickhouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/domain"
)

// Repository implements repository.DeliveryLog for ClickHouse.
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse delivery log.
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema creates the delivery_log table if it does not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS delivery_log (
		event_id String,
		event_name LowCardinality(String),
		country_code LowCardinality(String),
		delivered UInt8,
		error_kind LowCardinality(String),
		message String,
		occurred_at DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree
	ORDER BY (occurred_at, event_id)
	PARTITION BY toYYYYMM(occurred_at)
	TTL toDateTime(occurred_at) + INTERVAL 90 DAY
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create delivery_log table: %w", err)
	}

	r.log.Info("ClickHouse delivery log schema initialized")
	return nil
}

// Record appends one delivery outcome.
func (r *Repository) Record(ctx context.Context, rec *domain.DeliveryRecord) error {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now()
	}

	delivered := uint8(0)
	if rec.Delivered {
		delivered = 1
	}

	query := `
	INSERT INTO delivery_log (event_id, event_name, country_code, delivered, error_kind, message, occurred_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := r.client.Conn().Exec(ctx, query,
		rec.EventID,
		rec.EventName,
		rec.CountryCode,
		delivered,
		rec.ErrorKind,
		rec.Message,
		rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery record: %w", err)
	}

	return nil
}

// Ping checks if the ClickHouse connection is alive.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection.
func (r *Repository) Close() error {
	return r.client.Close()
}

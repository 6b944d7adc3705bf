package repository

import (
	"context"

	"github.com/krlenix/dermotin-sub001/internal/domain"
)

// DeliveryLog records the outcome of relay attempts for later operational
// inspection. Implementations must be safe for concurrent use; callers
// treat every method as best-effort.
type DeliveryLog interface {
	// Record appends one delivery outcome.
	Record(ctx context.Context, rec *domain.DeliveryRecord) error

	// InitSchema initializes the storage schema (creates tables if they
	// don't exist).
	InitSchema(ctx context.Context) error

	// Ping checks if the storage connection is alive.
	Ping(ctx context.Context) error

	// Close closes the log and releases resources.
	Close() error
}

// NopDeliveryLog discards every record. Used when no log backend is
// configured; the relay path never special-cases a missing log.
type NopDeliveryLog struct{}

func (NopDeliveryLog) Record(context.Context, *domain.DeliveryRecord) error { return nil }
func (NopDeliveryLog) InitSchema(context.Context) error                     { return nil }
func (NopDeliveryLog) Ping(context.Context) error                           { return nil }
func (NopDeliveryLog) Close() error                                         { return nil }

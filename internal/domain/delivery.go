package domain

import "time"

// DeliveryRecord is the operational trace of one relay attempt. It carries
// outcome telemetry only, never the event payload; the event itself stays
// transient.
type DeliveryRecord struct {
	EventID     string    `ch:"event_id"`
	EventName   string    `ch:"event_name"`
	CountryCode string    `ch:"country_code"`
	Delivered   bool      `ch:"delivered"`
	ErrorKind   string    `ch:"error_kind"`
	Message     string    `ch:"message"`
	OccurredAt  time.Time `ch:"occurred_at"`
}

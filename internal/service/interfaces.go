package service

import (
	"context"

	"github.com/krlenix/dermotin-sub001/internal/attribution"
	"github.com/krlenix/dermotin-sub001/internal/capi"
	"github.com/krlenix/dermotin-sub001/internal/domain"
	"github.com/krlenix/dermotin-sub001/internal/dto"
)

// RelayServicer defines the interface for relay orchestration. The store is
// request-scoped: it carries the visitor's attribution and consent cookies.
type RelayServicer interface {
	Relay(ctx context.Context, req *dto.TrackEventRequest, netCtx domain.NetworkContext, store attribution.Store) (*capi.Result, error)
}

// EventSender is the outbound platform channel used by the relay service.
type EventSender interface {
	Send(ctx context.Context, cfg domain.CountryPixelConfig, event *domain.TrackingEvent) *capi.Result
}

// CredentialResolver maps a market code to its advertising credentials.
type CredentialResolver interface {
	Resolve(countryCode string) (domain.CountryPixelConfig, bool)
}

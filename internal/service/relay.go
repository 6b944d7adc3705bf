package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/attribution"
	"github.com/krlenix/dermotin-sub001/internal/capi"
	"github.com/krlenix/dermotin-sub001/internal/consent"
	"github.com/krlenix/dermotin-sub001/internal/dispatch"
	"github.com/krlenix/dermotin-sub001/internal/domain"
	"github.com/krlenix/dermotin-sub001/internal/dto"
	"github.com/krlenix/dermotin-sub001/internal/repository"
)

// RelayService orchestrates the server-to-server delivery path: consent
// gate, credential resolution, attribution reconstruction, payload
// assembly, platform call, outcome logging.
type RelayService struct {
	resolver    CredentialResolver
	sender      EventSender
	deliveryLog repository.DeliveryLog
	log         *zap.Logger
	now         func() time.Time
}

// NewRelayService creates a relay service. now may be nil, defaulting to
// the real clock.
func NewRelayService(resolver CredentialResolver, sender EventSender, deliveryLog repository.DeliveryLog, log *zap.Logger, now func() time.Time) *RelayService {
	if now == nil {
		now = time.Now
	}
	if deliveryLog == nil {
		deliveryLog = repository.NopDeliveryLog{}
	}
	return &RelayService{
		resolver:    resolver,
		sender:      sender,
		deliveryLog: deliveryLog,
		log:         log,
		now:         now,
	}
}

// Relay processes one inbound relay request. A non-nil error means the
// request itself was invalid; every delivery outcome, including expected
// non-deliveries, comes back as a Result.
func (s *RelayService) Relay(ctx context.Context, req *dto.TrackEventRequest, netCtx domain.NetworkContext, store attribution.Store) (*capi.Result, error) {
	eventType := domain.EventType(req.EventType)
	if !eventType.Valid() {
		return nil, fmt.Errorf("unsupported event type: %s", req.EventType)
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = dispatch.NewEventID(s.now())
	}

	gate := consent.NewGatekeeper(store, s.log)
	if !gate.MayTransmitMarketing(req.CountryCode) {
		s.log.Debug("Relay skipped, consent denied",
			zap.String("event_id", eventID),
			zap.String("country_code", req.CountryCode))
		result := &capi.Result{EventID: eventID, ErrorKind: capi.ErrConsentDenied}
		s.recordOutcome(eventType, req.CountryCode, result)
		return result, nil
	}

	cfg, ok := s.resolver.Resolve(req.CountryCode)
	if !ok || !cfg.ServerEnabled {
		result := &capi.Result{EventID: eventID, ErrorKind: capi.ErrNotConfigured}
		s.recordOutcome(eventType, req.CountryCode, result)
		return result, nil
	}

	event := s.buildEvent(eventType, eventID, req, netCtx, store)

	// The outbound call must survive the caller navigating away: a purchase
	// is usually followed by an immediate redirect, and the client closing
	// its connection must not cancel the in-flight platform request.
	result := s.sender.Send(context.WithoutCancel(ctx), cfg, event)
	s.recordOutcome(eventType, req.CountryCode, result)
	return result, nil
}

// buildEvent enriches the caller-supplied fields with request-scoped
// network context and attribution identifiers. A missing click-id cookie is
// reconstructed from the referring URL when it carries an inbound click
// token, so the very first request of a session still attributes correctly.
func (s *RelayService) buildEvent(eventType domain.EventType, eventID string, req *dto.TrackEventRequest, netCtx domain.NetworkContext, store attribution.Store) *domain.TrackingEvent {
	capture := attribution.NewCapture(store, s.now, nil, s.log)
	browserID := capture.EnsureBrowserID()
	clickID := capture.CaptureClick(netCtx.Referer)

	sourceURL := req.EventData.SourceURL
	if sourceURL == "" {
		sourceURL = netCtx.Referer
	}

	contents := make([]domain.ContentItem, 0, len(req.EventData.Contents))
	for _, item := range req.EventData.Contents {
		contents = append(contents, domain.ContentItem{
			ID:       item.ID,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	return &domain.TrackingEvent{
		Type:      eventType,
		EventID:   eventID,
		EventTime: s.now().Unix(),
		SourceURL: sourceURL,
		UserData: domain.UserData{
			Email:     req.EventData.Email,
			Phone:     req.EventData.Phone,
			FirstName: req.EventData.FirstName,
			LastName:  req.EventData.LastName,
			City:      req.EventData.City,
			Zip:       req.EventData.Zip,
			Country:   strings.ToLower(req.CountryCode),
			IP:        netCtx.IP,
			UserAgent: netCtx.UserAgent,
			BrowserID: browserID,
			ClickID:   clickID,
		},
		CustomData: domain.CustomData{
			Currency:   req.EventData.Currency,
			Value:      req.EventData.Value,
			ContentIDs: req.EventData.ContentIDs,
			Contents:   contents,
			OrderID:    req.EventData.OrderID,
		},
	}
}

// recordOutcome appends the delivery outcome to the log asynchronously. The
// log is telemetry; it never blocks or fails the request path.
func (s *RelayService) recordOutcome(eventType domain.EventType, countryCode string, result *capi.Result) {
	rec := &domain.DeliveryRecord{
		EventID:     result.EventID,
		EventName:   string(eventType),
		CountryCode: countryCode,
		Delivered:   result.Delivered,
		ErrorKind:   string(result.ErrorKind),
		Message:     result.Message,
		OccurredAt:  s.now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.deliveryLog.Record(ctx, rec); err != nil {
			s.log.Warn("Failed to record delivery outcome",
				zap.String("event_id", rec.EventID),
				zap.Error(err))
		}
	}()
}

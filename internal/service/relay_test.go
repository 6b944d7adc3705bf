package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/attribution"
	"github.com/krlenix/dermotin-sub001/internal/capi"
	"github.com/krlenix/dermotin-sub001/internal/domain"
	"github.com/krlenix/dermotin-sub001/internal/dto"
)

var testNow = time.Unix(1700000000, 0)

func fixedNow() time.Time { return testNow }

// MockResolver is a mock implementation of CredentialResolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(countryCode string) (domain.CountryPixelConfig, bool) {
	args := m.Called(countryCode)
	return args.Get(0).(domain.CountryPixelConfig), args.Bool(1)
}

// MockSender is a mock implementation of EventSender
type MockSender struct {
	mock.Mock

	captured struct {
		ctx   context.Context
		event *domain.TrackingEvent
	}
}

func (m *MockSender) Send(ctx context.Context, cfg domain.CountryPixelConfig, event *domain.TrackingEvent) *capi.Result {
	m.captured.ctx = ctx
	m.captured.event = event
	args := m.Called(ctx, cfg, event)
	return args.Get(0).(*capi.Result)
}

// recordingLog captures delivery records on a channel so the asynchronous
// write can be awaited.
type recordingLog struct {
	records chan *domain.DeliveryRecord
}

func newRecordingLog() *recordingLog {
	return &recordingLog{records: make(chan *domain.DeliveryRecord, 8)}
}

func (l *recordingLog) Record(_ context.Context, rec *domain.DeliveryRecord) error {
	l.records <- rec
	return nil
}
func (l *recordingLog) InitSchema(context.Context) error { return nil }
func (l *recordingLog) Ping(context.Context) error       { return nil }
func (l *recordingLog) Close() error                     { return nil }

func (l *recordingLog) wait(t *testing.T) *domain.DeliveryRecord {
	t.Helper()
	select {
	case rec := <-l.records:
		return rec
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery record")
		return nil
	}
}

func enabledConfig() domain.CountryPixelConfig {
	return domain.CountryPixelConfig{
		CountryCode:       "RS",
		PixelID:           "111",
		PixelEnabled:      true,
		ServerAccessToken: "EAAreal",
		ServerEnabled:     true,
	}
}

func trackRequest() *dto.TrackEventRequest {
	return &dto.TrackEventRequest{
		EventType:   "purchase",
		CountryCode: "RS",
		EventID:     "1700000000-ab12cd",
		EventData: dto.EventData{
			Email:    "ana@example.com",
			Phone:    "+381 60 123-4567",
			Currency: "RSD",
			Value:    4990,
			OrderID:  "ord_1",
		},
	}
}

func netCtx() domain.NetworkContext {
	return domain.NetworkContext{
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0",
		Referer:   "https://dermotin.rs/checkout?fbclid=ABC123",
	}
}

func TestRelay_DeliveredPassesIdentityThrough(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	log := newRecordingLog()
	svc := NewRelayService(resolver, sender, log, zap.NewNop(), fixedNow)

	resolver.On("Resolve", "RS").Return(enabledConfig(), true)
	sender.On("Send", mock.Anything, enabledConfig(), mock.AnythingOfType("*domain.TrackingEvent")).
		Return(&capi.Result{Delivered: true, EventID: "1700000000-ab12cd"})

	result, err := svc.Relay(context.Background(), trackRequest(), netCtx(), attribution.NewMemStore(fixedNow))

	assert.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.Equal(t, "1700000000-ab12cd", result.EventID)

	event := sender.captured.event
	assert.Equal(t, "1700000000-ab12cd", event.EventID)
	assert.Equal(t, domain.EventPurchase, event.Type)
	assert.Equal(t, testNow.Unix(), event.EventTime)
	assert.Equal(t, "203.0.113.7", event.UserData.IP)
	assert.Equal(t, "Mozilla/5.0", event.UserData.UserAgent)
	assert.Equal(t, "rs", event.UserData.Country)
	assert.Equal(t, "RSD", event.CustomData.Currency)

	rec := log.wait(t)
	assert.True(t, rec.Delivered)
	assert.Equal(t, "purchase", rec.EventName)
	assert.Equal(t, "RS", rec.CountryCode)
}

func TestRelay_SynthesizesClickIDFromReferer(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	svc := NewRelayService(resolver, sender, nil, zap.NewNop(), fixedNow)

	resolver.On("Resolve", "RS").Return(enabledConfig(), true)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&capi.Result{Delivered: true, EventID: "1700000000-ab12cd"})

	store := attribution.NewMemStore(fixedNow)
	_, err := svc.Relay(context.Background(), trackRequest(), netCtx(), store)
	assert.NoError(t, err)

	expected := fmt.Sprintf("fb.1.%d.ABC123", testNow.UnixMilli())
	assert.Equal(t, expected, sender.captured.event.UserData.ClickID)
	assert.NotEmpty(t, sender.captured.event.UserData.BrowserID)

	// The synthesized identifiers were persisted for the next request.
	stored, ok := store.Get(attribution.CookieClickID)
	assert.True(t, ok)
	assert.Equal(t, expected, stored)
}

func TestRelay_ExistingClickCookiePreserved(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	svc := NewRelayService(resolver, sender, nil, zap.NewNop(), fixedNow)

	resolver.On("Resolve", "RS").Return(enabledConfig(), true)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&capi.Result{Delivered: true, EventID: "x"})

	store := attribution.NewMemStore(fixedNow)
	store.Set(attribution.CookieClickID, "fb.1.1600000000000.OLD", attribution.TTLClickID)

	req := trackRequest()
	nc := netCtx()
	nc.Referer = "https://dermotin.rs/checkout"

	_, err := svc.Relay(context.Background(), req, nc, store)
	assert.NoError(t, err)
	assert.Equal(t, "fb.1.1600000000000.OLD", sender.captured.event.UserData.ClickID)
}

func TestRelay_GeneratesEventIDWhenAbsent(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	svc := NewRelayService(resolver, sender, nil, zap.NewNop(), fixedNow)

	resolver.On("Resolve", "RS").Return(enabledConfig(), true)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&capi.Result{Delivered: true, EventID: "generated"})

	req := trackRequest()
	req.EventID = ""

	_, err := svc.Relay(context.Background(), req, netCtx(), attribution.NewMemStore(fixedNow))
	assert.NoError(t, err)
	assert.Regexp(t, `^1700000000-[0-9a-f]{6}$`, sender.captured.event.EventID)
}

func TestRelay_ConsentDeniedSkipsSender(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	log := newRecordingLog()
	svc := NewRelayService(resolver, sender, log, zap.NewNop(), fixedNow)

	req := trackRequest()
	req.CountryCode = "HR" // opt-in jurisdiction, no stored record

	result, err := svc.Relay(context.Background(), req, netCtx(), attribution.NewMemStore(fixedNow))

	assert.NoError(t, err)
	assert.False(t, result.Delivered)
	assert.Equal(t, capi.ErrConsentDenied, result.ErrorKind)
	sender.AssertNotCalled(t, "Send")
	resolver.AssertNotCalled(t, "Resolve")

	rec := log.wait(t)
	assert.Equal(t, string(capi.ErrConsentDenied), rec.ErrorKind)
}

func TestRelay_StoredMarketingConsentAllowsOptInJurisdiction(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	svc := NewRelayService(resolver, sender, nil, zap.NewNop(), fixedNow)

	cfg := enabledConfig()
	cfg.CountryCode = "HR"
	resolver.On("Resolve", "HR").Return(cfg, true)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&capi.Result{Delivered: true, EventID: "x"})

	store := attribution.NewMemStore(fixedNow)
	raw, _ := json.Marshal(domain.ConsentState{Necessary: true, Marketing: true})
	store.Set(attribution.CookieConsent, string(raw), 0)

	req := trackRequest()
	req.CountryCode = "HR"

	result, err := svc.Relay(context.Background(), req, netCtx(), store)
	assert.NoError(t, err)
	assert.True(t, result.Delivered)
	sender.AssertExpectations(t)
}

func TestRelay_UnknownMarketNotConfigured(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	svc := NewRelayService(resolver, sender, nil, zap.NewNop(), fixedNow)

	resolver.On("Resolve", "RS").Return(domain.CountryPixelConfig{}, false)

	result, err := svc.Relay(context.Background(), trackRequest(), netCtx(), attribution.NewMemStore(fixedNow))

	assert.NoError(t, err)
	assert.False(t, result.Delivered)
	assert.Equal(t, capi.ErrNotConfigured, result.ErrorKind)
	sender.AssertNotCalled(t, "Send")
}

func TestRelay_InvalidEventType(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	svc := NewRelayService(resolver, sender, nil, zap.NewNop(), fixedNow)

	req := trackRequest()
	req.EventType = "password_reset"

	result, err := svc.Relay(context.Background(), req, netCtx(), attribution.NewMemStore(fixedNow))

	assert.Error(t, err)
	assert.Nil(t, result)
	sender.AssertNotCalled(t, "Send")
}

func TestRelay_OutboundCallSurvivesCallerCancellation(t *testing.T) {
	resolver := new(MockResolver)
	sender := new(MockSender)
	svc := NewRelayService(resolver, sender, nil, zap.NewNop(), fixedNow)

	resolver.On("Resolve", "RS").Return(enabledConfig(), true)
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&capi.Result{Delivered: true, EventID: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.Relay(ctx, trackRequest(), netCtx(), attribution.NewMemStore(fixedNow))
	assert.NoError(t, err)

	// The page navigating away cancels the inbound context; the context
	// handed to the platform call must not observe it.
	cancel()
	assert.NoError(t, sender.captured.ctx.Err())
}

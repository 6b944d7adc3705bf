package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/krlenix/dermotin-sub001/internal/domain"
)

// ErrorKind classifies why a relay attempt did not deliver. All kinds are
// expected outcomes of a best-effort pipeline, never user-visible failures.
type ErrorKind string

const (
	ErrNone             ErrorKind = ""
	ErrNotConfigured    ErrorKind = "not_configured"
	ErrConsentDenied    ErrorKind = "consent_denied"
	ErrTransport        ErrorKind = "transport_error"
	ErrPlatformRejected ErrorKind = "platform_rejected"
)

// Result is the outcome of one relay attempt.
type Result struct {
	Delivered bool
	EventID   string
	ErrorKind ErrorKind
	Message   string
}

// Doer issues HTTP requests. Satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// userDataPayload is the platform's user_data block. Every field except IP
// and user agent carries a SHA-256 digest.
type userDataPayload struct {
	Email     string `json:"em,omitempty"`
	Phone     string `json:"ph,omitempty"`
	FirstName string `json:"fn,omitempty"`
	LastName  string `json:"ln,omitempty"`
	City      string `json:"ct,omitempty"`
	Zip       string `json:"zp,omitempty"`
	Country   string `json:"country,omitempty"`
	IP        string `json:"client_ip_address,omitempty"`
	UserAgent string `json:"client_user_agent,omitempty"`
	BrowserID string `json:"fbp,omitempty"`
	ClickID   string `json:"fbc,omitempty"`
}

type eventPayload struct {
	EventName    string             `json:"event_name"`
	EventTime    int64              `json:"event_time"`
	EventID      string             `json:"event_id"`
	SourceURL    string             `json:"event_source_url,omitempty"`
	ActionSource string             `json:"action_source"`
	UserData     userDataPayload    `json:"user_data"`
	CustomData   *domain.CustomData `json:"custom_data,omitempty"`
}

type requestBody struct {
	Data          []eventPayload `json:"data"`
	TestEventCode string         `json:"test_event_code,omitempty"`
}

type responseBody struct {
	EventsReceived int    `json:"events_received"`
	TraceID        string `json:"fbtrace_id"`
	Error          *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Client sends canonical event payloads to the platform's server endpoint.
type Client struct {
	http            Doer
	baseURL         string
	apiVersion      string
	attachTestCodes bool
	log             *zap.Logger
}

// NewClient creates a relay client. attachTestCodes should be true outside
// production so events land in the platform's test console instead of live
// reporting.
func NewClient(httpClient Doer, baseURL, apiVersion string, attachTestCodes bool, log *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		http:            httpClient,
		baseURL:         baseURL,
		apiVersion:      apiVersion,
		attachTestCodes: attachTestCodes,
		log:             log,
	}
}

// Send relays one event to the market identified by cfg. It never returns
// an error; all outcomes, including transport failures, are folded into the
// Result so no caller is tempted to surface them to the visitor.
func (c *Client) Send(ctx context.Context, cfg domain.CountryPixelConfig, event *domain.TrackingEvent) *Result {
	if !cfg.ServerEnabled {
		return &Result{EventID: event.EventID, ErrorKind: ErrNotConfigured}
	}

	names, ok := domain.ChannelNamesFor(event.Type)
	if !ok {
		return &Result{
			EventID:   event.EventID,
			ErrorKind: ErrPlatformRejected,
			Message:   fmt.Sprintf("unsupported event type: %s", event.Type),
		}
	}

	body := requestBody{
		Data: []eventPayload{{
			EventName:    names.Server,
			EventTime:    event.EventTime,
			EventID:      event.EventID,
			SourceURL:    event.SourceURL,
			ActionSource: "website",
			UserData:     buildUserData(event.UserData),
			CustomData:   customDataOrNil(event.CustomData),
		}},
	}
	if c.attachTestCodes {
		body.TestEventCode = cfg.TestEventCode
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return &Result{EventID: event.EventID, ErrorKind: ErrTransport, Message: err.Error()}
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events?access_token=%s",
		c.baseURL, c.apiVersion, cfg.PixelID, cfg.ServerAccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return &Result{EventID: event.EventID, ErrorKind: ErrTransport, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("Relay transport failure",
			zap.String("event_id", event.EventID),
			zap.String("country_code", cfg.CountryCode),
			zap.Error(err))
		return &Result{EventID: event.EventID, ErrorKind: ErrTransport, Message: err.Error()}
	}
	defer resp.Body.Close()

	var parsed responseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil && resp.StatusCode < 300 {
		return &Result{EventID: event.EventID, ErrorKind: ErrTransport, Message: err.Error()}
	}

	if resp.StatusCode >= 300 || parsed.Error != nil {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		c.log.Warn("Platform rejected event",
			zap.String("event_id", event.EventID),
			zap.String("country_code", cfg.CountryCode),
			zap.Int("status", resp.StatusCode),
			zap.String("platform_message", msg))
		return &Result{EventID: event.EventID, ErrorKind: ErrPlatformRejected, Message: msg}
	}

	c.log.Info("Event relayed",
		zap.String("event_id", event.EventID),
		zap.String("event_name", names.Server),
		zap.String("country_code", cfg.CountryCode),
		zap.String("trace_id", parsed.TraceID))

	return &Result{Delivered: true, EventID: event.EventID}
}

// buildUserData hashes every PII field and drops the ones that are empty
// after normalization. IP and user agent pass through in clear; the
// attribution identifiers are platform artifacts, already opaque.
func buildUserData(u domain.UserData) userDataPayload {
	return userDataPayload{
		Email:     HashField(u.Email),
		Phone:     HashPhone(u.Phone),
		FirstName: HashField(u.FirstName),
		LastName:  HashField(u.LastName),
		City:      HashField(u.City),
		Zip:       HashField(u.Zip),
		Country:   HashField(u.Country),
		IP:        u.IP,
		UserAgent: u.UserAgent,
		BrowserID: u.BrowserID,
		ClickID:   u.ClickID,
	}
}

func customDataOrNil(cd domain.CustomData) *domain.CustomData {
	empty := domain.CustomData{}
	if cd.Currency == empty.Currency && cd.Value == 0 && cd.OrderID == "" &&
		len(cd.ContentIDs) == 0 && len(cd.Contents) == 0 && cd.ContentType == "" {
		return nil
	}
	return &cd
}

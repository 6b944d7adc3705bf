package domain

// EventType identifies a logical tracking occurrence.
type EventType string

const (
	EventPageView         EventType = "page_view"
	EventViewContent      EventType = "view_content"
	EventInitiateCheckout EventType = "initiate_checkout"
	EventPurchase         EventType = "purchase"
	EventAddToCart        EventType = "add_to_cart"
	EventLead             EventType = "lead"
)

// ChannelNames holds the literal event names each delivery channel expects
// for one logical event type. The browser pixel and the server API happen to
// agree on the standard events, but the mapping is kept per channel because
// the two schemas are versioned independently.
type ChannelNames struct {
	Pixel  string
	Server string
}

var eventNames = map[EventType]ChannelNames{
	EventPageView:         {Pixel: "PageView", Server: "PageView"},
	EventViewContent:      {Pixel: "ViewContent", Server: "ViewContent"},
	EventInitiateCheckout: {Pixel: "InitiateCheckout", Server: "InitiateCheckout"},
	EventPurchase:         {Pixel: "Purchase", Server: "Purchase"},
	EventAddToCart:        {Pixel: "AddToCart", Server: "AddToCart"},
	EventLead:             {Pixel: "Lead", Server: "Lead"},
}

// ChannelNamesFor returns the per-channel event names for t. The second
// return value is false for event types outside the supported taxonomy.
func ChannelNamesFor(t EventType) (ChannelNames, bool) {
	names, ok := eventNames[t]
	return names, ok
}

// Valid reports whether t is part of the supported event taxonomy.
func (t EventType) Valid() bool {
	_, ok := eventNames[t]
	return ok
}

// UserData carries the visitor identity fields attached to an event before
// hashing. Every field except IP and user agent is hashed before it leaves
// the process; the platform schema requires IP and user agent in clear.
type UserData struct {
	Email     string
	Phone     string
	FirstName string
	LastName  string
	City      string
	Zip       string
	Country   string
	IP        string
	UserAgent string
	BrowserID string
	ClickID   string
}

// ContentItem is one line item in a checkout or purchase event.
type ContentItem struct {
	ID       string  `json:"id"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"item_price,omitempty"`
}

// CustomData carries the commerce attributes of an event.
type CustomData struct {
	Currency    string        `json:"currency,omitempty"`
	Value       float64       `json:"value,omitempty"`
	ContentIDs  []string      `json:"content_ids,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	Contents    []ContentItem `json:"contents,omitempty"`
	OrderID     string        `json:"order_id,omitempty"`
}

// TrackingEvent is the transient description of one logical occurrence. It
// is built per interaction and discarded after delivery. EventID is shared
// verbatim by both delivery channels so the platform can collapse the two
// reports into one attributed event.
type TrackingEvent struct {
	Type       EventType
	EventID    string
	EventTime  int64
	SourceURL  string
	UserData   UserData
	CustomData CustomData
}

// NetworkContext is the request-scoped network information the server path
// enriches an event with.
type NetworkContext struct {
	IP        string
	UserAgent string
	Referer   string
}

package dto

// ContentItem is one line item in the event payload.
type ContentItem struct {
	ID       string  `json:"id" binding:"required" example:"prod-789"`
	Quantity int     `json:"quantity" binding:"required,min=1" example:"2"`
	Price    float64 `json:"item_price" example:"129.99"`
}

// EventData carries the caller-supplied identity and commerce attributes of
// one event. Identity fields arrive in clear and are hashed before leaving
// the server boundary.
type EventData struct {
	Email     string `json:"email" example:"ana@example.com"`
	Phone     string `json:"phone" example:"+381 60 123-4567"`
	FirstName string `json:"first_name" example:"Ana"`
	LastName  string `json:"last_name" example:"Petrovic"`
	City      string `json:"city" example:"Beograd"`
	Zip       string `json:"zip" example:"11000"`

	SourceURL string `json:"source_url" example:"https://dermotin.rs/checkout"`

	Currency   string        `json:"currency" example:"RSD"`
	Value      float64       `json:"value" example:"4990"`
	ContentIDs []string      `json:"content_ids" example:"prod-789"`
	Contents   []ContentItem `json:"contents"`
	OrderID    string        `json:"order_id" example:"ord_12345"`
}

// TrackEventRequest is the inbound relay request body.
type TrackEventRequest struct {
	EventType   string    `json:"event_type" binding:"required" example:"purchase"`
	CountryCode string    `json:"country_code" binding:"required" example:"RS"`
	EventID     string    `json:"event_id" example:"1700000000-ab12cd"`
	EventData   EventData `json:"event_data"`
}

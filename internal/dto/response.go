package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message,omitempty" example:"event_type is required"`
}

// TrackEventResponse is the relay outcome returned to the caller. Success
// false with an error kind is an expected outcome (consent denied, market
// not configured), not an HTTP failure.
type TrackEventResponse struct {
	Success bool   `json:"success" example:"true"`
	EventID string `json:"event_id,omitempty" example:"1700000000-ab12cd"`
	Error   string `json:"error,omitempty" example:"not_configured"`
}

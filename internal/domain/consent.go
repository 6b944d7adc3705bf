package domain

// ConsentState is the visitor's stored consent preference. Necessary is
// always true; the remaining categories are opt-in.
type ConsentState struct {
	Necessary  bool `json:"necessary"`
	Analytics  bool `json:"analytics"`
	Marketing  bool `json:"marketing"`
	Functional bool `json:"functional"`
}

// DefaultConsent returns the state of a visitor who has not answered the
// consent prompt yet. Everything beyond strictly necessary is off.
func DefaultConsent() ConsentState {
	return ConsentState{Necessary: true}
}

package dispatch

import (
	"fmt"
	"math/rand"
	"time"
)

const suffixAlphabet = "0123456789abcdef"

// NewEventID generates a correlation token: unix seconds plus a short
// random suffix, e.g. "1700000000-ab12cd". Enough entropy to avoid
// collisions within a session; this is a correlation token, not a security
// token, so math/rand is deliberate.
func NewEventID(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return fmt.Sprintf("%d-%s", now.Unix(), suffix)
}

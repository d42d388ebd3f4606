package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return id.String()
}

// NewInvocationID returns a time-sortable identifier for a single
// handler invocation.
func NewInvocationID() string {
	return newULID()
}

// NewConnectionID returns an identifier suitable for a connection (sid)
// when the dispatcher does not assign its own.
func NewConnectionID() string {
	return newULID()
}

// NewEnvelopeID returns a message identifier for cross-instance event
// envelopes.
func NewEnvelopeID() string {
	return newULID()
}

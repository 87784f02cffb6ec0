package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier stamped with wall time.
func New() string {
	return At(time.Now())
}

// At is Stamp for times known to be in range. It panics otherwise.
func At(t time.Time) string {
	id, err := Stamp(t)
	if err != nil {
		panic(err)
	}
	return id
}

// Stamp returns an identifier carrying t, so entries posted under a
// fast-forwarded clock sort by their booking time. The zero time falls back
// to wall time. Times past ulid.MaxTime are rejected.
func Stamp(t time.Time) (string, error) {
	if t.IsZero() {
		t = time.Now()
	}
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

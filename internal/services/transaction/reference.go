package transaction

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReferenceGenerator issues transaction references. The suffix is the low
// 40 bits of a monotonic ULID. The increment is capped so that a burst
// within one millisecond cannot wrap those bits.
type ReferenceGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{
		entropy: ulid.Monotonic(rand.Reader, maxEntropyIncrement),
		now:     time.Now,
	}
}

// Next returns a reference of the form TXN + YYYYMMDDHHMMSS + 8 characters.
func (g *ReferenceGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	if err != nil {
		// Monotonic overflow within one millisecond; fall back to fresh entropy.
		id = ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	}
	s := id.String()
	return ReferencePrefix + now.Format(referenceTimeLayout) + s[len(s)-referenceSuffixLength:]
}

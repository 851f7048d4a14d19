package booking

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

const (
	referencePrefix  = "BK"
	referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceLength  = 6
)

// ReferenceGenerator produces candidate booking references of the form
// BK-<year>-<6 upper-case alphanumerics>.  Uniqueness is decided by the
// store; the service retries with a fresh candidate on collision.
type ReferenceGenerator struct {
	Rand io.Reader
	Now  func() time.Time
}

// NewReferenceGenerator returns a generator backed by crypto/rand.
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{Rand: rand.Reader, Now: time.Now}
}

// Next returns a new candidate reference.
func (g *ReferenceGenerator) Next() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := io.ReadFull(g.Rand, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i := range buf {
		buf[i] = referenceCharset[int(buf[i])%len(referenceCharset)]
	}
	return fmt.Sprintf("%s-%d-%s", referencePrefix, g.Now().UTC().Year(), buf), nil
}

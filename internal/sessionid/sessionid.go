// Package sessionid derives session identifiers from the two participants
// and the creation time.
package sessionid

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// suffixLen is the encoded length of the 48-bit timestamp plus 32 random bits.
const suffixLen = 16

// RandSource interface for dependency injection of randomness
type RandSource interface {
	Intn(n int) int
}

// Generator builds session IDs with configurable randomness
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil randSource uses crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// New derives an ID of the form "<challenger>-<challenged>-<suffix>". The
// suffix sorts by creation time; the random bits keep two sessions created
// in the same millisecond apart.
func (g *Generator) New(challenger, challenged string, now time.Time) string {
	var raw [10]byte

	ms := now.UnixMilli()
	raw[0] = byte(ms >> 40)
	raw[1] = byte(ms >> 32)
	raw[2] = byte(ms >> 24)
	raw[3] = byte(ms >> 16)
	raw[4] = byte(ms >> 8)
	raw[5] = byte(ms)

	if g.randSource != nil {
		// Use provided RandSource for deterministic testing
		for i := 6; i < len(raw); i++ {
			raw[i] = byte(g.randSource.Intn(256))
		}
	} else if _, err := rand.Read(raw[6:]); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}

	return fmt.Sprintf("%s-%s-%s", challenger, challenged, encodeBase32(raw[:]))
}

// encodeBase32 encodes 80 bits as 16 base32 characters, 5 bits at a time.
func encodeBase32(data []byte) string {
	result := make([]byte, 0, suffixLen)
	var buffer uint
	var bits uint

	for _, b := range data {
		buffer = buffer<<8 | uint(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			result = append(result, alphabet[(buffer>>bits)&0x1f])
		}
	}
	if bits > 0 {
		result = append(result, alphabet[(buffer<<(5-bits))&0x1f])
	}
	return string(result)
}

// Suffix returns the time-sortable part of an ID.
func Suffix(id string) string {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return id
	}
	return id[i+1:]
}

// Validate checks that the ID ends in a well-formed suffix.
func Validate(id string) error {
	suffix := Suffix(id)
	if suffix == id {
		return fmt.Errorf("session ID %q has no participant prefix", id)
	}
	if len(suffix) != suffixLen {
		return fmt.Errorf("session ID suffix must be exactly %d characters, got %d", suffixLen, len(suffix))
	}
	for i, char := range suffix {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}
	return nil
}

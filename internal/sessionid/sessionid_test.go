package sessionid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	created = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ids     = NewGenerator(nil)
)

// sequence replays fixed values so generated IDs are reproducible.
type sequence struct {
	values []int
	next   int
}

func (s *sequence) Intn(n int) int {
	if s.next >= len(s.values) {
		return 0
	}
	v := s.values[s.next] % n
	s.next++
	return v
}

func TestNewCarriesParticipants(t *testing.T) {
	id := ids.New("alice", "bob", created)

	assert.Regexp(t, `^alice-bob-[0-9a-z]{16}$`, id)
	require.NoError(t, Validate(id))
}

func TestSameMillisecondStillDistinct(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for range 100 {
		id := ids.New("alice", "bob", created)
		_, dup := seen[id]
		require.False(t, dup, "duplicate %s", id)
		seen[id] = struct{}{}
	}
}

func TestSuffixSortsByCreationTime(t *testing.T) {
	prev := ""
	for ms := range 10 {
		suffix := Suffix(ids.New("alice", "bob", created.Add(time.Duration(ms)*time.Millisecond)))
		assert.Greater(t, suffix, prev)
		prev = suffix
	}
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "01h5n0et5q6mt3v7", Suffix("u-1-u-2-01h5n0et5q6mt3v7"))
	assert.Equal(t, "bare", Suffix("bare"))
}

func TestValidate(t *testing.T) {
	for id, ok := range map[string]bool{
		"alice-bob-01h5n0et5q6mt3v7": true,
		"u-1-u-2-01h5n0et5q6mt3v7":   true,
		"01h5n0et5q6mt3v7":           false,
		"alice-bob-01h5n0et5q":       false,
		"alice-bob-01h5n0et5q6mt3vi": false,
		"alice-bob-01H5N0ET5Q6MT3V7": false,
	} {
		err := Validate(id)
		if ok {
			assert.NoError(t, err, id)
		} else {
			assert.Error(t, err, id)
		}
	}
}

func TestAlphabetSkipsAmbiguousLetters(t *testing.T) {
	require.Len(t, alphabet, 32)
	for _, r := range "ilou" {
		assert.NotContains(t, alphabet, string(r))
	}
}

func TestGeneratorWithFixedSource(t *testing.T) {
	first := NewGenerator(&sequence{values: []int{1, 2, 3, 4}}).New("alice", "bob", created)
	second := NewGenerator(&sequence{values: []int{1, 2, 3, 4}}).New("alice", "bob", created)

	assert.Equal(t, first, second)
	require.NoError(t, Validate(first))
}

func TestEncodeBase32(t *testing.T) {
	assert.Equal(t, "0000000000000000", encodeBase32(make([]byte, 10)))
	assert.Equal(t, "zzzzzzzzzzzzzzzz", encodeBase32([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}))
}

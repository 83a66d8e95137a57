package render

import (
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rockpapercrane/internal/rules"
	"github.com/lox/rockpapercrane/internal/session"
)

var created = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// transcript formats every event emitted while driving a session.
type transcript struct {
	t     *testing.T
	f     *Formatter
	lines []string
}

func (tr *transcript) add(events []session.Event, err error) {
	tr.t.Helper()
	require.NoError(tr.t, err)
	for _, e := range events {
		tr.lines = append(tr.lines, tr.f.FormatEvent(e))
	}
}

func (tr *transcript) bytes() []byte {
	return []byte(strings.Join(tr.lines, "\n") + "\n")
}

func propose(t *testing.T, variant rules.Variant) *session.Session {
	t.Helper()
	s, err := session.Propose(session.Proposal{
		ID:         "alice-bob-01golden",
		Challenger: "alice",
		Challenged: "bob",
		ChannelID:  "general",
		Variant:    variant,
		CreatedAt:  created,
	})
	require.NoError(t, err)
	return s
}

func TestClassicTranscript(t *testing.T) {
	s := propose(t, rules.Classic)
	tr := &transcript{t: t, f: NewFormatter(PlainOptions())}

	tr.add([]session.Event{session.ChallengeCreated{Session: s.Snapshot()}}, nil)
	tr.add(s.Respond("bob", true))
	tr.add(s.SubmitChoice("alice", rules.Rock))
	tr.add(s.SubmitChoice("bob", rules.Rock))
	tr.add(s.SubmitChoice("alice", rules.Scissors))
	tr.add(s.SubmitChoice("bob", rules.Paper))

	g := goldie.New(t)
	g.Assert(t, "classic_transcript", tr.bytes())
}

func TestUpgradeTranscript(t *testing.T) {
	s := propose(t, rules.Upgrade)
	tr := &transcript{t: t, f: NewFormatter(PlainOptions())}

	tr.add([]session.Event{session.ChallengeCreated{Session: s.Snapshot()}}, nil)
	tr.add(s.Respond("bob", true))
	tr.add(s.SubmitChoice("alice", rules.Bomb))
	tr.add(s.SubmitChoice("bob", rules.Rock))
	tr.add(s.SubmitUpgrade("alice", rules.Bomb))
	tr.add(s.SubmitChoice("bob", rules.Rock))
	tr.add(s.SubmitChoice("alice", rules.Bomb))
	tr.add(s.SubmitUpgrade("alice", rules.Rock))
	tr.add(s.SubmitChoice("alice", rules.Paper))
	tr.add(s.SubmitChoice("bob", rules.Paper))

	g := goldie.New(t)
	g.Assert(t, "upgrade_transcript", tr.bytes())
	g.Assert(t, "upgrade_snapshot", []byte(tr.f.FormatSnapshot(s.Snapshot())))
}

func TestFormatLifecycleEvents(t *testing.T) {
	f := NewFormatter(PlainOptions())

	declined := propose(t, rules.Classic)
	events, err := declined.Respond("bob", false)
	require.NoError(t, err)
	assert.Equal(t, "bob declined the challenge from alice.", f.FormatEvent(events[0]))

	expired := propose(t, rules.Classic)
	events, err = expired.Expire()
	require.NoError(t, err)
	assert.Equal(t, "The challenge from alice to bob expired.", f.FormatEvent(events[0]))
}

func TestFormatRematch(t *testing.T) {
	f := NewFormatter(PlainOptions())

	previous := propose(t, rules.Classic)
	_, err := previous.Respond("bob", true)
	require.NoError(t, err)
	_, err = previous.SubmitChoice("alice", rules.Rock)
	require.NoError(t, err)
	_, err = previous.SubmitChoice("bob", rules.Paper)
	require.NoError(t, err)

	handshake, err := session.Rematch("bob-alice-01golden", previous.Snapshot(), "bob", session.HandshakeRematch, created)
	require.NoError(t, err)
	assert.Equal(t,
		"bob wants a rematch with alice to a classic game of rock paper crane. alice, accept or decline.",
		f.FormatEvent(session.ChallengeCreated{Session: handshake.Snapshot(), Rematch: true}))

	direct, err := session.Rematch("bob-alice-01golden", previous.Snapshot(), "bob", session.DirectRematch, created)
	require.NoError(t, err)
	assert.Equal(t,
		"Rematch! bob vs alice, round 1. Make your choices.",
		f.FormatEvent(session.ChallengeCreated{Session: direct.Snapshot(), Rematch: true}))
}

func TestFormatError(t *testing.T) {
	f := NewFormatter(PlainOptions())
	assert.Equal(t,
		"you cannot challenge yourself (self_challenge)",
		f.FormatError(session.CodeOf(session.ErrSelfChallenge), session.ErrSelfChallenge.Message))
}

func TestEmojiOption(t *testing.T) {
	f := NewFormatter(Options{Emoji: true, Profile: termenv.Ascii})
	assert.Equal(t, "🪨 Rock", f.item(rules.Rock))
	assert.Equal(t, "💣 Bomb", f.item(rules.Bomb))
}

func TestStyledOutput(t *testing.T) {
	plain := NewFormatter(PlainOptions())
	styled := NewFormatter(Options{Profile: termenv.TrueColor})

	err := styled.FormatError(session.CodeWrongPhase, "not now")
	assert.Contains(t, err, "\x1b[")
	assert.Contains(t, err, "not now (wrong_phase)")
	assert.NotEqual(t, plain.FormatError(session.CodeWrongPhase, "not now"), err)
}

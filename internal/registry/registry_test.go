package registry

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/rockpapercrane/internal/loop"
	"github.com/lox/rockpapercrane/internal/rules"
	"github.com/lox/rockpapercrane/internal/session"
)

type testHarness struct {
	t      *testing.T
	ctx    context.Context
	clock  *quartz.Mock
	loop   *loop.Loop
	svc    *Service
	events []session.Event
}

func newHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	l := loop.New(logger, 64)
	go func() { _ = l.Run(ctx) }()

	h := &testHarness{t: t, ctx: ctx, clock: quartz.NewMock(t), loop: l}
	reg := New(cfg, l, logger,
		WithClock(h.clock),
		WithDirectory(DirectoryFunc(func(id string) bool { return id == "bot" })),
	)
	reg.Events().Subscribe(session.SubscriberFunc(func(e session.Event) {
		h.events = append(h.events, e)
	}))
	h.svc = NewService(reg, l)
	return h
}

// advance moves the mock clock and waits for any expiry task it posted to
// run on the loop.
func (h *testHarness) advance(d time.Duration) {
	h.t.Helper()
	h.clock.Advance(d).MustWait(h.ctx)
	require.NoError(h.t, h.svc.Do(h.ctx, func(*Registry) error { return nil }))
}

// block occupies the loop until the returned func is called.
func (h *testHarness) block() func() {
	h.t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(h.t, h.loop.Post(func() {
		close(started)
		<-release
	}))
	<-started
	return func() { close(release) }
}

func (h *testHarness) eventTypes() []session.EventType {
	h.t.Helper()
	var types []session.EventType
	require.NoError(h.t, h.svc.Do(h.ctx, func(*Registry) error {
		for _, e := range h.events {
			types = append(types, e.EventType())
		}
		return nil
	}))
	return types
}

func (h *testHarness) len() int {
	h.t.Helper()
	var n int
	require.NoError(h.t, h.svc.Do(h.ctx, func(r *Registry) error {
		n = r.Len()
		return nil
	}))
	return n
}

func TestCreateChallenge(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)

	assert.Equal(t, session.Proposed, snap.Phase)
	assert.Equal(t, "alice", snap.ParticipantA)
	assert.Equal(t, "bob", snap.ParticipantB)
	assert.Equal(t, "general", snap.ChannelID)
	assert.Equal(t, rules.Upgrade, snap.Variant)
	assert.Equal(t, h.clock.Now(), snap.CreatedAt)
	assert.Equal(t, 1, h.len())
	assert.Equal(t, []session.EventType{session.EventTypeChallengeCreated}, h.eventTypes())

	got, err := h.svc.Get(h.ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestCreateChallengeRejections(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)

	tests := []struct {
		name       string
		challenger string
		challenged string
		want       error
	}{
		{"self challenge", "alice", "alice", session.ErrSelfChallenge},
		{"bot opponent", "alice", "bot", session.ErrBotOpponent},
		{"duplicate same order", "alice", "bob", session.ErrDuplicateSession},
		{"duplicate reversed order", "bob", "alice", session.ErrDuplicateSession},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateChallenge(h.ctx, tt.challenger, tt.challenged, "general")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 1, h.len(), "rejected challenges must not change the registry")

	_, err = h.svc.CreateChallenge(h.ctx, "alice", "carol", "general")
	assert.NoError(t, err, "other pairs are unaffected")
}

func TestDuplicateWhileGameInProgress(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)
	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	require.NoError(t, err)

	_, err = h.svc.CreateChallenge(h.ctx, "bob", "alice", "general")
	assert.ErrorIs(t, err, session.ErrDuplicateSession, "pair is busy while playing")

	_, err = h.svc.SubmitChoice(h.ctx, snap.ID, "alice", "paper")
	require.NoError(t, err)
	resolved, err := h.svc.SubmitChoice(h.ctx, snap.ID, "bob", "rock")
	require.NoError(t, err)
	require.Equal(t, session.Upgrading, resolved.Phase)

	_, err = h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	assert.ErrorIs(t, err, session.ErrDuplicateSession, "pair is busy while upgrading")
	assert.Equal(t, 1, h.len())
}

func TestChallengeExpires(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)

	h.advance(59 * time.Second)
	got, err := h.svc.Get(h.ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Proposed, got.Phase)

	h.advance(time.Second)
	_, err = h.svc.Get(h.ctx, snap.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.Equal(t, 0, h.len())
	assert.Equal(t, []session.EventType{
		session.EventTypeChallengeCreated,
		session.EventTypeChallengeExpired,
	}, h.eventTypes())

	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = h.svc.CreateChallenge(h.ctx, "bob", "alice", "general")
	assert.NoError(t, err, "pair is free again after expiry")
}

func TestConfiguredChallengeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChallengeTimeout = 10 * time.Second
	h := newHarness(t, cfg)

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)

	h.advance(10 * time.Second)
	_, err = h.svc.Get(h.ctx, snap.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestAcceptCancelsExpiry(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)

	snap, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	require.NoError(t, err)
	assert.Equal(t, session.Playing, snap.Phase)

	h.advance(2 * time.Minute)
	got, err := h.svc.Get(h.ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Playing, got.Phase)
	assert.NotContains(t, h.eventTypes(), session.EventTypeChallengeExpired)
}

func TestExpiryQueuedBehindAcceptIsHarmless(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)

	release := h.block()
	var respondErr error
	require.NoError(t, h.loop.Post(func() {
		_, respondErr = h.svc.Registry().Respond(snap.ID, "bob", true)
	}))
	// The timer fires while the accept is still queued, so its task lands
	// on the loop after the accept.
	h.clock.Advance(DefaultChallengeTimeout).MustWait(h.ctx)
	release()

	got, err := h.svc.Get(h.ctx, snap.ID)
	require.NoError(t, err)
	require.NoError(t, respondErr)
	assert.Equal(t, session.Playing, got.Phase)
	assert.NotContains(t, h.eventTypes(), session.EventTypeChallengeExpired)
}

func TestFireExpiryIgnoresStartedSession(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)
	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	require.NoError(t, err)

	require.NoError(t, h.svc.Do(h.ctx, func(r *Registry) error {
		r.fireExpiry(snap.ID, &expiry{})
		return nil
	}))

	got, err := h.svc.Get(h.ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Playing, got.Phase)
	assert.NotContains(t, h.eventTypes(), session.EventTypeChallengeExpired)
}

func TestCancelledCallerLeavesNoTrace(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	release := h.block()

	ctx, cancel := context.WithCancel(h.ctx)
	cancel()
	_, err := h.svc.CreateChallenge(ctx, "alice", "bob", "general")
	assert.ErrorIs(t, err, context.Canceled)

	release()
	assert.Equal(t, 0, h.len(), "a failed call must not create a session")
	assert.Empty(t, h.eventTypes())
}

func TestDeclineRemovesSession(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)

	_, err = h.svc.Respond(h.ctx, snap.ID, "alice", false)
	assert.ErrorIs(t, err, session.ErrUnauthorizedResponder)

	declined, err := h.svc.Respond(h.ctx, snap.ID, "bob", false)
	require.NoError(t, err)
	assert.Equal(t, session.Declined, declined.Phase)
	assert.Equal(t, 0, h.len())

	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestClassicGameCompletes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variant = rules.Classic
	h := newHarness(t, cfg)

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)
	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	require.NoError(t, err)

	_, err = h.svc.SubmitChoice(h.ctx, snap.ID, "alice", "bomb")
	assert.ErrorIs(t, err, session.ErrInvalidItem, "bomb is not part of the classic game")

	locked, err := h.svc.SubmitChoice(h.ctx, snap.ID, "alice", "Rock")
	require.NoError(t, err)
	assert.True(t, locked.ChoseA)

	final, err := h.svc.SubmitChoice(h.ctx, snap.ID, "bob", "scissors")
	require.NoError(t, err)
	assert.Equal(t, session.Completed, final.Phase)
	assert.Equal(t, "alice", final.Winner)
	assert.Equal(t, 0, h.len())

	assert.Equal(t, []session.EventType{
		session.EventTypeChallengeCreated,
		session.EventTypeChallengeAccepted,
		session.EventTypeChoiceLocked,
		session.EventTypeRoundResolved,
		session.EventTypeGameCompleted,
	}, h.eventTypes())
}

func TestUpgradeGameCompletes(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)
	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	require.NoError(t, err)

	for _, upgrade := range []string{"bomb", "rock", "paper", "scissors"} {
		_, err = h.svc.SubmitChoice(h.ctx, snap.ID, "alice", "bomb")
		require.NoError(t, err)
		resolved, err := h.svc.SubmitChoice(h.ctx, snap.ID, "bob", "rock")
		require.NoError(t, err)
		require.Equal(t, session.Upgrading, resolved.Phase)
		require.Equal(t, "alice", resolved.PendingUpgrader)

		_, err = h.svc.SubmitUpgrade(h.ctx, snap.ID, "bob", upgrade)
		assert.ErrorIs(t, err, session.ErrNotYourTurn)

		snap, err = h.svc.SubmitUpgrade(h.ctx, snap.ID, "alice", upgrade)
		require.NoError(t, err)
	}

	assert.Equal(t, session.Completed, snap.Phase)
	assert.Equal(t, "alice", snap.Winner)
	assert.Equal(t, 4, snap.WinsA)
	assert.True(t, snap.UpgradesA.Complete())
	assert.Equal(t, 0, h.len())

	types := h.eventTypes()
	assert.Equal(t, session.EventTypeGameCompleted, types[len(types)-1])
}

func TestSubmitUnknownItem(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)
	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	require.NoError(t, err)

	_, err = h.svc.SubmitChoice(h.ctx, snap.ID, "alice", "lizard")
	assert.ErrorIs(t, err, session.ErrInvalidItem)
	assert.Equal(t, session.CodeInvalidItem, session.CodeOf(err))

	_, err = h.svc.SubmitChoice(h.ctx, "missing", "alice", "rock")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestRematch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variant = rules.Classic
	cfg.RematchPolicy = session.HandshakeRematch
	h := newHarness(t, cfg)

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)
	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	require.NoError(t, err)
	_, err = h.svc.SubmitChoice(h.ctx, snap.ID, "alice", "paper")
	require.NoError(t, err)
	finished, err := h.svc.SubmitChoice(h.ctx, snap.ID, "bob", "scissors")
	require.NoError(t, err)
	require.Equal(t, session.Completed, finished.Phase)

	_, err = h.svc.Rematch(h.ctx, finished, "carol")
	assert.ErrorIs(t, err, session.ErrNotParticipant)

	rematch, err := h.svc.Rematch(h.ctx, finished, "bob")
	require.NoError(t, err)
	assert.Equal(t, session.Proposed, rematch.Phase)
	assert.Equal(t, "bob", rematch.ParticipantA, "requester becomes the challenger")
	assert.Equal(t, "alice", rematch.ParticipantB)
	assert.NotEqual(t, finished.ID, rematch.ID)

	_, err = h.svc.Rematch(h.ctx, finished, "alice")
	assert.ErrorIs(t, err, session.ErrDuplicateSession)

	h.advance(60 * time.Second)
	_, err = h.svc.Get(h.ctx, rematch.ID)
	assert.ErrorIs(t, err, session.ErrSessionNotFound, "handshake rematches expire like challenges")
}

func TestDirectRematchSkipsProposal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Variant = rules.Classic
	cfg.RematchPolicy = session.DirectRematch
	h := newHarness(t, cfg)

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)
	_, err = h.svc.Respond(h.ctx, snap.ID, "bob", true)
	require.NoError(t, err)
	_, err = h.svc.SubmitChoice(h.ctx, snap.ID, "alice", "rock")
	require.NoError(t, err)
	finished, err := h.svc.SubmitChoice(h.ctx, snap.ID, "bob", "paper")
	require.NoError(t, err)

	rematch, err := h.svc.Rematch(h.ctx, finished, "alice")
	require.NoError(t, err)
	assert.Equal(t, session.Playing, rematch.Phase)

	h.advance(2 * time.Minute)
	got, err := h.svc.Get(h.ctx, rematch.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Playing, got.Phase)
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)

	require.NoError(t, h.svc.Do(h.ctx, func(r *Registry) error {
		r.Remove(snap.ID)
		r.Remove(snap.ID)
		r.Remove("never-existed")
		return nil
	}))
	assert.Equal(t, 0, h.len())

	// The cancelled timer must not resurrect or publish anything.
	h.advance(60 * time.Second)
	assert.Equal(t, []session.EventType{session.EventTypeChallengeCreated}, h.eventTypes())
}

func TestSessionsAndActiveFor(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.svc.CreateChallenge(h.ctx, "alice", "bob", "general")
	require.NoError(t, err)
	_, err = h.svc.CreateChallenge(h.ctx, "carol", "alice", "general")
	require.NoError(t, err)
	_, err = h.svc.CreateChallenge(h.ctx, "carol", "dave", "general")
	require.NoError(t, err)

	active, err := h.svc.ActiveFor(h.ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, h.svc.Do(h.ctx, func(r *Registry) error {
		all := r.Sessions()
		assert.Len(t, all, 3)
		for i := 1; i < len(all); i++ {
			assert.Less(t, all[i-1].ID, all[i].ID)
		}
		return nil
	}))

	require.NoError(t, h.svc.Close(h.ctx))
	assert.Equal(t, 0, h.len())

	h.advance(60 * time.Second)
	assert.NotContains(t, h.eventTypes(), session.EventTypeChallengeExpired, "close cancels every timer")
}

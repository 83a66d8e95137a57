// Package registry owns every live session and enforces that a pair of
// players has at most one live session at a time.
//
// A Registry is not safe for concurrent use. All calls are expected to run on
// the event loop (see Service), which also receives the expiry timer
// callbacks, so every read-modify-write runs without interleaving.
package registry

import (
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/rockpapercrane/internal/loop"
	"github.com/lox/rockpapercrane/internal/rules"
	"github.com/lox/rockpapercrane/internal/session"
	"github.com/lox/rockpapercrane/internal/sessionid"
)

// DefaultChallengeTimeout is how long a challenge waits for a response.
const DefaultChallengeTimeout = 60 * time.Second

// Config holds the game rules the registry applies to new sessions.
type Config struct {
	Variant          rules.Variant
	RematchPolicy    session.RematchPolicy
	ChallengeTimeout time.Duration
}

// DefaultConfig returns the upgrade variant with its observed rematch policy.
func DefaultConfig() Config {
	return Config{
		Variant:          rules.Upgrade,
		RematchPolicy:    session.DefaultRematchPolicy(rules.Upgrade),
		ChallengeTimeout: DefaultChallengeTimeout,
	}
}

// Scheduler accepts work to be run on the event loop. *loop.Loop
// implements it.
type Scheduler interface {
	Post(task loop.Task) error
}

// Directory knows which participant identities are bots.
type Directory interface {
	IsBot(participant string) bool
}

// DirectoryFunc adapts a function to Directory.
type DirectoryFunc func(participant string) bool

func (f DirectoryFunc) IsBot(participant string) bool { return f(participant) }

type noBots struct{}

func (noBots) IsBot(string) bool { return false }

// pairKey is the unordered pair of participants.
type pairKey struct {
	lo, hi string
}

func keyFor(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Registry is the process-wide store of live sessions.
type Registry struct {
	cfg       Config
	clock     quartz.Clock
	scheduler Scheduler
	directory Directory
	bus       session.EventBus
	ids       *sessionid.Generator
	logger    *log.Logger

	sessions map[string]*session.Session
	pairs    map[pairKey]string
	expiries map[string]*expiry
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock injects the clock used for timestamps and expiry timers.
func WithClock(clock quartz.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithDirectory injects the bot directory.
func WithDirectory(directory Directory) Option {
	return func(r *Registry) { r.directory = directory }
}

// WithEventBus injects the bus events are published on.
func WithEventBus(bus session.EventBus) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithIDGenerator injects the session ID generator.
func WithIDGenerator(ids *sessionid.Generator) Option {
	return func(r *Registry) { r.ids = ids }
}

// New constructs an empty registry.
func New(cfg Config, scheduler Scheduler, logger *log.Logger, opts ...Option) *Registry {
	if cfg.ChallengeTimeout <= 0 {
		cfg.ChallengeTimeout = DefaultChallengeTimeout
	}
	r := &Registry{
		cfg:       cfg,
		clock:     quartz.NewReal(),
		scheduler: scheduler,
		directory: noBots{},
		bus:       session.NewEventBus(),
		ids:       sessionid.NewGenerator(nil),
		logger:    logger.WithPrefix("registry"),
		sessions:  make(map[string]*session.Session),
		pairs:     make(map[pairKey]string),
		expiries:  make(map[string]*expiry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Events returns the bus that receives every session event.
func (r *Registry) Events() session.EventBus {
	return r.bus
}

// Config returns the rules applied to new sessions.
func (r *Registry) Config() Config {
	return r.cfg
}

// CreateChallenge opens a Proposed session between challenger and
// challenged and starts its expiry timer.
func (r *Registry) CreateChallenge(challenger, challenged, channelID string) (session.Snapshot, error) {
	now := r.clock.Now()
	s, err := session.Propose(session.Proposal{
		ID:              r.ids.New(challenger, challenged, now),
		Challenger:      challenger,
		Challenged:      challenged,
		ChannelID:       channelID,
		Variant:         r.cfg.Variant,
		ChallengedIsBot: r.directory.IsBot(challenged),
		CreatedAt:       now,
	})
	if err != nil {
		r.logger.Debug("Challenge rejected", "challenger", challenger, "challenged", challenged, "error", err)
		return session.Snapshot{}, err
	}
	if err := r.checkPairFree(challenger, challenged); err != nil {
		return session.Snapshot{}, err
	}

	r.insert(s)
	r.scheduleExpiry(s.ID())

	snap := s.Snapshot()
	r.logger.Info("Challenge created",
		"session", snap.ID,
		"challenger", challenger,
		"challenged", challenged,
		"channel", channelID,
		"variant", snap.Variant)
	r.bus.Publish(session.ChallengeCreated{Session: snap})
	return snap, nil
}

// Rematch opens a new session for the pair of a completed session. The
// configured RematchPolicy decides whether it needs to be accepted again.
func (r *Registry) Rematch(previous session.Snapshot, requester string) (session.Snapshot, error) {
	if previous.Has(requester) {
		if err := r.checkPairFree(previous.ParticipantA, previous.ParticipantB); err != nil {
			return session.Snapshot{}, err
		}
	}

	now := r.clock.Now()
	id := r.ids.New(requester, previous.Opponent(requester), now)
	s, err := session.Rematch(id, previous, requester, r.cfg.RematchPolicy, now)
	if err != nil {
		return session.Snapshot{}, err
	}

	r.insert(s)
	if s.Phase() == session.Proposed {
		r.scheduleExpiry(s.ID())
	}

	snap := s.Snapshot()
	r.logger.Info("Rematch created",
		"session", snap.ID,
		"previous", previous.ID,
		"requester", requester,
		"policy", r.cfg.RematchPolicy,
		"phase", snap.Phase)
	r.bus.Publish(session.ChallengeCreated{Session: snap, Rematch: true})
	return snap, nil
}

// Respond accepts or declines a challenge.
func (r *Registry) Respond(id, responder string, accept bool) (session.Snapshot, error) {
	return r.apply(id, func(s *session.Session) ([]session.Event, error) {
		return s.Respond(responder, accept)
	})
}

// SubmitChoice records a participant's choice by item name.
func (r *Registry) SubmitChoice(id, participant, itemName string) (session.Snapshot, error) {
	item, err := session.ParseItem(itemName)
	if err != nil {
		return session.Snapshot{}, err
	}
	return r.apply(id, func(s *session.Session) ([]session.Event, error) {
		return s.SubmitChoice(participant, item)
	})
}

// SubmitUpgrade applies the pending upgrader's pick by item name.
func (r *Registry) SubmitUpgrade(id, participant, itemName string) (session.Snapshot, error) {
	item, err := session.ParseItem(itemName)
	if err != nil {
		return session.Snapshot{}, err
	}
	return r.apply(id, func(s *session.Session) ([]session.Event, error) {
		return s.SubmitUpgrade(participant, item)
	})
}

// apply runs one state-machine operation. On success it cancels the expiry
// once the session has left Proposed, removes the session as soon as it
// reaches a terminal phase and then publishes the resulting events.
func (r *Registry) apply(id string, op func(*session.Session) ([]session.Event, error)) (session.Snapshot, error) {
	s, ok := r.sessions[id]
	if !ok {
		return session.Snapshot{}, session.ErrSessionNotFound
	}

	events, err := op(s)
	if err != nil {
		return session.Snapshot{}, err
	}

	if s.Phase() != session.Proposed {
		r.cancelExpiry(id)
	}
	if s.Phase().Terminal() {
		r.Remove(id)
		r.logger.Info("Session finished", "session", id, "phase", s.Phase())
	}

	for _, event := range events {
		r.logger.Debug("Publishing event", "session", id, "type", event.EventType())
		r.bus.Publish(event)
	}
	return s.Snapshot(), nil
}

// Get returns a snapshot of a live session.
func (r *Registry) Get(id string) (session.Snapshot, error) {
	s, ok := r.sessions[id]
	if !ok {
		return session.Snapshot{}, session.ErrSessionNotFound
	}
	return s.Snapshot(), nil
}

// Remove deletes a session and cancels its timer. Removing an unknown ID is
// a no-op because expiry and terminal transitions can both try.
func (r *Registry) Remove(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)

	a, b := s.Participants()
	key := keyFor(a, b)
	if r.pairs[key] == id {
		delete(r.pairs, key)
	}
	r.cancelExpiry(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Sessions returns snapshots of every live session ordered by ID.
func (r *Registry) Sessions() []session.Snapshot {
	snaps := make([]session.Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps
}

// ActiveFor returns the live sessions participant plays in.
func (r *Registry) ActiveFor(participant string) []session.Snapshot {
	var snaps []session.Snapshot
	for _, snap := range r.Sessions() {
		if snap.Has(participant) {
			snaps = append(snaps, snap)
		}
	}
	return snaps
}

// Close cancels every timer and forgets every session.
func (r *Registry) Close() {
	for id := range r.expiries {
		r.cancelExpiry(id)
	}
	count := len(r.sessions)
	r.sessions = make(map[string]*session.Session)
	r.pairs = make(map[pairKey]string)
	r.logger.Info("Registry closed", "dropped", count)
}

func (r *Registry) checkPairFree(a, b string) error {
	if existing, ok := r.pairs[keyFor(a, b)]; ok {
		r.logger.Debug("Duplicate session rejected", "existing", existing, "a", a, "b", b)
		return session.ErrDuplicateSession
	}
	return nil
}

func (r *Registry) insert(s *session.Session) {
	a, b := s.Participants()
	r.sessions[s.ID()] = s
	r.pairs[keyFor(a, b)] = s.ID()
}

package registry

import (
	"context"

	"github.com/lox/rockpapercrane/internal/loop"
	"github.com/lox/rockpapercrane/internal/session"
)

// Service exposes a Registry to other goroutines by running every call as a
// task on the event loop that owns it.
type Service struct {
	reg  *Registry
	loop *loop.Loop
}

// NewService binds reg to the loop it must be driven from.
func NewService(reg *Registry, l *loop.Loop) *Service {
	return &Service{reg: reg, loop: l}
}

// Registry returns the underlying registry. Only use it from loop tasks.
func (s *Service) Registry() *Registry {
	return s.reg
}

// Do runs fn on the loop with exclusive access to the registry.
func (s *Service) Do(ctx context.Context, fn func(*Registry) error) error {
	return s.loop.Do(ctx, func() error { return fn(s.reg) })
}

func (s *Service) snapshot(ctx context.Context, fn func(*Registry) (session.Snapshot, error)) (session.Snapshot, error) {
	var snap session.Snapshot
	err := s.Do(ctx, func(r *Registry) error {
		var err error
		snap, err = fn(r)
		return err
	})
	return snap, err
}

// CreateChallenge opens a proposed session between two players.
func (s *Service) CreateChallenge(ctx context.Context, challenger, challenged, channelID string) (session.Snapshot, error) {
	return s.snapshot(ctx, func(r *Registry) (session.Snapshot, error) {
		return r.CreateChallenge(challenger, challenged, channelID)
	})
}

// Respond accepts or declines a proposed session.
func (s *Service) Respond(ctx context.Context, id, responder string, accept bool) (session.Snapshot, error) {
	return s.snapshot(ctx, func(r *Registry) (session.Snapshot, error) {
		return r.Respond(id, responder, accept)
	})
}

// SubmitChoice locks in a participant's item for the current round.
func (s *Service) SubmitChoice(ctx context.Context, id, participant, item string) (session.Snapshot, error) {
	return s.snapshot(ctx, func(r *Registry) (session.Snapshot, error) {
		return r.SubmitChoice(id, participant, item)
	})
}

// SubmitUpgrade applies the pending upgrade of the round winner.
func (s *Service) SubmitUpgrade(ctx context.Context, id, participant, item string) (session.Snapshot, error) {
	return s.snapshot(ctx, func(r *Registry) (session.Snapshot, error) {
		return r.SubmitUpgrade(id, participant, item)
	})
}

// Rematch opens a new session for the pair of a completed game.
func (s *Service) Rematch(ctx context.Context, previous session.Snapshot, requester string) (session.Snapshot, error) {
	return s.snapshot(ctx, func(r *Registry) (session.Snapshot, error) {
		return r.Rematch(previous, requester)
	})
}

// Get returns a snapshot of a live session.
func (s *Service) Get(ctx context.Context, id string) (session.Snapshot, error) {
	return s.snapshot(ctx, func(r *Registry) (session.Snapshot, error) {
		return r.Get(id)
	})
}

// ActiveFor lists the live sessions of participant.
func (s *Service) ActiveFor(ctx context.Context, participant string) ([]session.Snapshot, error) {
	var snaps []session.Snapshot
	err := s.Do(ctx, func(r *Registry) error {
		snaps = r.ActiveFor(participant)
		return nil
	})
	return snaps, err
}

// Close tears the registry down on the loop.
func (s *Service) Close(ctx context.Context) error {
	return s.Do(ctx, func(r *Registry) error {
		r.Close()
		return nil
	})
}

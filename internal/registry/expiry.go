package registry

import (
	"github.com/coder/quartz"

	"github.com/lox/rockpapercrane/internal/session"
)

// expiry is the cancellation token of one challenge timer. Stopping the
// timer is best effort; the fire-time checks in fireExpiry are what keep a
// late timer harmless.
type expiry struct {
	cancelled bool
	timer     *quartz.Timer
}

func (r *Registry) scheduleExpiry(id string) {
	token := &expiry{}
	token.timer = r.clock.AfterFunc(r.cfg.ChallengeTimeout, func() {
		// Runs on the clock's goroutine: hand off to the loop, never touch
		// registry state here.
		if err := r.scheduler.Post(func() { r.fireExpiry(id, token) }); err != nil {
			r.logger.Debug("Dropping expiry, event loop closed", "session", id)
		}
	}, "registry", "expiry")
	r.expiries[id] = token
}

func (r *Registry) cancelExpiry(id string) {
	token, ok := r.expiries[id]
	if !ok {
		return
	}
	token.cancelled = true
	token.timer.Stop()
	delete(r.expiries, id)
}

func (r *Registry) fireExpiry(id string, token *expiry) {
	if token.cancelled {
		return
	}
	if r.expiries[id] == token {
		delete(r.expiries, id)
	}

	s, ok := r.sessions[id]
	if !ok || s.Phase() != session.Proposed {
		return
	}

	events, err := s.Expire()
	if err != nil {
		r.logger.Warn("Failed to expire session", "session", id, "error", err)
		return
	}
	r.Remove(id)
	r.logger.Info("Challenge expired", "session", id, "timeout", r.cfg.ChallengeTimeout)

	for _, event := range events {
		r.bus.Publish(event)
	}
}

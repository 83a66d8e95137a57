package server

import "github.com/lox/rockpapercrane/internal/session"

// history remembers the last completed session of every pair so players
// can ask for a rematch after the registry has dropped it. It is only
// touched from the event loop.
type history struct {
	byID   map[string]session.Snapshot
	byPair map[string]string
}

func newHistory() *history {
	return &history{
		byID:   make(map[string]session.Snapshot),
		byPair: make(map[string]string),
	}
}

func pairOf(snap session.Snapshot) string {
	a, b := snap.ParticipantA, snap.ParticipantB
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func (h *history) remember(snap session.Snapshot) {
	key := pairOf(snap)
	if previous, ok := h.byPair[key]; ok {
		delete(h.byID, previous)
	}
	h.byPair[key] = snap.ID
	h.byID[snap.ID] = snap
}

func (h *history) lookup(id string) (session.Snapshot, bool) {
	snap, ok := h.byID[id]
	return snap, ok
}

// forget drops the pair's finished game once a rematch has started.
func (h *history) forget(snap session.Snapshot) {
	key := pairOf(snap)
	if h.byPair[key] == snap.ID {
		delete(h.byPair, key)
	}
	delete(h.byID, snap.ID)
}

package session

import (
	"time"

	"github.com/lox/rockpapercrane/internal/rules"
)

// Snapshot is an immutable copy of a session's public state. Pending
// choices are only reported as "has chosen" so nothing leaks before both
// players have committed.
type Snapshot struct {
	ID              string           `json:"id"`
	ParticipantA    string           `json:"participantA"`
	ParticipantB    string           `json:"participantB"`
	ChannelID       string           `json:"channelId"`
	Variant         rules.Variant    `json:"variant"`
	Phase           Phase            `json:"phase"`
	Round           int              `json:"round"`
	ChoseA          bool             `json:"choseA"`
	ChoseB          bool             `json:"choseB"`
	UpgradesA       rules.UpgradeSet `json:"upgradesA"`
	UpgradesB       rules.UpgradeSet `json:"upgradesB"`
	WinsA           int              `json:"winsA"`
	WinsB           int              `json:"winsB"`
	Ties            int              `json:"ties"`
	PendingUpgrader string           `json:"pendingUpgrader,omitempty"`
	Winner          string           `json:"winner,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:           s.id,
		ParticipantA: s.participants[sideA],
		ParticipantB: s.participants[sideB],
		ChannelID:    s.channelID,
		Variant:      s.variant,
		Phase:        s.phase,
		Round:        s.round,
		ChoseA:       s.choices[sideA] != rules.NoItem,
		ChoseB:       s.choices[sideB] != rules.NoItem,
		UpgradesA:    s.upgrades[sideA],
		UpgradesB:    s.upgrades[sideB],
		WinsA:        s.wins[sideA],
		WinsB:        s.wins[sideB],
		Ties:         s.ties,
		CreatedAt:    s.createdAt,
	}
	if upgrader, ok := s.PendingUpgrader(); ok {
		snap.PendingUpgrader = upgrader
	}
	if winner, ok := s.Winner(); ok {
		snap.Winner = winner
	}
	return snap
}

// Has reports whether participant plays in the snapshot's session.
func (s Snapshot) Has(participant string) bool {
	return participant != "" && (participant == s.ParticipantA || participant == s.ParticipantB)
}

// Opponent returns the other participant of the snapshot.
func (s Snapshot) Opponent(participant string) string {
	if participant == s.ParticipantA {
		return s.ParticipantB
	}
	return s.ParticipantA
}

// UpgradesOf returns the upgrade set of participant.
func (s Snapshot) UpgradesOf(participant string) rules.UpgradeSet {
	if participant == s.ParticipantB {
		return s.UpgradesB
	}
	return s.UpgradesA
}

package session

import "fmt"

// Phase is the state-machine state of a session.
type Phase uint8

const (
	Proposed Phase = iota
	Playing
	Upgrading
	Completed
	Declined
	Expired
)

var phaseNames = [...]string{
	Proposed:  "proposed",
	Playing:   "playing",
	Upgrading: "upgrading",
	Completed: "completed",
	Declined:  "declined",
	Expired:   "expired",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	for i, name := range phaseNames {
		if name == string(text) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Terminal reports whether the phase accepts no further operations.
func (p Phase) Terminal() bool {
	return p == Completed || p == Declined || p == Expired
}

// Operation is an input to the state machine.
type Operation uint8

const (
	OpAccept Operation = iota
	OpDecline
	OpChoose
	OpUpgrade
	OpExpire
	// OpRematch starts a fresh direct rematch without a handshake.
	OpRematch
)

func (o Operation) String() string {
	switch o {
	case OpAccept:
		return "accept"
	case OpDecline:
		return "decline"
	case OpChoose:
		return "choose"
	case OpUpgrade:
		return "upgrade"
	case OpExpire:
		return "expire"
	case OpRematch:
		return "rematch"
	default:
		return fmt.Sprintf("op(%d)", o)
	}
}

// transitions is the single source of legality: for each phase, the
// operations it accepts and the phases each may lead to. Anything absent is
// rejected with ErrWrongPhase.
var transitions = map[Phase]map[Operation][]Phase{
	Proposed: {
		OpAccept:  {Playing},
		OpDecline: {Declined},
		OpExpire:  {Expired},
		OpRematch: {Playing},
	},
	Playing: {
		OpChoose: {Playing, Upgrading, Completed},
		OpExpire: {Expired},
	},
	Upgrading: {
		OpUpgrade: {Playing, Completed},
		OpExpire:  {Expired},
	},
}

// Allows reports whether op is legal in phase p.
func (p Phase) Allows(op Operation) bool {
	_, ok := transitions[p][op]
	return ok
}

// canMove reports whether op may move p to next.
func (p Phase) canMove(op Operation, next Phase) bool {
	for _, candidate := range transitions[p][op] {
		if candidate == next {
			return true
		}
	}
	return false
}

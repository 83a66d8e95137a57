package session

import (
	"fmt"
	"time"

	"github.com/lox/rockpapercrane/internal/rules"
)

type side int

const (
	sideA  side = 0
	sideB  side = 1
	noSide side = -1
)

func (s side) other() side {
	return 1 - s
}

// Session is one match between a challenger (participant A) and the
// challenged player (participant B). It is not safe for concurrent use; the
// registry serialises every call through its event loop.
type Session struct {
	id           string
	participants [2]string
	channelID    string
	variant      rules.Variant
	createdAt    time.Time

	phase    Phase
	round    int
	choices  [2]rules.Item
	upgrades [2]rules.UpgradeSet
	wins     [2]int
	ties     int
	pending  side
	winner   side
}

// Proposal carries everything needed to open a challenge.
type Proposal struct {
	ID              string
	Challenger      string
	Challenged      string
	ChannelID       string
	Variant         rules.Variant
	ChallengedIsBot bool
	CreatedAt       time.Time
}

// Propose validates a challenge and returns a session in Proposed.
func Propose(p Proposal) (*Session, error) {
	if p.Challenger == "" || p.Challenged == "" {
		return nil, errorf(ErrNotParticipant, "both players are required to start a game")
	}
	if p.Challenger == p.Challenged {
		return nil, ErrSelfChallenge
	}
	if p.ChallengedIsBot {
		return nil, ErrBotOpponent
	}
	return newSession(p.ID, p.Challenger, p.Challenged, p.ChannelID, p.Variant, p.CreatedAt), nil
}

func newSession(id, a, b, channelID string, variant rules.Variant, createdAt time.Time) *Session {
	return &Session{
		id:           id,
		participants: [2]string{a, b},
		channelID:    channelID,
		variant:      variant,
		createdAt:    createdAt,
		phase:        Proposed,
		round:        1,
		pending:      noSide,
		winner:       noSide,
	}
}

// RematchPolicy decides how a rematch between the same pair starts.
type RematchPolicy uint8

const (
	// HandshakeRematch opens the rematch in Proposed; the other player has
	// to accept it like any challenge.
	HandshakeRematch RematchPolicy = iota
	// DirectRematch skips the handshake and starts the rematch in Playing.
	DirectRematch
)

func (p RematchPolicy) String() string {
	if p == DirectRematch {
		return "direct"
	}
	return "handshake"
}

// ParseRematchPolicy converts a configuration value into a policy.
func ParseRematchPolicy(name string) (RematchPolicy, error) {
	switch name {
	case "handshake":
		return HandshakeRematch, nil
	case "direct":
		return DirectRematch, nil
	default:
		return HandshakeRematch, fmt.Errorf("unknown rematch policy %q", name)
	}
}

// DefaultRematchPolicy keeps the observed behaviour of each variant: the
// classic game asks again, the upgrade game jumps straight into play.
func DefaultRematchPolicy(v rules.Variant) RematchPolicy {
	if v.HasUpgrades() {
		return DirectRematch
	}
	return HandshakeRematch
}

// Rematch opens a fresh session for the pair of a completed game. The
// requester becomes the challenger.
func Rematch(id string, previous Snapshot, requester string, policy RematchPolicy, now time.Time) (*Session, error) {
	var opponent string
	switch requester {
	case previous.ParticipantA:
		opponent = previous.ParticipantB
	case previous.ParticipantB:
		opponent = previous.ParticipantA
	default:
		return nil, errorf(ErrNotParticipant, "only the original players can start a new game")
	}
	if previous.Phase != Completed {
		return nil, errorf(ErrWrongPhase, "a rematch can only follow a finished game")
	}

	s := newSession(id, requester, opponent, previous.ChannelID, previous.Variant, now)
	if policy == DirectRematch {
		s.moveTo(OpRematch, Playing)
	}
	return s, nil
}

func (s *Session) ID() string { return s.id }
func (s *Session) Phase() Phase { return s.phase }
func (s *Session) Round() int { return s.round }
func (s *Session) ChannelID() string { return s.channelID }
func (s *Session) Variant() rules.Variant { return s.variant }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) Participants() (a, b string) { return s.participants[0], s.participants[1] }

func (s *Session) sideOf(participant string) (side, bool) {
	switch participant {
	case s.participants[sideA]:
		return sideA, true
	case s.participants[sideB]:
		return sideB, true
	default:
		return noSide, false
	}
}

// Has reports whether participant plays in this session.
func (s *Session) Has(participant string) bool {
	_, ok := s.sideOf(participant)
	return ok
}

// Opponent returns the other participant.
func (s *Session) Opponent(participant string) (string, bool) {
	sd, ok := s.sideOf(participant)
	if !ok {
		return "", false
	}
	return s.participants[sd.other()], true
}

// HasChosen reports whether participant has locked a choice this round.
func (s *Session) HasChosen(participant string) bool {
	sd, ok := s.sideOf(participant)
	return ok && s.choices[sd] != rules.NoItem
}

// Upgrades returns the participant's upgrade set.
func (s *Session) Upgrades(participant string) rules.UpgradeSet {
	sd, ok := s.sideOf(participant)
	if !ok {
		return rules.UpgradeSet{}
	}
	return s.upgrades[sd]
}

// AvailableUpgrades lists the base items participant may still upgrade.
func (s *Session) AvailableUpgrades(participant string) []rules.Item {
	if !s.variant.HasUpgrades() {
		return nil
	}
	return s.Upgrades(participant).Available()
}

// UpgradeStatus describes participant's progress, e.g. "2/4 upgrades (Wall, Fire)".
func (s *Session) UpgradeStatus(participant string) string {
	return s.Upgrades(participant).String()
}

// PendingUpgrader returns the participant who must pick an upgrade.
func (s *Session) PendingUpgrader() (string, bool) {
	if s.pending == noSide {
		return "", false
	}
	return s.participants[s.pending], true
}

// Winner returns the overall winner once the session is Completed.
func (s *Session) Winner() (string, bool) {
	if s.phase != Completed || s.winner == noSide {
		return "", false
	}
	return s.participants[s.winner], true
}

// moveTo commits a phase change. Every caller has already checked legality
// against the transition table, so an illegal move is a programming error.
func (s *Session) moveTo(op Operation, next Phase) {
	if !s.phase.canMove(op, next) {
		panic(fmt.Sprintf("session %s: illegal transition %s --%s--> %s", s.id, s.phase, op, next))
	}
	s.phase = next
}

func (s *Session) checkPhase(op Operation) error {
	if s.phase.Allows(op) {
		return nil
	}
	if s.phase.Terminal() {
		return errorf(ErrSessionClosed, "this game is already %s", s.phase)
	}
	return errorf(ErrWrongPhase, "cannot %s while the game is %s", op, s.phase)
}

// Respond accepts or declines a Proposed challenge. Only the challenged
// participant may respond.
func (s *Session) Respond(responder string, accept bool) ([]Event, error) {
	op := OpDecline
	if accept {
		op = OpAccept
	}
	if err := s.checkPhase(op); err != nil {
		return nil, err
	}
	if responder != s.participants[sideB] {
		return nil, ErrUnauthorizedResponder
	}

	if !accept {
		s.moveTo(OpDecline, Declined)
		return []Event{ChallengeDeclined{Session: s.Snapshot()}}, nil
	}

	s.moveTo(OpAccept, Playing)
	s.round = 1
	return []Event{ChallengeAccepted{Session: s.Snapshot()}}, nil
}

// SubmitChoice records a participant's hidden choice for the current round.
// Once both choices are in, the round resolves immediately.
func (s *Session) SubmitChoice(participant string, item rules.Item) ([]Event, error) {
	sd, ok := s.sideOf(participant)
	if !ok {
		return nil, ErrNotParticipant
	}
	if err := s.checkPhase(OpChoose); err != nil {
		return nil, err
	}
	if !s.variant.Allows(item) {
		return nil, errorf(ErrInvalidItem, "%s is not a valid choice in a %s game", item, s.variant)
	}
	if s.choices[sd] != rules.NoItem {
		return nil, ErrAlreadyChose
	}

	s.choices[sd] = item
	if s.choices[sd.other()] == rules.NoItem {
		return []Event{ChoiceLocked{Session: s.Snapshot(), Participant: participant}}, nil
	}
	return s.resolveRound(), nil
}

func (s *Session) resolveRound() []Event {
	choiceA, choiceB := s.choices[sideA], s.choices[sideB]
	effA := rules.EffectiveChoice(choiceA, s.upgrades[sideA])
	effB := rules.EffectiveChoice(choiceB, s.upgrades[sideB])
	outcome := rules.Resolve(effA, effB)

	resolved := RoundResolved{
		Round:      s.round,
		ChoiceA:    choiceA,
		ChoiceB:    choiceB,
		EffectiveA: effA,
		EffectiveB: effB,
		Outcome:    outcome,
	}

	s.choices = [2]rules.Item{}
	s.round++

	if outcome == rules.Tie {
		s.ties++
		s.moveTo(OpChoose, Playing)
		resolved.Session = s.Snapshot()
		return []Event{resolved}
	}

	winner := sideA
	if outcome == rules.BWins {
		winner = sideB
	}
	s.wins[winner]++
	resolved.Winner = s.participants[winner]

	if s.variant.HasUpgrades() {
		s.moveTo(OpChoose, Upgrading)
		s.pending = winner
		resolved.Session = s.Snapshot()
		return []Event{resolved}
	}

	s.moveTo(OpChoose, Completed)
	s.winner = winner
	snap := s.Snapshot()
	resolved.Session = snap
	return []Event{resolved, s.completed(snap)}
}

// SubmitUpgrade applies the pending upgrader's pick.
func (s *Session) SubmitUpgrade(participant string, item rules.Item) ([]Event, error) {
	sd, ok := s.sideOf(participant)
	if !ok {
		return nil, ErrNotParticipant
	}
	if err := s.checkPhase(OpUpgrade); err != nil {
		return nil, err
	}
	if sd != s.pending {
		return nil, ErrNotYourTurn
	}
	if !s.variant.Allows(item) {
		return nil, errorf(ErrInvalidItem, "%s cannot be upgraded", item)
	}
	if s.upgrades[sd].Has(item) {
		return nil, errorf(ErrInvalidUpgradeItem, "%s is already upgraded", item)
	}

	upgrades, err := s.upgrades[sd].With(item)
	if err != nil {
		return nil, errorf(ErrInvalidItem, "%v", err)
	}
	upgraded, _ := rules.UpgradeOf(item)

	s.upgrades[sd] = upgrades
	s.pending = noSide

	applied := UpgradeApplied{Participant: participant, Base: item, Upgraded: upgraded}
	if upgrades.Complete() {
		s.moveTo(OpUpgrade, Completed)
		s.winner = sd
		snap := s.Snapshot()
		applied.Session = snap
		return []Event{applied, s.completed(snap)}, nil
	}

	s.moveTo(OpUpgrade, Playing)
	applied.Session = s.Snapshot()
	return []Event{applied}, nil
}

// Expire abandons a live session.
func (s *Session) Expire() ([]Event, error) {
	if err := s.checkPhase(OpExpire); err != nil {
		return nil, err
	}
	s.moveTo(OpExpire, Expired)
	s.pending = noSide
	return []Event{ChallengeExpired{Session: s.Snapshot()}}, nil
}

func (s *Session) completed(snap Snapshot) GameCompleted {
	return GameCompleted{
		Session: snap,
		Winner:  s.participants[s.winner],
		WinsA:   s.wins[sideA],
		WinsB:   s.wins[sideB],
		Ties:    s.ties,
	}
}

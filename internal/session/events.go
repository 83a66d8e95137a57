package session

import "github.com/lox/rockpapercrane/internal/rules"

// EventType represents a session event type with type safety
type EventType string

// EventType constants for session domain events
const (
	EventTypeChallengeCreated  EventType = "challenge_created"
	EventTypeChallengeAccepted EventType = "challenge_accepted"
	EventTypeChallengeDeclined EventType = "challenge_declined"
	EventTypeChallengeExpired  EventType = "challenge_expired"
	EventTypeChoiceLocked      EventType = "choice_locked"
	EventTypeRoundResolved     EventType = "round_resolved"
	EventTypeUpgradeApplied    EventType = "upgrade_applied"
	EventTypeGameCompleted     EventType = "game_completed"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// Event is anything the engine reports back to the presentation layer.
// Every event carries the snapshot taken right after the transition.
type Event interface {
	EventType() EventType
	Snapshot() Snapshot
}

// ChallengeCreated is published when a challenge or rematch is opened.
type ChallengeCreated struct {
	Session Snapshot
	Rematch bool
}

func (e ChallengeCreated) EventType() EventType { return EventTypeChallengeCreated }
func (e ChallengeCreated) Snapshot() Snapshot { return e.Session }

// ChallengeAccepted is published when the challenged player accepts.
type ChallengeAccepted struct {
	Session Snapshot
}

func (e ChallengeAccepted) EventType() EventType { return EventTypeChallengeAccepted }
func (e ChallengeAccepted) Snapshot() Snapshot { return e.Session }

// ChallengeDeclined is published when the challenged player declines.
type ChallengeDeclined struct {
	Session Snapshot
}

func (e ChallengeDeclined) EventType() EventType { return EventTypeChallengeDeclined }
func (e ChallengeDeclined) Snapshot() Snapshot { return e.Session }

// ChallengeExpired is published when a session times out.
type ChallengeExpired struct {
	Session Snapshot
}

func (e ChallengeExpired) EventType() EventType { return EventTypeChallengeExpired }
func (e ChallengeExpired) Snapshot() Snapshot { return e.Session }

// ChoiceLocked is published when one participant has chosen and the other
// has not. The item itself is never included.
type ChoiceLocked struct {
	Session     Snapshot
	Participant string
}

func (e ChoiceLocked) EventType() EventType { return EventTypeChoiceLocked }
func (e ChoiceLocked) Snapshot() Snapshot { return e.Session }

// RoundResolved is published once both choices are in.
type RoundResolved struct {
	Session    Snapshot
	Round      int
	ChoiceA    rules.Item
	ChoiceB    rules.Item
	EffectiveA rules.Item
	EffectiveB rules.Item
	Outcome    rules.Outcome
	Winner     string // empty on a tie
}

func (e RoundResolved) EventType() EventType { return EventTypeRoundResolved }
func (e RoundResolved) Snapshot() Snapshot { return e.Session }

// UpgradeApplied is published when the pending upgrader picks an item.
type UpgradeApplied struct {
	Session     Snapshot
	Participant string
	Base        rules.Item
	Upgraded    rules.Item
}

func (e UpgradeApplied) EventType() EventType { return EventTypeUpgradeApplied }
func (e UpgradeApplied) Snapshot() Snapshot { return e.Session }

// GameCompleted is published when a session reaches Completed.
type GameCompleted struct {
	Session Snapshot
	Winner  string
	WinsA   int
	WinsB   int
	Ties    int
}

func (e GameCompleted) EventType() EventType { return EventTypeGameCompleted }
func (e GameCompleted) Snapshot() Snapshot { return e.Session }

// EventSubscriber can subscribe to session events
type EventSubscriber interface {
	OnEvent(event Event)
}

// SubscriberFunc adapts a function to EventSubscriber.
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnEvent(event Event) { f(event) }

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event Event)
}

// SimpleEventBus is a basic in-memory event bus. Like the sessions it
// serves, it is only used from the event loop.
type SimpleEventBus struct {
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make([]EventSubscriber, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber from receiving events
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	for i, sub := range bus.subscribers {
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers
func (bus *SimpleEventBus) Publish(event Event) {
	for _, subscriber := range bus.subscribers {
		subscriber.OnEvent(event)
	}
}

// Package render turns session events and snapshots into the chat lines
// players read.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/lox/rockpapercrane/internal/rules"
	"github.com/lox/rockpapercrane/internal/session"
)

// Options controls how events are formatted for different contexts
type Options struct {
	Emoji   bool            // Prefix item names with their glyph
	Profile termenv.Profile // Colour profile; termenv.Ascii for plain text
}

// PlainOptions renders undecorated text, as sent over the wire.
func PlainOptions() Options {
	return Options{Profile: termenv.Ascii}
}

// Formatter provides centralized formatting for all session events
type Formatter struct {
	opts   Options
	styles Styles
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(opts Options) *Formatter {
	return &Formatter{opts: opts, styles: NewStyles(opts.Profile)}
}

func (f *Formatter) paint(style lipgloss.Style, text string) string {
	if f.opts.Profile == termenv.Ascii {
		return text
	}
	return style.Render(text)
}

func (f *Formatter) player(id string) string {
	return f.paint(f.styles.Player, id)
}

func (f *Formatter) item(item rules.Item) string {
	text := item.Title()
	if f.opts.Emoji {
		text = item.Emoji() + " " + text
	}
	return f.paint(f.styles.Item, text)
}

func (f *Formatter) items(items []rules.Item) string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, f.item(item))
	}
	return strings.Join(names, ", ")
}

// FormatEvent renders any session event.
func (f *Formatter) FormatEvent(event session.Event) string {
	switch e := event.(type) {
	case session.ChallengeCreated:
		return f.FormatChallengeCreated(e)
	case session.ChallengeAccepted:
		return f.FormatChallengeAccepted(e)
	case session.ChallengeDeclined:
		return fmt.Sprintf("%s declined the challenge from %s.",
			f.player(e.Session.ParticipantB), f.player(e.Session.ParticipantA))
	case session.ChallengeExpired:
		return f.paint(f.styles.Warning, fmt.Sprintf("The challenge from %s to %s expired.",
			e.Session.ParticipantA, e.Session.ParticipantB))
	case session.ChoiceLocked:
		return fmt.Sprintf("%s has locked in a choice. Waiting for %s.",
			f.player(e.Participant), f.player(e.Session.Opponent(e.Participant)))
	case session.RoundResolved:
		return f.FormatRoundResolved(e)
	case session.UpgradeApplied:
		return f.FormatUpgradeApplied(e)
	case session.GameCompleted:
		return f.FormatGameCompleted(e)
	default:
		return fmt.Sprintf("%s: %s", event.EventType(), event.Snapshot().ID)
	}
}

// FormatChallengeCreated announces a challenge or a rematch.
func (f *Formatter) FormatChallengeCreated(e session.ChallengeCreated) string {
	snap := e.Session
	a, b := f.player(snap.ParticipantA), f.player(snap.ParticipantB)

	if e.Rematch && snap.Phase == session.Playing {
		return fmt.Sprintf("Rematch! %s vs %s, round %d. Make your choices.", a, b, snap.Round)
	}

	verb := "challenged"
	if e.Rematch {
		verb = "wants a rematch with"
	}
	return fmt.Sprintf("%s %s %s to %s rock paper crane. %s, accept or decline.",
		a, verb, b, article(snap.Variant), b)
}

// FormatChallengeAccepted starts the first round.
func (f *Formatter) FormatChallengeAccepted(e session.ChallengeAccepted) string {
	snap := e.Session
	return fmt.Sprintf("%s accepted! Round %d: %s and %s, make your choices (%s).",
		f.player(snap.ParticipantB), snap.Round,
		f.player(snap.ParticipantA), f.player(snap.ParticipantB),
		f.items(snap.Variant.BaseItems()))
}

// FormatRoundResolved reveals both choices and the outcome.
func (f *Formatter) FormatRoundResolved(e session.RoundResolved) string {
	snap := e.Session
	var b strings.Builder

	fmt.Fprintf(&b, "Round %d: %s %s vs %s %s. ",
		e.Round,
		f.player(snap.ParticipantA), f.choice(e.ChoiceA, e.EffectiveA),
		f.player(snap.ParticipantB), f.choice(e.ChoiceB, e.EffectiveB))

	if e.Outcome == rules.Tie {
		b.WriteString(f.paint(f.styles.Info, "It's a tie!"))
		if snap.Phase == session.Playing {
			fmt.Fprintf(&b, " Round %d: choose again.", snap.Round)
		}
		return b.String()
	}

	fmt.Fprintf(&b, "%s wins the round!", f.player(e.Winner))
	if snap.Phase == session.Upgrading {
		fmt.Fprintf(&b, " %s, pick an upgrade: %s.",
			f.player(e.Winner), f.items(snap.UpgradesOf(e.Winner).Available()))
	}
	return b.String()
}

func (f *Formatter) choice(base, effective rules.Item) string {
	if base == effective {
		return f.item(base)
	}
	return fmt.Sprintf("%s (%s)", f.item(effective), base.Title())
}

// FormatUpgradeApplied reports an unlocked upgrade and the next round.
func (f *Formatter) FormatUpgradeApplied(e session.UpgradeApplied) string {
	snap := e.Session
	text := fmt.Sprintf("%s upgraded %s to %s. %s.",
		f.player(e.Participant), f.item(e.Base), f.item(e.Upgraded),
		snap.UpgradesOf(e.Participant))
	if snap.Phase == session.Playing {
		text += fmt.Sprintf(" Round %d: make your choices.", snap.Round)
	}
	return text
}

// FormatGameCompleted announces the winner and the final score.
func (f *Formatter) FormatGameCompleted(e session.GameCompleted) string {
	snap := e.Session
	return fmt.Sprintf("%s Final score: %s %d, %s %d, ties %d.",
		f.paint(f.styles.Success, e.Winner+" wins the game!"),
		snap.ParticipantA, e.WinsA, snap.ParticipantB, e.WinsB, e.Ties)
}

// FormatSnapshot renders a multi-line status block for a session.
func (f *Formatter) FormatSnapshot(snap session.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", f.paint(f.styles.Header, fmt.Sprintf(" %s vs %s ", snap.ParticipantA, snap.ParticipantB)))
	fmt.Fprintf(&b, "Game: %s\n", snap.ID)
	fmt.Fprintf(&b, "Rules: %s\n", snap.Variant)
	fmt.Fprintf(&b, "Phase: %s, round %d\n", snap.Phase, snap.Round)
	fmt.Fprintf(&b, "Score: %s %d, %s %d, ties %d\n",
		snap.ParticipantA, snap.WinsA, snap.ParticipantB, snap.WinsB, snap.Ties)

	if snap.Variant.HasUpgrades() {
		fmt.Fprintf(&b, "%s: %s\n", snap.ParticipantA, snap.UpgradesA)
		fmt.Fprintf(&b, "%s: %s\n", snap.ParticipantB, snap.UpgradesB)
	}

	switch snap.Phase {
	case session.Playing:
		fmt.Fprintf(&b, "Waiting for: %s\n", strings.Join(waitingFor(snap), ", "))
	case session.Upgrading:
		fmt.Fprintf(&b, "Waiting for: %s to upgrade\n", snap.PendingUpgrader)
	case session.Completed:
		fmt.Fprintf(&b, "Winner: %s\n", snap.Winner)
	}
	return b.String()
}

// FormatError renders an error reply for the player who caused it.
func (f *Formatter) FormatError(code session.Code, message string) string {
	return f.paint(f.styles.Error, fmt.Sprintf("%s (%s)", message, code))
}

func waitingFor(snap session.Snapshot) []string {
	var waiting []string
	if !snap.ChoseA {
		waiting = append(waiting, snap.ParticipantA)
	}
	if !snap.ChoseB {
		waiting = append(waiting, snap.ParticipantB)
	}
	return waiting
}

func article(v rules.Variant) string {
	if v.HasUpgrades() {
		return "an upgrade game of"
	}
	return "a classic game of"
}

package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lox/rockpapercrane/internal/rules"
)

// CommandKind identifies what a line of input asks for.
type CommandKind int

const (
	CommandHelp CommandKind = iota
	CommandChallenge
	CommandAccept
	CommandDecline
	CommandChoose
	CommandUpgrade
	CommandRematch
	CommandList
	CommandQuit
)

var commandNames = map[CommandKind]string{
	CommandHelp:      "help",
	CommandChallenge: "challenge",
	CommandAccept:    "accept",
	CommandDecline:   "decline",
	CommandChoose:    "choose",
	CommandUpgrade:   "upgrade",
	CommandRematch:   "rematch",
	CommandList:      "list",
	CommandQuit:      "quit",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Command is a parsed line of input. Argument holds the opponent for
// challenges and the item for choices and upgrades. An empty SessionID
// means the session that changed last.
type Command struct {
	Kind      CommandKind
	Argument  string
	SessionID string
}

// ErrEmptyCommand is returned for blank input.
var ErrEmptyCommand = errors.New("empty command")

var aliases = map[string]CommandKind{
	"help":      CommandHelp,
	"?":         CommandHelp,
	"challenge": CommandChallenge,
	"c":         CommandChallenge,
	"accept":    CommandAccept,
	"a":         CommandAccept,
	"decline":   CommandDecline,
	"d":         CommandDecline,
	"choose":    CommandChoose,
	"play":      CommandChoose,
	"upgrade":   CommandUpgrade,
	"u":         CommandUpgrade,
	"rematch":   CommandRematch,
	"r":         CommandRematch,
	"list":      CommandList,
	"ls":        CommandList,
	"quit":      CommandQuit,
	"exit":      CommandQuit,
	"q":         CommandQuit,
}

// ParseCommand parses one line typed by the player. Command words and items
// are case-insensitive; player and session IDs are kept as typed. A bare
// item name is shorthand for choosing it.
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, ErrEmptyCommand
	}

	name := strings.ToLower(fields[0])
	kind, ok := aliases[name]
	if !ok {
		if _, err := rules.ParseItem(name); err == nil {
			return withSession(Command{Kind: CommandChoose, Argument: name}, fields[1:])
		}
		return Command{}, fmt.Errorf("unknown command %q, type help for a list", fields[0])
	}
	args := fields[1:]

	switch kind {
	case CommandChallenge:
		if len(args) != 1 {
			return Command{}, errors.New("usage: challenge <player>")
		}
		return Command{Kind: kind, Argument: args[0]}, nil

	case CommandChoose, CommandUpgrade:
		if len(args) == 0 || len(args) > 2 {
			return Command{}, fmt.Errorf("usage: %s <item> [session]", kind)
		}
		return withSession(Command{Kind: kind, Argument: strings.ToLower(args[0])}, args[1:])

	case CommandAccept, CommandDecline, CommandRematch:
		return withSession(Command{Kind: kind}, args)

	default:
		if len(args) > 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", kind)
		}
		return Command{Kind: kind}, nil
	}
}

func withSession(cmd Command, args []string) (Command, error) {
	switch len(args) {
	case 0:
		return cmd, nil
	case 1:
		cmd.SessionID = args[0]
		return cmd, nil
	default:
		return Command{}, fmt.Errorf("too many arguments for %s", cmd.Kind)
	}
}

// helpText lists the commands understood by ParseCommand.
var helpText = []string{
	"challenge <player>       invite a player to a game",
	"accept [session]         accept a challenge",
	"decline [session]        decline a challenge",
	"choose <item> [session]  lock in rock, paper or scissors (or just type the item)",
	"upgrade <item> [session] upgrade a base item after winning a round",
	"rematch [session]        ask for a rematch of a finished game",
	"list                     show your live sessions",
	"quit                     leave",
	"Without a session ID, commands apply to the game that changed last.",
}

package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Item is a single throwable item. The zero value is NoItem.
type Item uint8

const (
	NoItem Item = iota
	Rock
	Paper
	Scissors
	Bomb
	Wall
	Cannon
	Fire
	Clay
)

// ErrUnknownItem is returned when an item name cannot be parsed.
var ErrUnknownItem = errors.New("unknown item")

var itemNames = [...]string{
	NoItem:   "",
	Rock:     "rock",
	Paper:    "paper",
	Scissors: "scissors",
	Bomb:     "bomb",
	Wall:     "wall",
	Cannon:   "cannon",
	Fire:     "fire",
	Clay:     "clay",
}

var itemEmoji = [...]string{
	NoItem:   "❓",
	Rock:     "🪨",
	Paper:    "📄",
	Scissors: "✂️",
	Bomb:     "💣",
	Wall:     "🧱",
	Cannon:   "🔫",
	Fire:     "🔥",
	Clay:     "🏺",
}

// AllItems lists every item of the upgrade domain in declaration order.
var AllItems = []Item{Rock, Paper, Scissors, Bomb, Wall, Cannon, Fire, Clay}

// String returns the lower-case wire name of the item.
func (i Item) String() string {
	if int(i) < len(itemNames) {
		return itemNames[i]
	}
	return fmt.Sprintf("item(%d)", i)
}

// Title returns the capitalised display name, e.g. "Scissors".
func (i Item) Title() string {
	name := i.String()
	if name == "" {
		return "?"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Emoji returns the display glyph used by chat renderers.
func (i Item) Emoji() string {
	if int(i) < len(itemEmoji) {
		return itemEmoji[i]
	}
	return itemEmoji[NoItem]
}

// Valid reports whether i is one of the eight known items.
func (i Item) Valid() bool {
	return i >= Rock && i <= Clay
}

// IsBase reports whether the item can be submitted directly.
func (i Item) IsBase() bool {
	return i >= Rock && i <= Bomb
}

// MarshalText implements encoding.TextMarshaler.
func (i Item) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Item) UnmarshalText(text []byte) error {
	item, err := ParseItem(string(text))
	if err != nil {
		return err
	}
	*i = item
	return nil
}

// ParseItem converts a case-insensitive item name into an Item.
func ParseItem(name string) (Item, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, item := range AllItems {
		if itemNames[item] == normalized {
			return item, nil
		}
	}
	return NoItem, fmt.Errorf("%w: %q", ErrUnknownItem, name)
}

package rules

import (
	"fmt"
	"strings"
)

// Variant selects the rule set a session is played under.
type Variant uint8

const (
	// Classic is three-item rock/paper/scissors decided by a single
	// decisive round.
	Classic Variant = iota
	// Upgrade adds bomb and the four advanced items; round winners unlock
	// upgrades and the first player with all four wins.
	Upgrade
)

func (v Variant) String() string {
	switch v {
	case Classic:
		return "classic"
	case Upgrade:
		return "upgrade"
	default:
		return fmt.Sprintf("variant(%d)", v)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Variant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Variant) UnmarshalText(text []byte) error {
	parsed, err := ParseVariant(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVariant converts a configuration value into a Variant.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "classic", "base":
		return Classic, nil
	case "upgrade", "crane":
		return Upgrade, nil
	default:
		return Classic, fmt.Errorf("unknown variant %q", name)
	}
}

// BaseItems lists the items a participant may submit.
func (v Variant) BaseItems() []Item {
	if v == Upgrade {
		return []Item{Rock, Paper, Scissors, Bomb}
	}
	return []Item{Rock, Paper, Scissors}
}

// Domain lists every item that can appear in a resolution.
func (v Variant) Domain() []Item {
	if v == Upgrade {
		return append([]Item(nil), AllItems...)
	}
	return v.BaseItems()
}

// Allows reports whether item may be submitted as a choice.
func (v Variant) Allows(item Item) bool {
	for _, base := range v.BaseItems() {
		if base == item {
			return true
		}
	}
	return false
}

// HasUpgrades reports whether round winners pick upgrades.
func (v Variant) HasUpgrades() bool {
	return v == Upgrade
}

package rules

import (
	"fmt"
	"strings"
)

// Slot indexes the four upgradeable base items.
type Slot uint8

const (
	SlotRock Slot = iota
	SlotPaper
	SlotScissors
	SlotBomb
	slotCount
)

var slotItems = [slotCount]Item{
	SlotRock:     Rock,
	SlotPaper:    Paper,
	SlotScissors: Scissors,
	SlotBomb:     Bomb,
}

// Each base item upgrades into exactly one advanced item.
var upgradeOf = [slotCount]Item{
	SlotRock:     Wall,
	SlotPaper:    Clay,
	SlotScissors: Fire,
	SlotBomb:     Cannon,
}

// SlotOf returns the upgrade slot for a base item.
func SlotOf(base Item) (Slot, bool) {
	for slot, item := range slotItems {
		if item == base {
			return Slot(slot), true
		}
	}
	return 0, false
}

// UpgradeOf returns the advanced item a base item turns into.
func UpgradeOf(base Item) (Item, bool) {
	slot, ok := SlotOf(base)
	if !ok {
		return NoItem, false
	}
	return upgradeOf[slot], true
}

// UpgradeSet records which base items a participant has upgraded. It is a
// value type; With returns a modified copy.
type UpgradeSet [slotCount]bool

// Has reports whether base has been upgraded.
func (u UpgradeSet) Has(base Item) bool {
	slot, ok := SlotOf(base)
	return ok && u[slot]
}

// With returns a copy of u with base marked as upgraded.
func (u UpgradeSet) With(base Item) (UpgradeSet, error) {
	slot, ok := SlotOf(base)
	if !ok {
		return u, fmt.Errorf("%s cannot be upgraded", base)
	}
	u[slot] = true
	return u, nil
}

// Count returns the number of upgraded slots.
func (u UpgradeSet) Count() int {
	n := 0
	for _, set := range u {
		if set {
			n++
		}
	}
	return n
}

// Complete reports whether every slot has been upgraded.
func (u UpgradeSet) Complete() bool {
	return u.Count() == int(slotCount)
}

// Available lists the base items that can still be upgraded.
func (u UpgradeSet) Available() []Item {
	var items []Item
	for slot, set := range u {
		if !set {
			items = append(items, slotItems[slot])
		}
	}
	return items
}

// Upgraded lists the advanced items unlocked so far.
func (u UpgradeSet) Upgraded() []Item {
	var items []Item
	for slot, set := range u {
		if set {
			items = append(items, upgradeOf[slot])
		}
	}
	return items
}

// String renders the progress, e.g. "2/4 upgrades (Wall, Fire)".
func (u UpgradeSet) String() string {
	upgraded := u.Upgraded()
	if len(upgraded) == 0 {
		return fmt.Sprintf("0/%d upgrades", slotCount)
	}
	names := make([]string, len(upgraded))
	for i, item := range upgraded {
		names[i] = item.Title()
	}
	return fmt.Sprintf("%d/%d upgrades (%s)", len(upgraded), slotCount, strings.Join(names, ", "))
}

// EffectiveChoice substitutes the upgraded item when the participant has
// unlocked it.
func EffectiveChoice(base Item, upgrades UpgradeSet) Item {
	slot, ok := SlotOf(base)
	if ok && upgrades[slot] {
		return upgradeOf[slot]
	}
	return base
}

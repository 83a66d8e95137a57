package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Outcome is the result of resolving one round.
type Outcome uint8

const (
	Tie Outcome = iota
	AWins
	BWins
)

func (o Outcome) String() string {
	switch o {
	case Tie:
		return "tie"
	case AWins:
		return "a_wins"
	case BWins:
		return "b_wins"
	default:
		return fmt.Sprintf("outcome(%d)", o)
	}
}

// beats maps every item to the items it defeats.
//
// The first entries of each advanced item are the published rules. The
// remainder completes the relation: an upgraded item beats any base item it
// would otherwise have no verdict against, and fire beats cannon.
var beats = map[Item][]Item{
	Rock:     {Scissors},
	Paper:    {Rock},
	Scissors: {Paper, Bomb},
	Bomb:     {Rock, Paper},

	Wall:   {Scissors, Bomb, Fire, Rock, Paper},
	Cannon: {Rock, Paper, Wall, Clay, Scissors, Bomb},
	Fire:   {Paper, Scissors, Bomb, Rock, Cannon},
	Clay:   {Rock, Wall, Fire, Paper, Scissors, Bomb},
}

// Beats reports whether b is in a's loser list.
func Beats(a, b Item) bool {
	for _, loser := range beats[a] {
		if loser == b {
			return true
		}
	}
	return false
}

// Losers returns a copy of the items that a defeats.
func Losers(a Item) []Item {
	return append([]Item(nil), beats[a]...)
}

// Resolve decides a round between two effective items. Equal items tie;
// otherwise A wins only when B's item is in A's loser list.
func Resolve(a, b Item) Outcome {
	if a == b {
		return Tie
	}
	if Beats(a, b) {
		return AWins
	}
	return BWins
}

// ErrInconsistentRelation is returned by CheckRelation.
var ErrInconsistentRelation = errors.New("inconsistent beats relation")

// CheckRelation verifies that every distinct pair of items reachable in the
// variant has exactly one winner.
func CheckRelation(v Variant) error {
	domain := v.Domain()
	var problems []string
	for i, a := range domain {
		for _, b := range domain[i+1:] {
			ab, ba := Beats(a, b), Beats(b, a)
			switch {
			case ab && ba:
				problems = append(problems, fmt.Sprintf("%s and %s beat each other", a, b))
			case !ab && !ba:
				problems = append(problems, fmt.Sprintf("%s vs %s has no winner", a, b))
			}
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInconsistentRelation, strings.Join(problems, "; "))
	}
	return nil
}

// Package rules holds the item domain and the beats relation for rock
// paper crane.
//
// Everything here is pure. The relation is declared as data in relation.go
// and resolved with:
//
//	outcome := rules.Resolve(
//	    rules.EffectiveChoice(choiceA, upgradesA),
//	    rules.EffectiveChoice(choiceB, upgradesB),
//	)
//
// Two variants share the same relation. Classic only exposes rock, paper
// and scissors with no upgrades, which reduces Resolve to the usual three
// cycle. Upgrade exposes bomb as a fourth base item and lets round winners
// swap a base item for its advanced form:
//
//	rock -> wall, bomb -> cannon, scissors -> fire, paper -> clay
package rules

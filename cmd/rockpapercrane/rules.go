package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lox/rockpapercrane/internal/rules"
)

// RulesCmd prints the beats relation of a variant
type RulesCmd struct {
	Variant string `arg:"" optional:"" default:"upgrade" help:"Variant to describe (classic or upgrade)"`
}

func (c *RulesCmd) Run() error {
	variant, err := rules.ParseVariant(c.Variant)
	if err != nil {
		return err
	}
	return printRules(os.Stdout, variant)
}

func printRules(w io.Writer, variant rules.Variant) error {
	if _, err := fmt.Fprintf(w, "%s rules\n\n", variant); err != nil {
		return err
	}

	domain := make(map[rules.Item]bool)
	for _, item := range variant.Domain() {
		domain[item] = true
	}

	for _, item := range variant.Domain() {
		var beaten []string
		for _, loser := range rules.Losers(item) {
			if domain[loser] {
				beaten = append(beaten, loser.Title())
			}
		}
		if _, err := fmt.Fprintf(w, "%-9s beats %s\n", item.Title(), strings.Join(beaten, ", ")); err != nil {
			return err
		}
	}

	if !variant.HasUpgrades() {
		return nil
	}

	if _, err := fmt.Fprintln(w, "\nUpgrades, one per round won:"); err != nil {
		return err
	}
	for _, base := range variant.BaseItems() {
		upgraded, _ := rules.UpgradeOf(base)
		if _, err := fmt.Fprintf(w, "%-9s -> %s\n", base.Title(), upgraded.Title()); err != nil {
			return err
		}
	}
	return nil
}

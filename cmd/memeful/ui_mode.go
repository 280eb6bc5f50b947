package main

import (
	"fmt"
	"os"
	"strings"
)

// uiMode selects the live progress view of `check`.
type uiMode uint8

const (
	uiAuto uiMode = iota
	uiOn
	uiOff
)

func (m uiMode) String() string {
	switch m {
	case uiOn:
		return "on"
	case uiOff:
		return "off"
	default:
		return "auto"
	}
}

func readUIMode(value string) (uiMode, error) {
	switch v := strings.ToLower(strings.TrimSpace(value)); v {
	case "", "auto":
		return uiAuto, nil
	case "on", "true":
		return uiOn, nil
	case "off", "false":
		return uiOff, nil
	default:
		return uiAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// shouldUseTUI resolves auto against the environment: a real terminal on
// stdout that is not dumb and not a CI log.
func shouldUseTUI(mode uiMode) bool {
	if mode != uiAuto {
		return mode == uiOn
	}
	if os.Getenv("CI") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(os.Stdout)
}

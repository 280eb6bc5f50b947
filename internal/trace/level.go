package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff     Level = iota // no tracing
	LevelError                // error points only
	LevelSession              // sessions and lifecycle
	LevelDetail               // flushes and transfers
	LevelDebug                // per-line decisions
)

// String returns the string representation of Level.
func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelSession:
		return "session"
	case LevelDetail:
		return "detail"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "session":
		return LevelSession, nil
	case "detail":
		return LevelDetail, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|session|detail|debug)", s)
	}
}

// ShouldEmit reports whether an event of the given kind and scope passes the level.
func (l Level) ShouldEmit(kind Kind, scope Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return kind == KindError
	case LevelSession:
		return kind == KindError || scope <= ScopeSession
	case LevelDetail:
		return kind == KindError || scope <= ScopeFetch
	case LevelDebug:
		return true
	}
	return false
}

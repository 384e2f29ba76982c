package executor

import (
	"fmt"
	"strings"
)

// Kind tags how a plan is executed.
type Kind string

const (
	// KindAuto defers to Classify.
	KindAuto Kind = "auto"
	// KindCode plans are written to a script file and run by the interpreter.
	KindCode Kind = "code"
	// KindShell plans are screened by the Guard and run by the shell.
	KindShell Kind = "shell"
)

// ParseKind parses a --kind style value. The empty string means KindAuto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindAuto:
		return KindAuto, nil
	case KindCode, KindShell:
		return k, nil
	default:
		return "", fmt.Errorf("unknown plan kind %q (want auto, code or shell)", s)
	}
}

// Plan is an executable artifact produced for a task. Its text is untrusted.
type Plan struct {
	Kind Kind
	Text string
}

// NewPlan tags text using Classify.
func NewPlan(text string) Plan {
	return Plan{Kind: Classify(text), Text: text}
}

// NewPlanWithKind tags text with an explicit kind. KindAuto falls back to Classify.
func NewPlanWithKind(text string, kind Kind) Plan {
	if kind == "" || kind == KindAuto {
		return NewPlan(text)
	}
	return Plan{Kind: kind, Text: text}
}

// Classify reports KindCode when text starts with a shebang or contains a
// "def " or "import " token, and KindShell otherwise. Purely textual: a
// bare print('hello') is a shell plan.
func Classify(text string) Kind {
	if strings.HasPrefix(text, "#!") ||
		strings.Contains(text, "def ") ||
		strings.Contains(text, "import ") {
		return KindCode
	}
	return KindShell
}

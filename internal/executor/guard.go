package executor

import (
	"fmt"
	"regexp"
	"strings"
)

// Guard screens shell plans before anything is spawned.
type Guard interface {
	// Check returns a non-nil Violation when command must not run.
	Check(command string) *Violation
}

// Violation describes why a command was refused.
type Violation struct {
	Pattern     string
	Description string
	Match       string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("blocked for safety: %s (matched %q)", v.Description, v.Match)
}

// DenyRule is one denylist entry. Patterns are matched case-insensitively.
type DenyRule struct {
	Pattern     string
	Description string

	// Confirm, if set, is given each matched text and must return true for
	// the rule to fire.
	Confirm func(match string) bool
}

// DefaultDenyRules is the built-in denylist. It is not exhaustive.
var DefaultDenyRules = []DenyRule{
	{
		Pattern:     `\brm((?:\s+-\S+)+)\s+/`,
		Description: "recursive force removal of a root-level path",
		Confirm:     isRecursiveForce,
	},
	{
		Pattern:     `>\s*/dev/[^\s;|&()<>]*`,
		Description: "write redirected to a device file",
		Confirm:     isDeviceWrite,
	},
	{Pattern: `\bdd\s+if=`, Description: "raw disk copy with dd"},
	{Pattern: `\bmkfs`, Description: "filesystem creation"},
	{Pattern: `\bwget\s+.+\|\s*(sudo\s+)?(ba|z|da)?sh\b`, Description: "remote content piped from wget into a shell"},
	{Pattern: `\bcurl\s+.+\|\s*(sudo\s+)?(ba|z|da)?sh\b`, Description: "remote content piped from curl into a shell"},
}

// isRecursiveForce reports whether an rm invocation's options, clustered
// ("-rfv"), separate ("-r -f") or long ("--recursive --force"), ask for
// both recursion and force.
func isRecursiveForce(match string) bool {
	var recursive, force bool
	for _, opt := range strings.Fields(match)[1:] {
		lower := strings.ToLower(opt)
		switch {
		case lower == "--recursive":
			recursive = true
		case lower == "--force":
			force = true
		case strings.HasPrefix(lower, "--"):
			// --no-preserve-root, --verbose, "--" and friends
		case strings.HasPrefix(lower, "-"):
			recursive = recursive || strings.Contains(lower, "r")
			force = force || strings.Contains(lower, "f")
		}
	}
	return recursive && force
}

// harmlessDevices are redirection targets that never touch storage.
var harmlessDevices = map[string]bool{
	"null":   true,
	"zero":   true,
	"stdout": true,
	"stderr": true,
	"stdin":  true,
	"tty":    true,
}

// isDeviceWrite reports whether a redirection targets a device other than
// the harmless ones.
func isDeviceWrite(match string) bool {
	i := strings.Index(strings.ToLower(match), "/dev/")
	if i < 0 {
		return false
	}
	dev := strings.ToLower(match[i+len("/dev/"):])
	if harmlessDevices[dev] || strings.HasPrefix(dev, "fd/") {
		return false
	}
	return true
}

type compiledRule struct {
	DenyRule
	re *regexp.Regexp
}

// Denylist is a regex Guard.
type Denylist struct {
	rules []compiledRule
}

// NewDenylist compiles the built-in rules plus extra patterns. Extra
// patterns extend the list; they cannot remove built-in entries.
func NewDenylist(extra ...string) (*Denylist, error) {
	rules := make([]DenyRule, 0, len(DefaultDenyRules)+len(extra))
	rules = append(rules, DefaultDenyRules...)
	for _, p := range extra {
		rules = append(rules, DenyRule{Pattern: p, Description: "configured deny pattern"})
	}

	d := &Denylist{rules: make([]compiledRule, 0, len(rules))}
	for _, rule := range rules {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile deny pattern %q: %w", rule.Pattern, err)
		}
		d.rules = append(d.rules, compiledRule{DenyRule: rule, re: re})
	}
	return d, nil
}

// DefaultDenylist returns a Denylist with only the built-in rules.
func DefaultDenylist() *Denylist {
	d, err := NewDenylist()
	if err != nil {
		panic(err)
	}
	return d
}

// Check returns the first matching rule, or nil.
func (d *Denylist) Check(command string) *Violation {
	for _, rule := range d.rules {
		for _, m := range rule.re.FindAllString(command, -1) {
			if m == "" || (rule.Confirm != nil && !rule.Confirm(m)) {
				continue
			}
			return &Violation{Pattern: rule.Pattern, Description: rule.Description, Match: m}
		}
	}
	return nil
}

// Rules returns the active rules.
func (d *Denylist) Rules() []DenyRule {
	out := make([]DenyRule, len(d.rules))
	for i, r := range d.rules {
		out[i] = r.DenyRule
	}
	return out
}

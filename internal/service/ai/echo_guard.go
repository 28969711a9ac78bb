package ai

import (
	"strings"
	"unicode/utf8"
)

// EchoGuard detects replies where the model repeated its own instruction
// text instead of answering.
type EchoGuard struct {
	// MinLength is the reply length (characters) above which echo checks run.
	MinLength int
	// MinMatches is how many instruction fragments must appear in the reply.
	MinMatches int
	// Extra fragments checked alongside the ones derived from the instruction.
	Extra []string
}

// DefaultEchoGuard matches the telltales seen from the provider in practice.
func DefaultEchoGuard() EchoGuard {
	return EchoGuard{
		MinLength:  800,
		MinMatches: 2,
		Extra:      []string{"you are aleen", "**rules:**", "**about aleen:**", "**behavior:**"},
	}
}

// Echoed reports whether reply looks like a copy of instruction.
func (g EchoGuard) Echoed(reply, instruction string) bool {
	if utf8.RuneCountInString(reply) <= g.MinLength {
		return false
	}

	need := g.MinMatches
	if need <= 0 {
		need = 1
	}

	lower := strings.ToLower(reply)
	matches := 0
	for _, fragment := range Fragments(instruction, g.Extra...) {
		if strings.Contains(lower, fragment) {
			matches++
			if matches >= need {
				return true
			}
		}
	}
	return false
}

const minFragmentLength = 24

// Fragments derives lowercased telltale substrings from instruction text:
// markdown headings, the opening sentence, and long lines. extra fragments
// are merged in without duplicates.
func Fragments(instruction string, extra ...string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	trimmed := strings.TrimSpace(instruction)
	if idx := strings.IndexAny(trimmed, ".\n"); idx > 0 {
		if first := trimmed[:idx]; utf8.RuneCountInString(first) >= minFragmentLength {
			add(first)
		}
	}

	for _, line := range strings.Split(instruction, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**") && len(line) > 4:
			add(line)
		case utf8.RuneCountInString(line) >= minFragmentLength:
			add(strings.TrimLeft(line, "-•*0123456789. "))
		}
	}
	for _, e := range extra {
		add(e)
	}
	return out
}

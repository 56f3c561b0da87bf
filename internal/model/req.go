package model

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseRequirement compiles a cargo-style version requirement into a
// matchable constraint set.
//
// Cargo treats a bare requirement ("1.0", "0.2.5") as a caret
// requirement, so such components are prefixed with "^" before
// compilation. Operator-prefixed components (=, >, >=, <, <=, ~, ^)
// and wildcard components ("*", "1.*", "1.2.x") pass through
// unchanged.
func ParseRequirement(s string) (*semver.Constraints, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "*"
	}

	parts := strings.Split(s, ",")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if bare(part) {
			part = "^" + part
		}
		parts[i] = part
	}

	return semver.NewConstraint(strings.Join(parts, ", "))
}

// bare reports whether a requirement component has no operator and no
// wildcard, i.e. cargo would apply caret semantics to it.
func bare(part string) bool {
	if part == "" {
		return false
	}
	if part[0] < '0' || part[0] > '9' {
		return false
	}
	return !strings.ContainsAny(part, "*xX")
}

package build

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"
)

// ErrPragmaMismatch is returned when a version pragma excludes the pinned compiler
var ErrPragmaMismatch = errors.New("version pragma excludes pinned compiler")

var pragmaRegex = regexp.MustCompile(`(?m)^\s*pragma\s+solidity\s+([^;]+);`)

// Pragmas returns the version constraint of every "pragma solidity" in src
func Pragmas(src string) []string {
	var out []string
	for _, m := range pragmaRegex.FindAllStringSubmatch(src, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// CheckPragmas fails when a source's version pragma cannot be satisfied by
// compilerVersion. Pragmas that do not parse are left for the compiler to judge.
func (b Bundle) CheckPragmas(compilerVersion string) error {
	v, err := semver.NewVersion(compilerVersion)
	if err != nil {
		return fmt.Errorf("parsing compiler version %q: %w", compilerVersion, err)
	}

	for _, name := range b.Names() {
		for _, pragma := range Pragmas(b[name]) {
			c, err := semver.NewConstraint(constraintOf(pragma))
			if err != nil {
				continue
			}
			if !c.Check(v) {
				return fmt.Errorf("%w: %s requires %q, pinned %s", ErrPragmaMismatch, name, pragma, compilerVersion)
			}
		}
	}
	return nil
}

// constraintOf rewrites a Solidity version expression into semver constraint
// syntax: comparators separated by spaces become comma separated, and a caret
// below 1.0.0 is bounded by the next minor (or patch) release.
// ">= 0.7.0 <0.9.0" -> ">=0.7.0,<0.9.0"
// "^0.8.4" -> ">=0.8.4,<0.9.0"
func constraintOf(pragma string) string {
	groups := strings.Split(pragma, "||")
	for i, group := range groups {
		var parts []string
		pending := ""
		for _, field := range strings.Fields(group) {
			if strings.Trim(field, "<>=^~") == "" {
				pending += field
				continue
			}
			parts = append(parts, caretRange(pending+field))
			pending = ""
		}
		groups[i] = strings.Join(parts, ",")
	}
	return strings.Join(groups, " || ")
}

// caretRange expands "^0.x.y" the way solc reads it; other terms are returned as is
func caretRange(term string) string {
	if !strings.HasPrefix(term, "^") {
		return term
	}
	v, err := semver.NewVersion(term[1:])
	if err != nil || v.Major() != 0 {
		return term
	}
	if v.Minor() > 0 {
		return fmt.Sprintf(">=%s,<0.%d.0", v, v.Minor()+1)
	}
	return fmt.Sprintf(">=%s,<0.0.%d", v, v.Patch()+1)
}

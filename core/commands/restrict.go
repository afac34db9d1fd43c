package commands

import (
	"fmt"

	"github.com/gobwas/glob"
)

// restrictedSet holds command names no registrant may take. Entries are glob
// patterns over normalized names, so "admin.*" covers a whole family.
type restrictedSet struct {
	patterns []string
	globs    []glob.Glob
}

func compileRestricted(patterns []string) (restrictedSet, error) {
	set := restrictedSet{
		patterns: make([]string, 0, len(patterns)),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for _, pattern := range patterns {
		pattern = NormalizeName(pattern)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return restrictedSet{}, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
		}
		set.patterns = append(set.patterns, pattern)
		set.globs = append(set.globs, g)
	}
	return set, nil
}

func (s restrictedSet) contains(name string) bool {
	for _, g := range s.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

package orchestrator

import (
	"fmt"
	"sort"
)

// resolveOrder returns a startup ordering over names that satisfies every
// declared dependency edge, preserving the given ordering as a tiebreak.
// Returns an error naming the unresolved set on a cycle or missing dependency
// (spec.md §4.3 "fails fast on cycles").
func resolveOrder(names []string, deps map[string][]string) ([]string, error) {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	for name, ds := range deps {
		if !set[name] {
			continue
		}
		for _, d := range ds {
			if !set[d] {
				return nil, fmt.Errorf("agent %q depends on unregistered agent %q", name, d)
			}
		}
	}

	resolved := make([]string, 0, len(names))
	done := make(map[string]bool, len(names))

	for len(resolved) < len(names) {
		progressed := false
		for _, name := range names {
			if done[name] {
				continue
			}
			waiting := false
			for _, d := range deps[name] {
				if !done[d] {
					waiting = true
					break
				}
			}
			if waiting {
				continue
			}
			resolved = append(resolved, name)
			done[name] = true
			progressed = true
		}
		if !progressed {
			var unresolved []string
			for _, name := range names {
				if !done[name] {
					unresolved = append(unresolved, name)
				}
			}
			sort.Strings(unresolved)
			return nil, fmt.Errorf("dependency cycle among agents: %v", unresolved)
		}
	}
	return resolved, nil
}

// reverse returns a new slice with names in reverse order, used for shutdown
// (spec.md §4.3 "stop in reverse dependency order").
func reverse(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[len(names)-1-i] = n
	}
	return out
}

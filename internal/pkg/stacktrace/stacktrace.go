// Package stacktrace trims raw goroutine stacks down to this module's frames.
package stacktrace

import "strings"

// InternalPaths returns the "internal/...go:line" locations found in a raw stack trace,
// innermost frame first. Frames outside an internal/ tree are skipped.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.Lines(string(stack)) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "/") && !strings.Contains(line, ":/") {
			continue
		}

		idx := strings.Index(line, "/internal/")
		if idx == -1 || !strings.Contains(line, ".go:") {
			continue
		}

		loc := line[idx+1:]
		if sp := strings.IndexByte(loc, ' '); sp != -1 {
			loc = loc[:sp]
		}
		paths = append(paths, loc)
	}
	return paths
}

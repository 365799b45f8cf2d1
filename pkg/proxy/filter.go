package proxy

import (
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which forwarded paths are recorded
type Filter struct {
	Include []string // record only matching paths (empty = all)
	Exclude []string // never record matching paths
}

// ShouldRecord reports whether path passes the filter. Exclusions win.
func (f *Filter) ShouldRecord(path string) bool {
	if f == nil {
		return true
	}
	for _, pattern := range f.Exclude {
		if match(pattern, path) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, pattern := range f.Include {
		if match(pattern, path) {
			return true
		}
	}
	return false
}

// Validate reports the first malformed pattern
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	for _, patterns := range [][]string{f.Include, f.Exclude} {
		for _, p := range patterns {
			if !doublestar.ValidatePattern(p) {
				return doublestar.ErrBadPattern
			}
		}
	}
	return nil
}

func match(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	if err != nil {
		slog.Warn("invalid record filter pattern", "pattern", pattern, "error", err)
		return false
	}
	return ok
}

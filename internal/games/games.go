// Package games holds the static list of game editions and their WDF availability.
package games

import (
	"errors"
	"fmt"
	"sort"

	"wdf-server/internal/platform/config"
)

// ErrGameEditionUnavailable is returned when a game edition is unknown,
// disabled, or has the online mode turned off.
var ErrGameEditionUnavailable = errors.New("game edition is not available")

// Edition describes one game edition.
type Edition struct {
	Version     int
	Name        string
	IsAvailable bool
	WDF         bool
}

// Registry is an immutable lookup of editions by version.
type Registry struct {
	editions map[int]Edition
}

// NewRegistry builds a Registry from settings.
func NewRegistry(games []config.GameSettings) *Registry {
	r := &Registry{editions: make(map[int]Edition, len(games))}
	for _, g := range games {
		r.editions[g.Version] = Edition{
			Version:     g.Version,
			Name:        g.Name,
			IsAvailable: g.IsAvailable,
			WDF:         g.WDF,
		}
	}
	return r
}

// Get returns the edition for version, if known.
func (r *Registry) Get(version int) (Edition, bool) {
	e, ok := r.editions[version]
	return e, ok
}

// IsAvailable reports whether the online mode can be used for version.
func (r *Registry) IsAvailable(version int) bool {
	e, ok := r.editions[version]
	return ok && e.IsAvailable && e.WDF
}

// Require returns ErrGameEditionUnavailable (wrapped with the version) when
// version cannot be used.
func (r *Registry) Require(version int) error {
	if !r.IsAvailable(version) {
		return fmt.Errorf("%d: %w", version, ErrGameEditionUnavailable)
	}
	return nil
}

// Available lists the usable editions ordered by version.
func (r *Registry) Available() []Edition {
	out := make([]Edition, 0, len(r.editions))
	for _, e := range r.editions {
		if e.IsAvailable && e.WDF {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

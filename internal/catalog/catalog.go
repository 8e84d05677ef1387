// Package catalog provides the song catalog the playlist picks from.
package catalog

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync"

	"wdf-server/internal/platform/config"
)

// ErrCatalogExhausted is returned when no song satisfies a filter and exclusion list.
var ErrCatalogExhausted = errors.New("no song matches the filter, is the song catalog empty?")

// Song is one playable map.
type Song struct {
	Name       string  `json:"mapName"`
	LengthMs   float64 `json:"length"`
	CoachCount int     `json:"numCoach"`
	Version    int     `json:"-"`
}

// Filter restricts random picks. The zero Filter matches every song.
type Filter struct {
	// MinCoachCount keeps songs with at least this many coaches.
	MinCoachCount int `json:"minCoachCount,omitempty"`
}

// Matches reports whether s passes the filter.
func (f Filter) Matches(s Song) bool {
	return s.CoachCount >= f.MinCoachCount
}

// Catalog returns random songs for a game version. It returns fewer than
// count songs (possibly none) when the catalog is exhausted; that is not an error.
type Catalog interface {
	Random(ctx context.Context, version, count int, exclude []string, f Filter) ([]Song, error)
}

// MemoryCatalog is a Catalog over a fixed in-process song list.
type MemoryCatalog struct {
	songs []Song

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMemoryCatalog returns a catalog over songs. rnd may be nil to use a
// randomly seeded source.
func NewMemoryCatalog(songs []Song, rnd *rand.Rand) *MemoryCatalog {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &MemoryCatalog{songs: slices.Clone(songs), rnd: rnd}
}

// FromSettings converts the settings song seed into catalog songs.
func FromSettings(seed []config.SongSettings) []Song {
	out := make([]Song, 0, len(seed))
	for _, s := range seed {
		out = append(out, Song{Name: s.Name, LengthMs: s.LengthMs, CoachCount: s.CoachCount, Version: s.Version})
	}
	return out
}

// Random implements Catalog.Random.
func (c *MemoryCatalog) Random(_ context.Context, version, count int, exclude []string, f Filter) ([]Song, error) {
	candidates := make([]Song, 0, len(c.songs))
	for _, s := range c.songs {
		if s.Version != version || slices.Contains(exclude, s.Name) || !f.Matches(s) {
			continue
		}
		candidates = append(candidates, s)
	}

	c.mu.Lock()
	c.rnd.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	c.mu.Unlock()

	if count < len(candidates) {
		candidates = candidates[:count]
	}
	return candidates, nil
}

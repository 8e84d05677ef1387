package playlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"wdf-server/internal/catalog"
	"wdf-server/internal/platform/config"
	"wdf-server/internal/platform/metrics"
	"wdf-server/internal/platform/scheduler"
	"wdf-server/internal/score"
)

// rotationLeadMs is how long before the current song stops the window rotates.
const rotationLeadMs = 16000

const (
	jobRotate      = "Rotate playlist"
	jobClearScores = "Clear scores after playlist rotation"
)

// ErrNoTheme is returned when no theme is available at all.
var ErrNoTheme = errors.New("no playlist theme is available")

// Factory builds screens and schedules the jobs attached to them.
type Factory struct {
	themes      []Theme
	communities []string
	durations   config.Durations
	catalog     catalog.Catalog
	scheduler   scheduler.Scheduler
	scores      score.Store
	log         *slog.Logger
	metrics     *metrics.Metrics

	now  func() time.Time
	intN func(n int) int
}

// FactoryConfig groups the Factory collaborators. Now and IntN default to
// time.Now and rand.IntN; Metrics may be nil.
type FactoryConfig struct {
	Themes      []Theme
	Communities []string
	Durations   config.Durations
	Catalog     catalog.Catalog
	Scheduler   scheduler.Scheduler
	Scores      score.Store
	Log         *slog.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
	IntN        func(n int) int
}

// NewFactory returns a Factory.
func NewFactory(cfg FactoryConfig) *Factory {
	f := &Factory{
		themes:      slices.Clone(cfg.Themes),
		communities: slices.Clone(cfg.Communities),
		durations:   cfg.Durations,
		catalog:     cfg.Catalog,
		scheduler:   cfg.Scheduler,
		scores:      cfg.Scores,
		log:         cfg.Log,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		intN:        cfg.IntN,
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.intN == nil {
		f.intN = rand.IntN
	}
	return f
}

// CreateScreen builds the screen for slot of version. current is the window
// the new screen will join. Nothing is scheduled; the caller calls schedule
// once the screen is stored.
func (f *Factory) CreateScreen(ctx context.Context, version int, slot Slot, current Screens) (*Screen, error) {
	now := toMs(f.now())
	isNext := slot == SlotNext

	// Only the current theme is excluded, so prev and next may share a theme.
	var excludedThemes []ThemeID
	if current.Cur != nil {
		excludedThemes = append(excludedThemes, current.Cur.Theme.ID)
	}
	// No song repeats inside the prev/cur/next window.
	excludedSongs := current.songNames()

	theme, ok := pickTheme(f.themes, excludedThemes, f.intN)
	if !ok {
		return nil, ErrNoTheme
	}
	if theme.ID == ThemeCommunity {
		theme.Communities = slices.Clone(f.communities)
	}

	filter := catalog.Filter{MinCoachCount: songFilterMinCoaches(theme.ID)}
	songs, err := f.catalog.Random(ctx, version, 1, excludedSongs, filter)
	if err != nil {
		return nil, fmt.Errorf("pick song for %d/%s: %w", version, slot, err)
	}
	if len(songs) == 0 {
		return nil, fmt.Errorf("create %s screen for %d with theme %s: %w", slot, version, theme.ID, catalog.ErrCatalogExhausted)
	}

	// The next screen starts where the current one requests its successor,
	// whatever the next theme is.
	baseTime := now
	if isNext && current.Cur != nil && current.Cur.Timing.RequestPlaylistTime != 0 {
		baseTime = current.Cur.Timing.RequestPlaylistTime
	}
	// Never schedule in the past, e.g. after the process slept.
	if baseTime < now {
		baseTime = now
	}

	timing, programming := ComputeTimeline(baseTime, theme.ID, songs[0].LengthMs, isNext, f.durations)
	screen := &Screen{
		Theme:             theme,
		Song:              songs[0],
		Timing:            timing,
		TimingProgramming: programming,
	}

	return screen, nil
}

// schedule arms the jobs of a stored screen: rotate runs shortly before its
// song stops and the score reset runs at its playlist request time.
func (f *Factory) schedule(version int, slot Slot, screen *Screen, rotate scheduler.Job) {
	f.scheduler.Schedule(jobRotate, fromMs(screen.Timing.StopSongTime-rotationLeadMs), rotate)
	f.scheduler.Schedule(jobClearScores, fromMs(screen.Timing.RequestPlaylistTime), f.clearScores(version))

	f.metrics.IncScreensCreated(string(slot))
	f.log.Info("playlist screen created",
		slog.Int("version", version),
		slog.String("slot", string(slot)),
		slog.String("theme", screen.Theme.ID.String()),
		slog.String("song", screen.Song.Name),
		slog.Float64("start_song_time", screen.Timing.StartSongTime),
		slog.Float64("request_playlist_time", screen.Timing.RequestPlaylistTime))
}

func (f *Factory) clearScores(version int) scheduler.Job {
	return func(ctx context.Context) error {
		deleted, err := f.scores.DeleteByVersion(ctx, version)
		if err != nil {
			return fmt.Errorf("clear scores of %d: %w", version, err)
		}
		f.metrics.IncScoreResets(strconv.Itoa(version))
		f.log.Info("scores erased", slog.Int("version", version), slog.Int64("deleted", deleted))
		return nil
	}
}

func toMs(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func fromMs(ms float64) time.Time {
	return time.Unix(0, int64(ms*float64(time.Millisecond)))
}

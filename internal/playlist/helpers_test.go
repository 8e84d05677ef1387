package playlist

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"wdf-server/internal/catalog"
	"wdf-server/internal/games"
	"wdf-server/internal/platform/config"
	"wdf-server/internal/platform/logger"
	"wdf-server/internal/platform/scheduler"
	"wdf-server/internal/platform/storage"
	"wdf-server/internal/score"
)

const testVersion = 2015

type scheduledJob struct {
	description string
	at          time.Time
	job         scheduler.Job
}

// fakeScheduler records jobs instead of running them.
type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (f *fakeScheduler) Schedule(description string, at time.Time, job scheduler.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, scheduledJob{description: description, at: at, job: job})
}

func (f *fakeScheduler) named(description string) []scheduledJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []scheduledJob
	for _, j := range f.jobs {
		if j.description == description {
			out = append(out, j)
		}
	}
	return out
}

func (f *fakeScheduler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) nowMs() float64 { return toMs(c.Now()) }

func allThemes() []Theme {
	return []Theme{
		{ID: ThemeAutodance, IsAvailable: true},
		{ID: ThemeCommunity, IsAvailable: true},
		{ID: ThemeVote, IsAvailable: true},
		{ID: ThemeCoach, IsAvailable: true},
		{ID: ThemeStarChallenge, IsAvailable: true},
	}
}

func defaultSongs() []catalog.Song {
	return []catalog.Song{
		{Name: "Rasputin", LengthMs: 210000, CoachCount: 4, Version: testVersion},
		{Name: "Macarena", LengthMs: 190000, CoachCount: 4, Version: testVersion},
		{Name: "Happy", LengthMs: 233000, CoachCount: 2, Version: testVersion},
		{Name: "Toxic", LengthMs: 200000, CoachCount: 2, Version: testVersion},
		{Name: "Dragostea", LengthMs: 214000, CoachCount: 2, Version: testVersion},
	}
}

// switchCatalog delegates to a real catalog until failWith is set.
type switchCatalog struct {
	inner catalog.Catalog

	mu  sync.Mutex
	err error
}

func (c *switchCatalog) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *switchCatalog) Random(ctx context.Context, version, count int, exclude []string, f catalog.Filter) ([]catalog.Song, error) {
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.inner.Random(ctx, version, count, exclude, f)
}

// flakyCache is a MemoryCache whose writes to chosen keys fail.
type flakyCache struct {
	*storage.MemoryCache

	mu      sync.Mutex
	failing map[string]error
}

func (c *flakyCache) failSet(key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failing, key)
		return
	}
	c.failing[key] = err
}

func (c *flakyCache) writeErr(keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if err := c.failing[k]; err != nil {
			return err
		}
	}
	return nil
}

func (c *flakyCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.writeErr(key); err != nil {
		return err
	}
	return c.MemoryCache.Set(ctx, key, value)
}

func (c *flakyCache) SetMany(ctx context.Context, entries map[string][]byte) error {
	for k := range entries {
		if err := c.writeErr(k); err != nil {
			return err
		}
	}
	return c.MemoryCache.SetMany(ctx, entries)
}

type testEnv struct {
	clock   *fakeClock
	sched   *fakeScheduler
	cache   *flakyCache
	catalog *switchCatalog
	scores  *score.MemoryStore
	factory *Factory
	mgr     *Manager
}

func newTestEnv(t *testing.T, songs []catalog.Song, themes []Theme) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:   newFakeClock(),
		sched:   &fakeScheduler{},
		cache:   &flakyCache{MemoryCache: storage.NewMemoryCache(), failing: make(map[string]error)},
		catalog: &switchCatalog{inner: catalog.NewMemoryCatalog(songs, rand.New(rand.NewPCG(3, 5)))},
		scores:  score.NewMemoryStore(),
	}
	rnd := rand.New(rand.NewPCG(7, 11))
	var rndMu sync.Mutex
	env.factory = NewFactory(FactoryConfig{
		Themes:      themes,
		Communities: []string{"Test1", "Test2"},
		Durations:   config.DefaultDurations(),
		Catalog:     env.catalog,
		Scheduler:   env.sched,
		Scores:      env.scores,
		Log:         logger.Discard(),
		Now:         env.clock.Now,
		IntN: func(n int) int {
			rndMu.Lock()
			defer rndMu.Unlock()
			return rnd.IntN(n)
		},
	})
	registry := games.NewRegistry([]config.GameSettings{
		{Version: testVersion, Name: "JD15", IsAvailable: true, WDF: true},
		{Version: 2014, Name: "JD14", IsAvailable: false, WDF: true},
	})
	env.mgr = NewManager(registry, env.cache, env.factory, logger.Discard(), nil, env.clock.Now)
	return env
}

func (e *testEnv) rotator(t *testing.T) *Rotator {
	t.Helper()
	r, err := e.mgr.Rotator(testVersion)
	if err != nil {
		t.Fatalf("Rotator(%d): %v", testVersion, err)
	}
	return r
}

package playlist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wdf-server/internal/catalog"
	"wdf-server/internal/games"
)

func TestScreens_read_only_does_not_create(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	s, err := env.rotator(t).Screens(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, s.Prev)
	assert.Nil(t, s.Cur)
	assert.Nil(t, s.Next)
	assert.Zero(t, env.sched.count())
}

func TestScreens_bootstrap_creates_cur_and_next(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	r := env.rotator(t)

	s, err := r.Screens(context.Background(), true)
	require.NoError(t, err)
	assert.Nil(t, s.Prev, "prev stays empty until the first rotation")
	require.NotNil(t, s.Cur)
	require.NotNil(t, s.Next)
	assert.NotEqual(t, s.Cur.Song.Name, s.Next.Song.Name)
	assert.NotEqual(t, s.Cur.Theme.ID, s.Next.Theme.ID)
	assert.Equal(t, env.clock.nowMs(), s.Cur.Timing.BaseTime)
	assert.Equal(t, s.Cur.Timing.RequestPlaylistTime, s.Next.Timing.BaseTime)
	assert.Equal(t, 4, env.sched.count(), "two jobs per created screen")

	// the window is persisted in the cache under playlist:{version}:{slot}
	_, ok, err := env.cache.Get(context.Background(), "playlist:2015:cur")
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := r.Screens(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, s, again)
	assert.Equal(t, 4, env.sched.count(), "a populated window creates nothing")
}

func TestRotateScreens_shifts_window(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	r := env.rotator(t)
	ctx := context.Background()

	before, err := r.Screens(ctx, true)
	require.NoError(t, err)

	require.NoError(t, r.RotateScreens(ctx))
	after, err := r.Screens(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, before.Cur, after.Prev)
	assert.Equal(t, before.Next, after.Cur)
	require.NotNil(t, after.Next)
	assert.Equal(t, after.Cur.Timing.RequestPlaylistTime, after.Next.Timing.BaseTime)
	assert.Len(t, uniq(after.songNames()), 3)
}

func TestRotateScreens_keeps_window_ordered_and_distinct(t *testing.T) {
	env := newTestEnv(t, defaultSongs()[:4], allThemes())
	r := env.rotator(t)
	ctx := context.Background()

	_, err := r.Screens(ctx, true)
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		require.NoError(t, r.RotateScreens(ctx))
		s, err := r.Screens(ctx, false)
		require.NoError(t, err)

		assert.LessOrEqual(t, s.Prev.Timing.StopSongTime, s.Cur.Timing.StopSongTime)
		assert.LessOrEqual(t, s.Cur.Timing.StopSongTime, s.Next.Timing.StopSongTime)
		assert.Len(t, uniq(s.songNames()), 3, "rotation %d repeated a song: %v", i, s.songNames())
		assert.NotEqual(t, s.Cur.Theme.ID, s.Next.Theme.ID)
	}
}

func TestRotateScreens_runs_from_scheduled_job(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	r := env.rotator(t)
	ctx := context.Background()

	before, err := r.Screens(ctx, true)
	require.NoError(t, err)

	rotations := env.sched.named(jobRotate)
	require.Len(t, rotations, 2)
	require.NoError(t, rotations[0].job(ctx))

	after, err := r.Screens(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, before.Cur, after.Prev)
	assert.Equal(t, before.Next, after.Cur)
	assert.Len(t, env.sched.named(jobRotate), 3, "the new next screen schedules its own rotation")
}

func TestRotateScreens_failed_pick_leaves_window_unchanged(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	r := env.rotator(t)
	ctx := context.Background()

	before, err := r.Screens(ctx, true)
	require.NoError(t, err)
	jobs := env.sched.count()

	env.catalog.failWith(errors.New("db down"))
	err = r.RotateScreens(ctx)
	assert.ErrorContains(t, err, "db down")

	after, err := r.Screens(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, jobs, env.sched.count(), "a failed rotation arms no jobs")

	env.catalog.failWith(nil)
	require.NoError(t, r.RotateScreens(ctx))
	after, err = r.Screens(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, before.Cur, after.Prev)
	assert.Equal(t, before.Next, after.Cur)
	require.NotNil(t, after.Next)
	assert.Len(t, uniq(after.songNames()), 3)
}

func TestRotateScreens_failed_write_leaves_window_unchanged(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	r := env.rotator(t)
	ctx := context.Background()

	before, err := r.Screens(ctx, true)
	require.NoError(t, err)
	jobs := env.sched.count()

	env.cache.failSet("playlist:2015:prev", errors.New("redis down"))
	err = r.RotateScreens(ctx)
	assert.ErrorContains(t, err, "redis down")

	after, err := r.Screens(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, jobs, env.sched.count())
}

func TestScreens_failed_store_arms_no_jobs(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	r := env.rotator(t)
	ctx := context.Background()

	env.cache.failSet("playlist:2015:next", errors.New("redis down"))
	for i := 0; i < 3; i++ {
		_, err := r.Screens(ctx, true)
		assert.ErrorContains(t, err, "redis down")
	}
	assert.Len(t, env.sched.named(jobRotate), 1, "only the stored cur screen has a rotation")
	assert.Len(t, env.sched.named(jobClearScores), 1)

	stored, err := r.Screens(ctx, false)
	require.NoError(t, err)
	assert.NotNil(t, stored.Cur)
	assert.Nil(t, stored.Next)

	env.cache.failSet("playlist:2015:next", nil)
	s, err := r.Screens(ctx, true)
	require.NoError(t, err)
	require.NotNil(t, s.Next)
	assert.Len(t, env.sched.named(jobRotate), 2)
}

func TestScreens_stale_window_is_rebuilt(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	r := env.rotator(t)
	ctx := context.Background()

	_, err := r.Screens(ctx, true)
	require.NoError(t, err)
	require.NoError(t, r.RotateScreens(ctx))

	old, err := r.Screens(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, old.Prev)

	// the process sleeps past the cur screen's playlist request time
	env.clock.Set(fromMs(old.Cur.Timing.RequestPlaylistTime).Add(time.Hour))

	fresh, err := r.Screens(ctx, true)
	require.NoError(t, err)
	assert.Nil(t, fresh.Prev)
	require.NotNil(t, fresh.Cur)
	require.NotNil(t, fresh.Next)
	assert.Equal(t, env.clock.nowMs(), fresh.Cur.Timing.BaseTime)
	assert.Greater(t, fresh.Cur.Timing.RequestPlaylistTime, env.clock.nowMs())
	assert.Equal(t, fresh.Cur.Timing.RequestPlaylistTime, fresh.Next.Timing.BaseTime)

	stored, err := r.Screens(ctx, false)
	require.NoError(t, err)
	assert.Nil(t, stored.Prev, "stale prev is removed from the cache too")
}

func TestScreens_concurrent_miss_creates_once(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())
	ctx := context.Background()

	const callers = 25
	results := make([]Screens, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.mgr.Screens(ctx, testVersion)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, 4, env.sched.count(), "exactly one cur and one next were created")
}

func TestScreens_catalog_exhausted_releases_lock(t *testing.T) {
	env := newTestEnv(t, []catalog.Song{{Name: "Only", LengthMs: 1000, CoachCount: 1, Version: testVersion}},
		[]Theme{{ID: ThemeAutodance, IsAvailable: true}})
	r := env.rotator(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			_, err := r.Screens(context.Background(), true)
			assert.True(t, errors.Is(err, catalog.ErrCatalogExhausted), "got %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Screens deadlocked after a failed creation")
	}

	s, err := r.Screens(context.Background(), false)
	require.NoError(t, err)
	assert.NotNil(t, s.Cur)
	assert.Nil(t, s.Next)
}

func TestManager_unavailable_version(t *testing.T) {
	env := newTestEnv(t, defaultSongs(), allThemes())

	_, err := env.mgr.Screens(context.Background(), 2014)
	assert.ErrorIs(t, err, games.ErrGameEditionUnavailable)
	_, err = env.mgr.Rotator(1999)
	assert.ErrorIs(t, err, games.ErrGameEditionUnavailable)

	r1, err := env.mgr.Rotator(testVersion)
	require.NoError(t, err)
	r2, err := env.mgr.Rotator(testVersion)
	require.NoError(t, err)
	assert.Same(t, r1, r2)
}

func uniq(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

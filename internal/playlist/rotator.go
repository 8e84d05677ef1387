package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"wdf-server/internal/games"
	"wdf-server/internal/platform/metrics"
	"wdf-server/internal/platform/storage"
)

// Rotator owns the prev/cur/next window of one game version. Every write to
// the window goes through mu, so concurrent readers that find an empty slot
// create exactly one screen between them.
type Rotator struct {
	version int
	cache   storage.Cache
	factory *Factory
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu sync.Mutex
}

// Screens returns the window. With refresh false it is a plain read of the
// cache. With refresh true a stale window is discarded and missing cur/next
// screens are created and stored first.
func (r *Rotator) Screens(ctx context.Context, refresh bool) (Screens, error) {
	if !refresh {
		return r.snapshot(ctx)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.snapshot(ctx)
	if err != nil {
		return Screens{}, err
	}

	if s.stale(toMs(r.now())) {
		r.log.Info("playlist missed its rotation, resetting", slog.Int("version", r.version))
		if err := r.storeAll(ctx, Screens{}); err != nil {
			return Screens{}, err
		}
		s = Screens{}
	}

	for _, slot := range []Slot{SlotCur, SlotNext} {
		if s.get(slot) != nil {
			continue
		}
		if err := r.fill(ctx, slot); err != nil {
			return Screens{}, err
		}
		if s, err = r.snapshot(ctx); err != nil {
			return Screens{}, err
		}
	}
	return s, nil
}

// RotateScreens shifts the window: prev <- cur, cur <- next, next <- new screen.
// The new screen is built before anything is written and the three slots are
// stored together, so a failure leaves the window as it was. It is only run by
// the rotation job scheduled with each screen.
func (r *Rotator) RotateScreens(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.snapshot(ctx)
	if err != nil {
		return err
	}
	shifted := Screens{Prev: s.Cur, Cur: s.Next}
	next, err := r.factory.CreateScreen(ctx, r.version, SlotNext, shifted)
	if err != nil {
		return err
	}
	shifted.Next = next
	if err := r.storeAll(ctx, shifted); err != nil {
		return err
	}
	r.factory.schedule(r.version, SlotNext, next, r.RotateScreens)

	r.metrics.IncRotations(strconv.Itoa(r.version))
	r.log.Info("playlist rotated", slog.Int("version", r.version))
	return nil
}

// fill creates the screen for slot from the stored window, stores it and then
// arms its jobs. Caller must hold r.mu.
func (r *Rotator) fill(ctx context.Context, slot Slot) error {
	current, err := r.snapshot(ctx)
	if err != nil {
		return err
	}
	screen, err := r.factory.CreateScreen(ctx, r.version, slot, current)
	if err != nil {
		return err
	}
	if err := r.store(ctx, slot, screen); err != nil {
		return err
	}
	r.factory.schedule(r.version, slot, screen, r.RotateScreens)
	return nil
}

func (r *Rotator) snapshot(ctx context.Context) (Screens, error) {
	var s Screens
	for _, slot := range []Slot{SlotPrev, SlotCur, SlotNext} {
		scr, err := r.load(ctx, slot)
		if err != nil {
			return Screens{}, err
		}
		s.set(slot, scr)
	}
	return s, nil
}

func (r *Rotator) load(ctx context.Context, slot Slot) (*Screen, error) {
	key := cacheKey(r.version, slot)
	b, ok, err := r.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var scr Screen
	if err := json.Unmarshal(b, &scr); err != nil {
		return nil, fmt.Errorf("decode screen %s: %w", key, err)
	}
	return &scr, nil
}

func (r *Rotator) store(ctx context.Context, slot Slot, screen *Screen) error {
	key := cacheKey(r.version, slot)
	b, err := json.Marshal(screen)
	if err != nil {
		return fmt.Errorf("encode screen %s: %w", key, err)
	}
	return r.cache.Set(ctx, key, b)
}

// storeAll replaces the whole window in one cache write; nil slots are emptied.
func (r *Rotator) storeAll(ctx context.Context, s Screens) error {
	entries := make(map[string][]byte, 3)
	for _, slot := range []Slot{SlotPrev, SlotCur, SlotNext} {
		key := cacheKey(r.version, slot)
		scr := s.get(slot)
		if scr == nil {
			entries[key] = nil
			continue
		}
		b, err := json.Marshal(scr)
		if err != nil {
			return fmt.Errorf("encode screen %s: %w", key, err)
		}
		entries[key] = b
	}
	return r.cache.SetMany(ctx, entries)
}

func (s Screens) get(slot Slot) *Screen {
	switch slot {
	case SlotPrev:
		return s.Prev
	case SlotCur:
		return s.Cur
	case SlotNext:
		return s.Next
	}
	return nil
}

func (s *Screens) set(slot Slot, scr *Screen) {
	switch slot {
	case SlotPrev:
		s.Prev = scr
	case SlotCur:
		s.Cur = scr
	case SlotNext:
		s.Next = scr
	}
}

// Manager hands out one Rotator per available game version.
type Manager struct {
	registry *games.Registry
	cache    storage.Cache
	factory  *Factory
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu       sync.Mutex
	rotators map[int]*Rotator
}

// NewManager returns a Manager. now may be nil to use time.Now; m may be nil.
func NewManager(registry *games.Registry, cache storage.Cache, factory *Factory, log *slog.Logger, m *metrics.Metrics, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		registry: registry,
		cache:    cache,
		factory:  factory,
		log:      log,
		metrics:  m,
		now:      now,
		rotators: make(map[int]*Rotator),
	}
}

// Rotator returns the rotator of version, or games.ErrGameEditionUnavailable.
func (m *Manager) Rotator(version int) (*Rotator, error) {
	if err := m.registry.Require(version); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rotators[version]
	if !ok {
		r = &Rotator{
			version: version,
			cache:   m.cache,
			factory: m.factory,
			log:     m.log,
			metrics: m.metrics,
			now:     m.now,
		}
		m.rotators[version] = r
	}
	return r, nil
}

// Screens returns the refreshed window of version.
func (m *Manager) Screens(ctx context.Context, version int) (Screens, error) {
	r, err := m.Rotator(version)
	if err != nil {
		return Screens{}, err
	}
	return r.Screens(ctx, true)
}

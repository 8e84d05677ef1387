// Package score stores the star scores players send during a playlist screen.
package score

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"wdf-server/internal/platform/storage"
)

// Score is one submitted score.
type Score struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"size:128;not null" json:"userId"`
	SessionID string    `gorm:"size:128;not null;index" json:"sessionId"`
	Version   int       `gorm:"not null;index" json:"version"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName pins the table name.
func (Score) TableName() string { return "wdf_scores" }

// Store persists scores per game version.
type Store interface {
	Save(ctx context.Context, s *Score) error
	Count(ctx context.Context, version int) (int64, error)
	// DeleteByVersion removes every score of version and returns how many were removed.
	DeleteByVersion(ctx context.Context, version int) (int64, error)
}

// MemoryStore is a concurrency-safe in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint
	scores []Score
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save implements Store.Save.
func (m *MemoryStore) Save(_ context.Context, s *Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	s.ID = m.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.scores = append(m.scores, *s)
	return nil
}

// Count implements Store.Count.
func (m *MemoryStore) Count(_ context.Context, version int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range m.scores {
		if s.Version == version {
			n++
		}
	}
	return n, nil
}

// DeleteByVersion implements Store.DeleteByVersion.
func (m *MemoryStore) DeleteByVersion(_ context.Context, version int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.scores[:0]
	var deleted int64
	for _, s := range m.scores {
		if s.Version == version {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.scores = kept
	return deleted, nil
}

// GormStore is a Store backed by a SQL database through GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Save implements Store.Save.
func (g *GormStore) Save(ctx context.Context, s *Score) error {
	return storage.Wrap("save score", s, g.db.WithContext(ctx).Create(s).Error)
}

// Count implements Store.Count.
func (g *GormStore) Count(ctx context.Context, version int) (int64, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&Score{}).Where("version = ?", version).Count(&n).Error
	return n, storage.Wrap("count scores", map[string]int{"version": version}, err)
}

// DeleteByVersion implements Store.DeleteByVersion.
func (g *GormStore) DeleteByVersion(ctx context.Context, version int) (int64, error) {
	res := g.db.WithContext(ctx).Where("version = ?", version).Delete(&Score{})
	if res.Error != nil {
		return 0, storage.Wrap("delete scores", map[string]int{"version": version}, res.Error)
	}
	return res.RowsAffected, nil
}

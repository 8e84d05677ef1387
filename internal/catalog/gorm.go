package catalog

import (
	"context"

	"gorm.io/gorm"

	"wdf-server/internal/platform/storage"
)

// SongRecord is the songs table row.
type SongRecord struct {
	Name       string  `gorm:"primaryKey;size:255"`
	Version    int     `gorm:"primaryKey;autoIncrement:false"`
	LengthMs   float64 `gorm:"not null"`
	CoachCount int     `gorm:"not null;default:1"`
}

// TableName pins the table name.
func (SongRecord) TableName() string { return "songs" }

// GormCatalog is a Catalog backed by a SQL database through GORM.
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog wraps db.
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// Random implements Catalog.Random using ORDER BY RANDOM().
func (c *GormCatalog) Random(ctx context.Context, version, count int, exclude []string, f Filter) ([]Song, error) {
	var rows []SongRecord
	if err := c.randomQuery(c.db.WithContext(ctx), version, count, exclude, f).Find(&rows).Error; err != nil {
		return nil, storage.Wrap("get random songs", map[string]any{
			"version": version, "exclude": exclude, "filter": f,
		}, err)
	}

	songs := make([]Song, 0, len(rows))
	for _, r := range rows {
		songs = append(songs, Song{Name: r.Name, LengthMs: r.LengthMs, CoachCount: r.CoachCount, Version: r.Version})
	}
	return songs, nil
}

func (c *GormCatalog) randomQuery(db *gorm.DB, version, count int, exclude []string, f Filter) *gorm.DB {
	q := db.Model(&SongRecord{}).Where("version = ?", version)
	// NOT IN with an empty list would match nothing.
	if len(exclude) > 0 {
		q = q.Where("name NOT IN ?", exclude)
	}
	if f.MinCoachCount > 0 {
		q = q.Where("coach_count >= ?", f.MinCoachCount)
	}
	return q.Order("RANDOM()").Limit(count)
}

// Upsert inserts or replaces songs. Used to seed the table.
func (c *GormCatalog) Upsert(ctx context.Context, songs []Song) error {
	if len(songs) == 0 {
		return nil
	}
	rows := make([]SongRecord, 0, len(songs))
	for _, s := range songs {
		rows = append(rows, SongRecord{Name: s.Name, Version: s.Version, LengthMs: s.LengthMs, CoachCount: s.CoachCount})
	}
	return storage.Wrap("upsert songs", len(rows), c.db.WithContext(ctx).Save(&rows).Error)
}

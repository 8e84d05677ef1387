package catalog

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wdf-server/internal/platform/config"
)

func testSongs() []Song {
	return []Song{
		{Name: "Rasputin", LengthMs: 210000, CoachCount: 1, Version: 2015},
		{Name: "Macarena", LengthMs: 190000, CoachCount: 4, Version: 2015},
		{Name: "Happy", LengthMs: 233000, CoachCount: 2, Version: 2015},
		{Name: "Dragostea", LengthMs: 214000, CoachCount: 2, Version: 2016},
	}
}

func names(songs []Song) []string {
	out := make([]string, 0, len(songs))
	for _, s := range songs {
		out = append(out, s.Name)
	}
	return out
}

func TestMemoryCatalog_Random_filters_by_version_and_exclusion(t *testing.T) {
	c := NewMemoryCatalog(testSongs(), rand.New(rand.NewPCG(1, 2)))

	got, err := c.Random(context.Background(), 2015, 10, []string{"Happy"}, Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Rasputin", "Macarena"}, names(got))
}

func TestMemoryCatalog_Random_coach_filter(t *testing.T) {
	c := NewMemoryCatalog([]Song{
		{Name: "Solo", CoachCount: 1, Version: 2015},
		{Name: "Duo", CoachCount: 2, Version: 2015},
	}, nil)

	for i := 0; i < 20; i++ {
		got, err := c.Random(context.Background(), 2015, 1, nil, Filter{MinCoachCount: 2})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Duo", got[0].Name)
	}
}

func TestMemoryCatalog_Random_count_and_exhaustion(t *testing.T) {
	c := NewMemoryCatalog(testSongs(), nil)

	got, err := c.Random(context.Background(), 2015, 2, nil, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = c.Random(context.Background(), 2015, 1, []string{"Rasputin", "Macarena", "Happy"}, Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Random(context.Background(), 2020, 1, nil, Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFromSettings(t *testing.T) {
	got := FromSettings([]config.SongSettings{{Name: "Toxic", LengthMs: 200000, CoachCount: 1, Version: 2016}})
	assert.Equal(t, []Song{{Name: "Toxic", LengthMs: 200000, CoachCount: 1, Version: 2016}}, got)
}

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=wdf dbname=wdf sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)
	return db
}

func TestGormCatalog_randomQuery(t *testing.T) {
	db := dryRunDB(t)
	c := NewGormCatalog(db)

	var rows []SongRecord
	stmt := c.randomQuery(db, 2015, 1, []string{"Happy", "Toxic"}, Filter{MinCoachCount: 2}).Find(&rows).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, `"songs"`)
	assert.Contains(t, sql, "version = ")
	assert.Contains(t, sql, "name NOT IN")
	assert.Contains(t, sql, "coach_count >= ")
	assert.Contains(t, sql, "ORDER BY RANDOM()")
}

func TestGormCatalog_randomQuery_without_exclusions(t *testing.T) {
	db := dryRunDB(t)
	c := NewGormCatalog(db)

	var rows []SongRecord
	sql := c.randomQuery(db, 2015, 1, nil, Filter{}).Find(&rows).Statement.SQL.String()
	assert.NotContains(t, sql, "NOT IN")
	assert.NotContains(t, sql, "coach_count")
}

package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"wdf-server/internal/games"
	"wdf-server/internal/platform/config"
	"wdf-server/internal/platform/logger"
)

var baseTime = time.UnixMilli(1_700_000_000_000).UTC()

func newTestSession(sessionID, lobbyID string, version, country int) *Session {
	return &Session{
		UserID:    "user-" + sessionID,
		SessionID: sessionID,
		LobbyID:   lobbyID,
		Game:      Game{ID: "SJOP41", Version: version},
		Profile:   Profile{Name: "dancer " + sessionID, Country: country, Avatar: 1, Rank: 3},
		UpdatedAt: baseTime,
	}
}

// stores runs fn once per Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		fn(t, NewRedisStore(client))
	})
}

func testRegistry() *games.Registry {
	return games.NewRegistry([]config.GameSettings{
		{Version: 2015, IsAvailable: true, WDF: true},
		{Version: 2016, IsAvailable: true, WDF: true},
		{Version: 2014, IsAvailable: false, WDF: true},
	})
}

// sequentialIDs returns a lobby id generator producing lobby-1, lobby-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("lobby-%d", n)
	}
}

func newTestMatchmaker(store Store, maxPlayers int, policy Policy) *Matchmaker {
	mm := NewMatchmaker(store, maxPlayers, policy, logger.Discard(), nil)
	mm.newID = sequentialIDs()
	return mm
}

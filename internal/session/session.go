// Package session tracks connected players and groups them into lobbies.
package session

import (
	"context"
	"slices"
	"strings"
	"time"
)

// Game identifies the client build a session comes from.
type Game struct {
	ID      string `json:"id" validate:"required"`
	Version int    `json:"version" validate:"required"`
}

// Profile is the public dancer card shown to other players.
type Profile struct {
	Avatar  int    `json:"avatar" validate:"min=0"`
	Name    string `json:"name" validate:"required"`
	Rank    int    `json:"rank" validate:"min=0"`
	Country int    `json:"country" validate:"min=0"`
}

// Session is a connected player's matchmaking record. It is refreshed by
// pings and removed on disconnect or after inactivity.
type Session struct {
	UserID    string    `json:"userId" validate:"required"`
	SessionID string    `json:"sessionId" validate:"required"`
	LobbyID   string    `json:"lobbyId" validate:"required,uuid4"`
	Game      Game      `json:"game"`
	Profile   Profile   `json:"profile"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// matchesID reports whether id is the session's user id or session id.
func (s Session) matchesID(id string) bool {
	return s.UserID == id || s.SessionID == id
}

// Filter selects sessions. Zero-valued fields match everything.
type Filter struct {
	Version          int      `json:"version,omitempty"`
	LobbyID          string   `json:"lobbyId,omitempty"`
	Country          int      `json:"country,omitempty"`
	SessionIDs       []string `json:"sessionIds,omitempty"`
	ExcludeSessionID string   `json:"excludeSessionId,omitempty"`
}

// Matches reports whether s passes f.
func (f Filter) Matches(s Session) bool {
	switch {
	case f.Version != 0 && s.Game.Version != f.Version:
		return false
	case f.LobbyID != "" && s.LobbyID != f.LobbyID:
		return false
	case f.Country != 0 && s.Profile.Country != f.Country:
		return false
	case len(f.SessionIDs) > 0 && !slices.Contains(f.SessionIDs, s.SessionID):
		return false
	case f.ExcludeSessionID != "" && s.SessionID == f.ExcludeSessionID:
		return false
	}
	return true
}

func (f Filter) versionOnly() bool {
	return f.LobbyID == "" && f.Country == 0 && len(f.SessionIDs) == 0 && f.ExcludeSessionID == ""
}

// Lobby is a derived group of sessions sharing a lobby id. It is never stored.
type Lobby struct {
	ID         string   `json:"lobbyId"`
	SessionIDs []string `json:"sessions"`
}

// Store persists sessions. Lookups by "userOrSessionID" match either the
// user id or the session id. Missing sessions are not errors: Get returns
// nil, Delete and Ping return false.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, userOrSessionID string) (*Session, error)
	GetMany(ctx context.Context, f Filter) ([]Session, error)
	Delete(ctx context.Context, userOrSessionID string) (bool, error)
	DeleteMany(ctx context.Context, f Filter) (int, error)
	// Ping sets UpdatedAt of the session of version to at.
	Ping(ctx context.Context, version int, userOrSessionID string, at time.Time) (bool, error)
	Count(ctx context.Context, f Filter) (int, error)
	// DeleteInactive removes sessions last updated before the given time.
	DeleteInactive(ctx context.Context, before time.Time) (int, error)
}

func sortSessions(s []Session) {
	slices.SortFunc(s, func(a, b Session) int { return strings.Compare(a.SessionID, b.SessionID) })
}

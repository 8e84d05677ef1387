package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"wdf-server/internal/platform/metrics"
)

// Policy decides which eligible lobby a new session joins.
type Policy string

const (
	// PolicyFill joins the most crowded lobby that still has room.
	PolicyFill Policy = "fill"
	// PolicySpread joins the least crowded lobby.
	PolicySpread Policy = "spread"
)

// ParsePolicy accepts "fill" or "spread" in any case; empty means fill.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFill:
		return PolicyFill, nil
	case PolicySpread:
		return PolicySpread, nil
	}
	return "", fmt.Errorf("unknown lobby policy %q", s)
}

// Matchmaker assigns sessions to lobbies of at most maxPlayers sessions.
// Lobbies are derived from the lobby ids of stored sessions.
type Matchmaker struct {
	store      Store
	maxPlayers int
	policy     Policy
	newID      func() string
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// NewMatchmaker returns a Matchmaker. m may be nil.
func NewMatchmaker(store Store, maxPlayers int, policy Policy, log *slog.Logger, m *metrics.Metrics) *Matchmaker {
	return &Matchmaker{
		store:      store,
		maxPlayers: maxPlayers,
		policy:     policy,
		newID:      uuid.NewString,
		log:        log,
		metrics:    m,
	}
}

// GetLobbies groups the sessions of version by lobby id, ordered by id.
func (m *Matchmaker) GetLobbies(ctx context.Context, version int) ([]Lobby, error) {
	return m.lobbies(ctx, Filter{Version: version})
}

// GetLobby returns the lobby with the given id, or nil when it has no sessions.
func (m *Matchmaker) GetLobby(ctx context.Context, version int, lobbyID string) (*Lobby, error) {
	lobbies, err := m.lobbies(ctx, Filter{Version: version, LobbyID: lobbyID})
	if err != nil || len(lobbies) == 0 {
		return nil, err
	}
	return &lobbies[0], nil
}

// FindAvailableLobby returns the lobby picked by the policy among those with
// fewer than maxPlayers sessions, or nil when every lobby is full.
func (m *Matchmaker) FindAvailableLobby(ctx context.Context, version int) (*Lobby, error) {
	return m.findAvailable(ctx, Filter{Version: version})
}

// JoinLobby returns the lobby id sessionID should use. A previous record of
// the same session does not count towards occupancy. The check is not
// transactional; concurrent joins may overshoot maxPlayers by one.
func (m *Matchmaker) JoinLobby(ctx context.Context, version int, sessionID string) (string, error) {
	lobby, err := m.findAvailable(ctx, Filter{Version: version, ExcludeSessionID: sessionID})
	if err != nil {
		return "", err
	}
	if lobby != nil {
		m.metrics.IncLobbyJoins(false)
		return lobby.ID, nil
	}

	id := m.newID()
	m.metrics.IncLobbyJoins(true)
	m.log.Debug("opened lobby", slog.Int("version", version), slog.String("lobby_id", id))
	return id, nil
}

func (m *Matchmaker) findAvailable(ctx context.Context, f Filter) (*Lobby, error) {
	lobbies, err := m.lobbies(ctx, f)
	if err != nil {
		return nil, err
	}

	open := slices.DeleteFunc(lobbies, func(l Lobby) bool {
		return len(l.SessionIDs) >= m.maxPlayers
	})
	if len(open) == 0 {
		return nil, nil
	}

	// lobbies arrive ordered by id, so a stable sort keeps ties by id
	slices.SortStableFunc(open, func(a, b Lobby) int {
		if m.policy == PolicySpread {
			return len(a.SessionIDs) - len(b.SessionIDs)
		}
		return len(b.SessionIDs) - len(a.SessionIDs)
	})
	return &open[0], nil
}

func (m *Matchmaker) lobbies(ctx context.Context, f Filter) ([]Lobby, error) {
	sessions, err := m.store.GetMany(ctx, f)
	if err != nil {
		return nil, err
	}
	return groupLobbies(sessions), nil
}

func groupLobbies(sessions []Session) []Lobby {
	idx := make(map[string]int)
	var out []Lobby
	for _, s := range sessions {
		i, ok := idx[s.LobbyID]
		if !ok {
			i = len(out)
			idx[s.LobbyID] = i
			out = append(out, Lobby{ID: s.LobbyID})
		}
		out[i].SessionIDs = append(out[i].SessionIDs, s.SessionID)
	}
	slices.SortFunc(out, func(a, b Lobby) int { return strings.Compare(a.ID, b.ID) })
	return out
}

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"wdf-server/internal/games"
)

var (
	// ErrInvalidSession is returned when a session record fails validation.
	ErrInvalidSession = errors.New("invalid session")
	// ErrSessionNotFound is returned when an operation needs an existing session.
	ErrSessionNotFound = errors.New("session not found")
)

// Service manages session lifecycle on top of a Store and a Matchmaker.
type Service struct {
	store    Store
	mm       *Matchmaker
	registry *games.Registry
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
}

// NewService returns a Service. now may be nil to use time.Now.
func NewService(store Store, mm *Matchmaker, registry *games.Registry, log *slog.Logger, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    store,
		mm:       mm,
		registry: registry,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		now:      now,
	}
}

// NewSession assigns in to a lobby, validates and stores it.
func (s *Service) NewSession(ctx context.Context, in Session) (*Session, error) {
	if err := s.registry.Require(in.Game.Version); err != nil {
		return nil, fmt.Errorf("can't create session: %w", err)
	}

	lobbyID, err := s.mm.JoinLobby(ctx, in.Game.Version, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("can't create session: %w", err)
	}
	in.LobbyID = lobbyID
	in.UpdatedAt = s.now().UTC()

	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("can't create session: %w: %v", ErrInvalidSession, err)
	}
	if err := s.store.Create(ctx, &in); err != nil {
		return nil, fmt.Errorf("can't create session: %w", err)
	}
	return &in, nil
}

// Connect replaces any previous session with the same id by a new one. It
// also returns how many players of the edition were already connected from
// the same country.
func (s *Service) Connect(ctx context.Context, in Session) (*Session, int, error) {
	if err := s.registry.Require(in.Game.Version); err != nil {
		return nil, 0, fmt.Errorf("can't create session: %w", err)
	}

	inCountry, err := s.CountryPlayers(ctx, in.Game.Version, in.Profile.Country)
	if err != nil {
		return nil, 0, err
	}
	exists, err := s.Exists(ctx, in.SessionID)
	if err != nil {
		return nil, 0, err
	}
	if exists {
		if _, err := s.store.Delete(ctx, in.SessionID); err != nil {
			return nil, 0, err
		}
	}

	sess, err := s.NewSession(ctx, in)
	if err != nil {
		return nil, 0, err
	}
	s.log.Info("session joined lobby",
		slog.Int("version", sess.Game.Version),
		slog.String("game_id", sess.Game.ID),
		slog.String("session_id", sess.SessionID),
		slog.String("lobby_id", sess.LobbyID))
	return sess, inCountry, nil
}

// Exists reports whether a session exists for the user or session id.
func (s *Service) Exists(ctx context.Context, userOrSessionID string) (bool, error) {
	sess, err := s.store.Get(ctx, userOrSessionID)
	return sess != nil, err
}

// Delete removes the session of version. Removing a missing session, or one
// of another edition, reports false without an error.
func (s *Service) Delete(ctx context.Context, version int, userOrSessionID string) (bool, error) {
	if err := s.registry.Require(version); err != nil {
		return false, err
	}
	sess, err := s.store.Get(ctx, userOrSessionID)
	if err != nil || sess == nil || sess.Game.Version != version {
		return false, err
	}
	return s.store.Delete(ctx, sess.SessionID)
}

// Purge removes every session of a known edition, available or not, so
// leftovers of a disabled edition can be cleared.
func (s *Service) Purge(ctx context.Context, version int) (int, error) {
	if _, ok := s.registry.Get(version); !ok {
		return 0, fmt.Errorf("%d: %w", version, games.ErrGameEditionUnavailable)
	}
	n, err := s.store.DeleteMany(ctx, Filter{Version: version})
	if err != nil {
		return 0, err
	}
	s.log.Info("sessions purged", slog.Int("version", version), slog.Int("count", n))
	return n, nil
}

// Ping marks a session of version as active.
func (s *Service) Ping(ctx context.Context, version int, userOrSessionID string) (bool, error) {
	if err := s.registry.Require(version); err != nil {
		return false, err
	}
	return s.store.Ping(ctx, version, userOrSessionID, s.now().UTC())
}

// Count returns the number of sessions matching f.
func (s *Service) Count(ctx context.Context, f Filter) (int, error) {
	return s.store.Count(ctx, f)
}

// CountryPlayers counts the sessions of version from country.
func (s *Service) CountryPlayers(ctx context.Context, version, country int) (int, error) {
	return s.store.Count(ctx, Filter{Version: version, Country: country})
}

// Lobbies lists the lobbies of version.
func (s *Service) Lobbies(ctx context.Context, version int) ([]Lobby, error) {
	if err := s.registry.Require(version); err != nil {
		return nil, err
	}
	return s.mm.GetLobbies(ctx, version)
}

// Lobby returns one lobby of version, or nil when it has no sessions.
func (s *Service) Lobby(ctx context.Context, version int, lobbyID string) (*Lobby, error) {
	if err := s.registry.Require(version); err != nil {
		return nil, err
	}
	return s.mm.GetLobby(ctx, version, lobbyID)
}

// LobbyMates returns the caller's session and the other sessions of its lobby.
func (s *Service) LobbyMates(ctx context.Context, version int, sessionID string) (*Session, []Session, error) {
	if err := s.registry.Require(version); err != nil {
		return nil, nil, err
	}
	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil || sess.Game.Version != version {
		return nil, nil, fmt.Errorf("%s: %w", sessionID, ErrSessionNotFound)
	}

	lobby, err := s.mm.GetLobby(ctx, version, sess.LobbyID)
	if err != nil {
		return nil, nil, err
	}
	if lobby == nil {
		return sess, nil, nil
	}
	mates, err := s.store.GetMany(ctx, Filter{
		Version:          version,
		SessionIDs:       lobby.SessionIDs,
		ExcludeSessionID: sess.SessionID,
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, mates, nil
}

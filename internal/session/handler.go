package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wdf-server/internal/games"
	"wdf-server/internal/platform/respond"
)

// Handler exposes the session and lobby endpoints.
type Handler struct {
	svc *Service
	log *slog.Logger
	now func() time.Time
}

// NewHandler returns a Handler. now may be nil to use time.Now.
func NewHandler(svc *Service, log *slog.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{svc: svc, log: log, now: now}
}

type connectRequest struct {
	UserID    string  `json:"userId"`
	SessionID string  `json:"sessionId"`
	GameID    string  `json:"gameId"`
	Profile   Profile `json:"profile"`
}

type connectResponse struct {
	SessionID        string  `json:"sessionId"`
	LobbyID          string  `json:"lobbyId"`
	PlayersInCountry int     `json:"playersInCountry"`
	T                float64 `json:"t"`
}

// Player is the public view of a lobby mate.
type Player struct {
	SessionID string `json:"sid"`
	Name      string `json:"name"`
	Country   int    `json:"country"`
	Avatar    int    `json:"avatar"`
	Rank      int    `json:"rank"`
}

type playersResponse struct {
	PlayerName string   `json:"playerName"`
	Players    []Player `json:"players"`
	Count      int      `json:"count"`
}

// Connect handles POST /wdf/{version}/sessions.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}

	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid session body", slog.String("error", err.Error()))
		respond.Error(w, http.StatusBadRequest, "invalid body")
		return
	}

	sess, inCountry, err := h.svc.Connect(r.Context(), Session{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Game:      Game{ID: req.GameID, Version: version},
		Profile:   req.Profile,
	})
	if err != nil {
		h.writeError(w, "connect session failed", err)
		return
	}

	respond.JSON(w, http.StatusCreated, connectResponse{
		SessionID:        sess.SessionID,
		LobbyID:          sess.LobbyID,
		PlayersInCountry: inCountry,
		T:                float64(h.now().UnixMilli()) / 1000,
	})
}

// Ping handles POST /wdf/{version}/sessions/{session_id}/ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}

	found, err := h.svc.Ping(r.Context(), version, chi.URLParam(r, "session_id"))
	if err != nil {
		h.writeError(w, "ping session failed", err)
		return
	}
	if !found {
		respond.Error(w, http.StatusNotFound, ErrSessionNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /wdf/{version}/sessions/{session_id}. Deleting a
// missing session succeeds.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}

	sessionID := chi.URLParam(r, "session_id")
	if _, err := h.svc.Delete(r.Context(), version, sessionID); err != nil {
		h.writeError(w, "delete session failed", err)
		return
	}
	h.log.Debug("session deleted", slog.Int("version", version), slog.String("session_id", sessionID))
	w.WriteHeader(http.StatusNoContent)
}

// Purge handles DELETE /wdf/{version}/sessions and reports how many sessions
// were removed.
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}

	n, err := h.svc.Purge(r.Context(), version)
	if err != nil {
		h.writeError(w, "purge sessions failed", err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// Players handles GET /wdf/{version}/sessions/{session_id}/players. It lists
// the caller's lobby mates and counts as a ping. An unknown session is a 404;
// clients connect through POST /sessions first.
func (h *Handler) Players(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}
	ctx := r.Context()

	sess, mates, err := h.svc.LobbyMates(ctx, version, chi.URLParam(r, "session_id"))
	if err != nil {
		h.writeError(w, "list lobby mates failed", err)
		return
	}
	if _, err := h.svc.Ping(ctx, version, sess.SessionID); err != nil {
		h.writeError(w, "ping session failed", err)
		return
	}
	count, err := h.svc.Count(ctx, Filter{Version: version})
	if err != nil {
		h.writeError(w, "count sessions failed", err)
		return
	}

	players := make([]Player, 0, len(mates))
	for _, m := range mates {
		players = append(players, Player{
			SessionID: m.SessionID,
			Name:      m.Profile.Name,
			Country:   m.Profile.Country,
			Avatar:    m.Profile.Avatar,
			Rank:      m.Profile.Rank,
		})
	}
	respond.JSON(w, http.StatusOK, playersResponse{
		PlayerName: sess.Profile.Name,
		Players:    players,
		Count:      count,
	})
}

// Lobbies handles GET /wdf/{version}/lobbies.
func (h *Handler) Lobbies(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}

	lobbies, err := h.svc.Lobbies(r.Context(), version)
	if err != nil {
		h.writeError(w, "list lobbies failed", err)
		return
	}
	if lobbies == nil {
		lobbies = []Lobby{}
	}
	respond.JSON(w, http.StatusOK, lobbies)
}

// Lobby handles GET /wdf/{version}/lobbies/{lobby_id}.
func (h *Handler) Lobby(w http.ResponseWriter, r *http.Request) {
	version, ok := respond.Version(r)
	if !ok {
		respond.Error(w, http.StatusBadRequest, "invalid game version")
		return
	}

	lobby, err := h.svc.Lobby(r.Context(), version, chi.URLParam(r, "lobby_id"))
	if err != nil {
		h.writeError(w, "get lobby failed", err)
		return
	}
	if lobby == nil {
		respond.Error(w, http.StatusNotFound, "lobby not found")
		return
	}
	respond.JSON(w, http.StatusOK, lobby)
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, games.ErrGameEditionUnavailable), errors.Is(err, ErrSessionNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidSession):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error(msg, slog.String("error", err.Error()))
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}

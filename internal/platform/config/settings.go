package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxLobbyPlayers is used when the settings file does not set one.
const DefaultMaxLobbyPlayers = 8

// Durations is the static phase duration table, in milliseconds.
type Durations struct {
	Presentation             float64 `yaml:"presentation_duration"`
	WaitingRecap             float64 `yaml:"waiting_recap_duration"`
	SessionResult            float64 `yaml:"session_result_duration"`
	WorldResult              float64 `yaml:"world_result_duration"`
	VoteResult               float64 `yaml:"vote_result_duration"`
	VoteChoice               float64 `yaml:"vote_choice_duration"`
	VoteComputationDelay     float64 `yaml:"vote_computation_delay"`
	PlaylistRequestDelay     float64 `yaml:"playlist_request_delay"`
	PlaylistComputationDelay float64 `yaml:"playlist_computation_delay"`
	CommunityChoice          float64 `yaml:"community_choice_duration"`
	CommunityResult          float64 `yaml:"community_result_duration"`
	CoachChoice              float64 `yaml:"coach_choice_duration"`
	CoachResult              float64 `yaml:"coach_result_duration"`
	StarChallengeIntro       float64 `yaml:"star_challenge_intro_duration"`
	StarChallengeOutro       float64 `yaml:"star_challenge_outro_duration"`
	AutodanceResult          float64 `yaml:"autodance_result_duration"`
	SendStarsDelay           float64 `yaml:"send_stars_delay"`
	UnlockComputationDelay   float64 `yaml:"unlock_computation_delay"`
}

// ThemeSettings configures one playlist theme.
type ThemeSettings struct {
	ID          int  `yaml:"id"`
	IsAvailable bool `yaml:"is_available"`
}

// GameSettings describes one game edition.
type GameSettings struct {
	Version     int    `yaml:"version"`
	Name        string `yaml:"name"`
	IsAvailable bool   `yaml:"is_available"`
	WDF         bool   `yaml:"wdf"`
}

// SongSettings seeds the in-memory song catalog when no database is configured.
type SongSettings struct {
	Name       string  `yaml:"name"`
	LengthMs   float64 `yaml:"length_ms"`
	CoachCount int     `yaml:"coach_count"`
	Version    int     `yaml:"version"`
}

// Settings is the static game configuration loaded at process start.
type Settings struct {
	Durations       Durations       `yaml:"durations"`
	Themes          []ThemeSettings `yaml:"themes"`
	Communities     []string        `yaml:"communities"`
	Games           []GameSettings  `yaml:"games"`
	Songs           []SongSettings  `yaml:"songs"`
	MaxLobbyPlayers int             `yaml:"max_lobby_players"`
}

// DefaultDurations returns the duration table shipped with the server.
func DefaultDurations() Durations {
	return Durations{
		Presentation:             8000,
		WaitingRecap:             3000,
		SessionResult:            8000,
		WorldResult:              12000,
		VoteResult:               6000,
		VoteChoice:               15000,
		VoteComputationDelay:     2000,
		PlaylistRequestDelay:     2000,
		PlaylistComputationDelay: 2000,
		CommunityChoice:          10000,
		CommunityResult:          8000,
		CoachChoice:              10000,
		CoachResult:              8000,
		StarChallengeIntro:       8000,
		StarChallengeOutro:       8000,
		AutodanceResult:          6000,
		SendStarsDelay:           5000,
		UnlockComputationDelay:   2000,
	}
}

// DefaultSettings returns settings usable without any settings file.
func DefaultSettings() Settings {
	return Settings{
		Durations: DefaultDurations(),
		Themes: []ThemeSettings{
			{ID: 0, IsAvailable: true},
			{ID: 1, IsAvailable: true},
			{ID: 2, IsAvailable: true},
			{ID: 3, IsAvailable: true},
			{ID: 4, IsAvailable: true},
		},
		Communities: []string{"Test1", "Test2"},
		Games: []GameSettings{
			{Version: 2015, Name: "Just Dance 2015", IsAvailable: true, WDF: true},
			{Version: 2016, Name: "Just Dance 2016", IsAvailable: true, WDF: true},
			{Version: 2017, Name: "Just Dance 2017", IsAvailable: true, WDF: true},
		},
		MaxLobbyPlayers: DefaultMaxLobbyPlayers,
	}
}

// LoadSettings reads a YAML settings file. Sections missing from the file keep
// the values of DefaultSettings; an empty path returns the defaults.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if s.MaxLobbyPlayers <= 0 {
		s.MaxLobbyPlayers = DefaultMaxLobbyPlayers
	}
	return s, nil
}

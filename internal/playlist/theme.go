package playlist

import (
	"fmt"
	"slices"

	"wdf-server/internal/platform/config"
)

// ThemeID is the activity type of a screen. The numeric values are the ids
// the game client knows.
type ThemeID int

const (
	ThemeAutodance ThemeID = iota
	ThemeCommunity
	ThemeVote
	ThemeCoach
	ThemeStarChallenge
)

func (t ThemeID) String() string {
	switch t {
	case ThemeAutodance:
		return "autodance"
	case ThemeCommunity:
		return "community"
	case ThemeVote:
		return "vote"
	case ThemeCoach:
		return "coach"
	case ThemeStarChallenge:
		return "star_challenge"
	}
	return fmt.Sprintf("theme(%d)", int(t))
}

// Theme is a configured theme. Communities is only set on community screens.
type Theme struct {
	ID          ThemeID  `json:"id"`
	IsAvailable bool     `json:"isAvailable"`
	Communities []string `json:"communities,omitempty"`
}

// ThemesFromSettings converts the settings theme list.
func ThemesFromSettings(in []config.ThemeSettings) []Theme {
	out := make([]Theme, 0, len(in))
	for _, t := range in {
		out = append(out, Theme{ID: ThemeID(t.ID), IsAvailable: t.IsAvailable})
	}
	return out
}

type durationFunc func(d config.Durations) float64

// preSongOffset is the time between a screen's base time and its
// presentation start.
var preSongOffset = map[ThemeID]durationFunc{
	ThemeVote:          func(d config.Durations) float64 { return d.VoteResult },
	ThemeCommunity:     func(d config.Durations) float64 { return d.CommunityChoice },
	ThemeCoach:         func(d config.Durations) float64 { return d.CoachChoice },
	ThemeStarChallenge: func(d config.Durations) float64 { return d.StarChallengeIntro },
}

// themeResultOffset is the theme specific phase between recap and session result.
var themeResultOffset = map[ThemeID]durationFunc{
	ThemeAutodance:     func(d config.Durations) float64 { return d.AutodanceResult },
	ThemeCommunity:     func(d config.Durations) float64 { return d.CommunityResult },
	ThemeCoach:         func(d config.Durations) float64 { return d.CoachResult },
	ThemeStarChallenge: func(d config.Durations) float64 { return d.StarChallengeOutro },
}

// lookup returns 0 for themes absent from table.
func lookup(table map[ThemeID]durationFunc, t ThemeID, d config.Durations) float64 {
	if f, ok := table[t]; ok {
		return f(d)
	}
	return 0
}

// songFilterMinCoaches returns the minimum coach count a theme requires.
// Coach screens only use non-solo songs.
func songFilterMinCoaches(t ThemeID) int {
	if t == ThemeCoach {
		return 2
	}
	return 0
}

// pickTheme picks uniformly among available themes not in exclude. When the
// exclusion leaves nothing (a single-theme setup) the excluded themes are
// allowed again.
func pickTheme(themes []Theme, exclude []ThemeID, intN func(int) int) (Theme, bool) {
	var available, candidates []Theme
	for _, t := range themes {
		if !t.IsAvailable {
			continue
		}
		available = append(available, t)
		if !slices.Contains(exclude, t.ID) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		candidates = available
	}
	if len(candidates) == 0 {
		return Theme{}, false
	}
	return candidates[intN(len(candidates))], true
}

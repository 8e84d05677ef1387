package playlist

import (
	"math"

	"wdf-server/internal/platform/config"
)

// Timeline holds the absolute epoch-millisecond milestones of one screen.
// Fields the theme/slot combination does not define are zero.
type Timeline struct {
	BaseTime                   float64 `json:"base_time"`
	PresentationStartTime      float64 `json:"presentation_start_time"`
	StartSongTime              float64 `json:"start_song_time"`
	StopSongTime               float64 `json:"stop_song_time"`
	RecapStartTime             float64 `json:"recap_start_time"`
	SessionResultStartTime     float64 `json:"session_result_start_time"`
	SessionToWorldResultTime   float64 `json:"session_to_world_result_time"`
	WorldResultStopTime        float64 `json:"world_result_stop_time"`
	LastVoteTime               float64 `json:"last_vote_time"`
	UnlockComputationTime      float64 `json:"unlock_computation_time"`
	RequestUnlockTime          float64 `json:"request_unlock_time"`
	PlaylistComputationTime    float64 `json:"playlist_computation_time,omitempty"`
	SecondRequestPlaylistTime  float64 `json:"second_request_playlist_time,omitempty"`
	RequestPlaylistTime        float64 `json:"request_playlist_time"`
	MergeComputationTime       float64 `json:"merge_computation_time"`
	MergeComputationDurationMs float64 `json:"merge_computation_duration_in_ms"`
}

// Programming carries the timestamps the client uses to prefetch the next screen.
type Programming struct {
	RequestPlaylistTime float64 `json:"request_playlist_time"`
	NextStartSongTime   float64 `json:"next_start_song_time"`
}

// ComputeTimeline derives every milestone of a screen from its base time.
// It is a pure function of its arguments.
func ComputeTimeline(baseTime float64, theme ThemeID, songLengthMs float64, isNext bool, d config.Durations) (Timeline, Programming) {
	t := Timeline{BaseTime: baseTime}

	// Pre-song
	t.PresentationStartTime = baseTime + lookup(preSongOffset, theme, d)
	t.StartSongTime = t.PresentationStartTime + d.Presentation

	// Post-song
	t.StopSongTime = round3(t.StartSongTime + songLengthMs)
	t.RecapStartTime = t.StopSongTime + d.WaitingRecap
	t.SessionResultStartTime = t.RecapStartTime + lookup(themeResultOffset, theme, d)
	t.SessionToWorldResultTime = t.SessionResultStartTime + d.SessionResult
	t.WorldResultStopTime = t.SessionToWorldResultTime + d.WorldResult

	t.MergeComputationTime = t.SessionToWorldResultTime + d.WorldResult/4
	t.MergeComputationDurationMs = d.WorldResult / 2

	switch {
	case isNext && theme == ThemeVote:
		t.LastVoteTime = t.WorldResultStopTime + d.VoteChoice
		t.PlaylistComputationTime = t.LastVoteTime + d.VoteComputationDelay
		t.SecondRequestPlaylistTime = t.LastVoteTime + d.VoteComputationDelay + d.PlaylistComputationDelay
	case isNext && theme == ThemeStarChallenge:
		// Only keeps the chronology ordered, there is no vote.
		t.LastVoteTime = t.WorldResultStopTime + d.StarChallengeIntro
	default:
		t.LastVoteTime = t.WorldResultStopTime
		t.PlaylistComputationTime = t.WorldResultStopTime - d.PlaylistRequestDelay - d.PlaylistComputationDelay
	}

	t.RequestPlaylistTime = t.WorldResultStopTime

	t.UnlockComputationTime = t.StopSongTime + d.SendStarsDelay
	t.RequestUnlockTime = t.UnlockComputationTime + d.UnlockComputationDelay

	nextStepTime := t.WorldResultStopTime
	if isNext && theme == ThemeVote {
		nextStepTime = t.RequestPlaylistTime
	}
	nextPresentationStart := nextStepTime + lookup(preSongOffset, theme, d)

	return t, Programming{
		RequestPlaylistTime: t.RequestPlaylistTime,
		NextStartSongTime:   nextPresentationStart + d.Presentation,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

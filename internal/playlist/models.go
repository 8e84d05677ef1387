package playlist

import (
	"fmt"

	"wdf-server/internal/catalog"
)

// Slot is the position of a screen in the rotation window.
type Slot string

const (
	SlotPrev Slot = "prev"
	SlotCur  Slot = "cur"
	SlotNext Slot = "next"
)

// Screen is one timed unit of the playlist. Stored screens are never modified.
type Screen struct {
	Theme             Theme        `json:"theme"`
	Song              catalog.Song `json:"map"`
	Timing            Timeline     `json:"timing"`
	TimingProgramming Programming  `json:"timingProgramming"`
}

// Screens is the rotation window of one game version. Any slot may be nil.
type Screens struct {
	Prev *Screen `json:"prev"`
	Cur  *Screen `json:"cur"`
	Next *Screen `json:"next"`
}

// stale reports whether a scheduled rotation was missed, which happens when
// the process was not running at the screen's playlist request time.
func (s Screens) stale(nowMs float64) bool {
	return (s.Cur != nil && nowMs > s.Cur.Timing.RequestPlaylistTime) ||
		(s.Next != nil && nowMs > s.Next.Timing.RequestPlaylistTime)
}

// songNames returns the song names of the populated slots.
func (s Screens) songNames() []string {
	var out []string
	for _, scr := range []*Screen{s.Prev, s.Cur, s.Next} {
		if scr != nil {
			out = append(out, scr.Song.Name)
		}
	}
	return out
}

func cacheKey(version int, slot Slot) string {
	return fmt.Sprintf("playlist:%d:%s", version, slot)
}

package analytics

import (
	"math"
	"sort"

	"github.com/theatlasimpact/papermark-vansgiving/internal/tinybird"
)

// allowedVideoEvents are the playback event types that count toward watch time.
var allowedVideoEvents = map[string]struct{}{
	"played":       {},
	"muted":        {},
	"unmuted":      {},
	"rate_changed": {},
}

// VideoResult is the engagement summary for one view of a video document.
type VideoResult struct {
	// TotalWatchTimeMs counts every watched second including replays, so a
	// rewatched section contributes more than once.
	TotalWatchTimeMs int64

	// UniqueWatchSeconds counts each second of the video at most once.
	UniqueWatchSeconds int

	// CompletionRate is min(100, round(100 * unique / length)), or 0 for an
	// unknown length. It uses the deduplicated count so replays cannot
	// inflate how much of the video was seen.
	CompletionRate int
}

// AggregateVideo converts playback intervals for one view into watch-time
// metrics. Only events for the given view with an allowed type and a span of
// at least one second count; shorter intervals are playback noise.
//
// Second boundaries are floored before bucketing, which can under-count
// sub-second playback at interval edges. That approximation is intentional
// and matched by the recording side.
func AggregateVideo(events []tinybird.VideoEvent, viewID string, videoLengthSeconds int) VideoResult {
	seconds := newSecondSet(videoLengthSeconds)
	totalSeconds := 0

	for _, ev := range events {
		if !validPlayback(ev, viewID) {
			continue
		}

		start := int(math.Floor(ev.StartTime))
		end := int(math.Floor(ev.EndTime))
		for t := start; t < end; t++ {
			totalSeconds++
			seconds.add(t)
		}
	}

	completion := 0
	if videoLengthSeconds > 0 {
		completion = int(math.Round(100 * float64(seconds.count()) / float64(videoLengthSeconds)))
		if completion > 100 {
			completion = 100
		}
	}

	return VideoResult{
		TotalWatchTimeMs:   int64(totalSeconds) * 1000,
		UniqueWatchSeconds: seconds.count(),
		CompletionRate:     completion,
	}
}

func validPlayback(ev tinybird.VideoEvent, viewID string) bool {
	if viewID != "" && ev.ViewID != viewID {
		return false
	}
	if _, ok := allowedVideoEvents[ev.EventType]; !ok {
		return false
	}
	return ev.EndTime > ev.StartTime && ev.EndTime-ev.StartTime >= 1
}

// SecondViews is the number of playbacks observed at one second offset.
type SecondViews struct {
	StartTime int `json:"start_time"`
	Views     int `json:"views"`
}

// WatchDistribution builds the per-second playback count over a video,
// including zero entries for unwatched seconds, ordered by second offset.
// Events are assumed to belong to a single view already.
func WatchDistribution(events []tinybird.VideoEvent, videoLengthSeconds int) []SecondViews {
	counts := make(map[int]int, videoLengthSeconds+1)
	for t := 0; t <= videoLengthSeconds; t++ {
		counts[t] = 0
	}

	for _, ev := range events {
		if !validPlayback(ev, "") {
			continue
		}

		start := int(math.Floor(ev.StartTime))
		end := int(math.Floor(ev.EndTime))
		for t := start; t < end; t++ {
			counts[t]++
		}
	}

	distribution := make([]SecondViews, 0, len(counts))
	for t, views := range counts {
		distribution = append(distribution, SecondViews{StartTime: t, Views: views})
	}

	sort.Slice(distribution, func(i, j int) bool {
		return distribution[i].StartTime < distribution[j].StartTime
	})

	return distribution
}

// secondSet tracks distinct watched seconds. When the video length is known
// it uses a fixed-size bit array for predictable memory on long videos,
// spilling seconds outside [0, length) into a map.
type secondSet struct {
	bits     []uint64
	length   int
	overflow map[int]struct{}
	n        int
}

func newSecondSet(length int) *secondSet {
	s := &secondSet{length: length}
	if length > 0 {
		s.bits = make([]uint64, (length+63)/64)
	}
	return s
}

func (s *secondSet) add(t int) {
	if t >= 0 && t < s.length {
		word, bit := t/64, uint(t%64)
		if s.bits[word]&(1<<bit) == 0 {
			s.bits[word] |= 1 << bit
			s.n++
		}
		return
	}

	if s.overflow == nil {
		s.overflow = make(map[int]struct{})
	}
	if _, seen := s.overflow[t]; !seen {
		s.overflow[t] = struct{}{}
		s.n++
	}
}

func (s *secondSet) count() int {
	return s.n
}

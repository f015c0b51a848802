package analytics

import (
	"math"

	"github.com/theatlasimpact/papermark-vansgiving/internal/tinybird"
)

// PagedResult is the engagement summary for one view of a paged document.
type PagedResult struct {
	TotalDurationMs int64
	CompletionRate  int // 0 to 100
}

// AggregatePaged converts per-page duration sums for one view into a total
// duration and a completion percentage.
//
// The backend reports durations in seconds; this is the single point where
// they become milliseconds. Completion is the share of distinct pages with a
// positive duration, rounded, and clamped to [0, 100] in case the event
// stream carries duplicate page numbers.
func AggregatePaged(durations []tinybird.PageDuration, numPages int) PagedResult {
	var totalSeconds float64
	pagesWithSignal := make(map[string]struct{})

	for _, d := range durations {
		totalSeconds += d.SumDuration
		if d.SumDuration > 0 {
			pagesWithSignal[d.PageNumber] = struct{}{}
		}
	}

	completion := 0
	if numPages > 0 {
		completion = int(math.Round(100 * float64(len(pagesWithSignal)) / float64(numPages)))
	}
	completion = clampRate(completion)

	return PagedResult{
		TotalDurationMs: int64(math.Round(totalSeconds * 1000)),
		CompletionRate:  completion,
	}
}

// clampRate bounds a completion percentage to [0, 100].
func clampRate(rate int) int {
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

package analytics

import (
	"context"
	"errors"
	"fmt"

	"github.com/theatlasimpact/papermark-vansgiving/internal/tinybird"
	"github.com/theatlasimpact/papermark-vansgiving/internal/view"
)

// PageStat is the average time spent on one page across all counted views.
type PageStat struct {
	PageNumber    string `json:"pageNumber"`
	AvgDurationMs int64  `json:"avg_duration"`
}

// DocumentStats summarizes engagement across every counted view of a document.
type DocumentStats struct {
	TotalViews      int        `json:"total_views"`
	TotalDurationMs int64      `json:"total_duration"`
	AvgDurationMs   int64      `json:"avg_duration"`
	PageStats       []PageStat `json:"page_stats"`

	AnalyticsEnabled           bool   `json:"analytics_enabled"`
	AnalyticsUnavailableReason string `json:"analytics_unavailable_reason,omitempty"`
}

// ViewStats carries the per-page engagement of a single view of a paged
// document.
type ViewStats struct {
	PageDurations   []PageDurationMs `json:"duration"`
	TotalDurationMs int64            `json:"total_duration"`
	CompletionRate  int              `json:"completion_rate"`

	AnalyticsEnabled           bool   `json:"analytics_enabled"`
	AnalyticsUnavailableReason string `json:"analytics_unavailable_reason,omitempty"`
}

// ViewVideoStats carries the playback metrics of a single view of a video
// document, including the per-second watch distribution.
type ViewVideoStats struct {
	TotalWatchTimeMs   int64         `json:"total_watch_time"`
	UniqueWatchSeconds int           `json:"unique_watch_time"`
	CompletionRate     int           `json:"completion_rate"`
	Distribution       []SecondViews `json:"distribution"`

	AnalyticsEnabled           bool   `json:"analytics_enabled"`
	AnalyticsUnavailableReason string `json:"analytics_unavailable_reason,omitempty"`
}

// DocumentStats aggregates totals and per-page averages for one document.
// Unlike ViewReport, a missing document surfaces document.ErrDocumentNotFound
// so callers can answer with a 404.
func (e *Engine) DocumentStats(ctx context.Context, documentID, teamID string, excludeTeamMembers bool) (*DocumentStats, error) {
	doc, err := e.documents.GetByTeam(documentID, teamID)
	if err != nil {
		return nil, err
	}

	views, err := e.views.ListByDocument(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list views for document %s: %w", doc.ID, err)
	}

	memberEmails, err := e.teams.ListActiveMemberEmails(doc.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team member emails: %w", err)
	}
	members := make(map[string]struct{}, len(memberEmails))
	for _, email := range memberEmails {
		members[email] = struct{}{}
	}

	// Excluded views stay in the database but are carved out of the
	// time-series aggregates by ID.
	var excludedViewIDs []string
	counted := 0
	for _, v := range views {
		if v.IsArchived {
			excludedViewIDs = append(excludedViewIDs, v.ID)
			continue
		}
		if excludeTeamMembers && v.ViewerEmail != nil {
			if _, ok := members[*v.ViewerEmail]; ok {
				excludedViewIDs = append(excludedViewIDs, v.ID)
				continue
			}
		}
		counted++
	}

	var (
		totalRes tinybird.Result[[]tinybird.TotalDuration]
		avgRes   tinybird.Result[[]tinybird.PageAvgDuration]
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		avgRes = recordQuery(e.metrics, tinybird.PipeAvgPageDuration, e.tsdb.GetAvgPageDuration(ctx, doc.ID, excludedViewIDs, 0))
	}()
	totalRes = recordQuery(e.metrics, tinybird.PipeTotalDocumentDuration, e.tsdb.GetTotalDocumentDuration(ctx, doc.ID, excludedViewIDs, 0))
	<-done

	avail, err := Classify([]tinybird.Outcome{
		tinybird.OutcomeOf(totalRes),
		tinybird.OutcomeOf(avgRes),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query document durations: %w", err)
	}

	stats := &DocumentStats{
		TotalViews:                 counted,
		PageStats:                  []PageStat{},
		AnalyticsEnabled:           avail.Enabled,
		AnalyticsUnavailableReason: avail.Reason,
	}
	if !avail.Enabled {
		return stats, nil
	}

	var totalMs int64
	for _, d := range totalRes.Data() {
		totalMs += int64(d.SumDuration * 1000)
	}
	stats.TotalDurationMs = totalMs
	if counted > 0 {
		stats.AvgDurationMs = totalMs / int64(counted)
	}
	for _, d := range avgRes.Data() {
		stats.PageStats = append(stats.PageStats, PageStat{
			PageNumber:    d.PageNumber,
			AvgDurationMs: int64(d.AvgDuration * 1000),
		})
	}
	return stats, nil
}

// ViewStats aggregates the per-page durations of a single view. The view must
// belong to the given document; a mismatch reads the same as a missing view.
func (e *Engine) ViewStats(ctx context.Context, documentID, teamID, viewID string) (*ViewStats, error) {
	doc, err := e.documents.GetByTeam(documentID, teamID)
	if err != nil {
		return nil, err
	}

	v, err := e.views.GetByID(viewID)
	if err != nil {
		return nil, err
	}
	if v.DocumentID != doc.ID {
		return nil, view.ErrViewNotFound
	}

	result := recordQuery(e.metrics, tinybird.PipePageDuration, e.tsdb.GetPageDuration(ctx, doc.ID, v.ID, 0))
	avail, err := Classify([]tinybird.Outcome{tinybird.OutcomeOf(result)})
	if err != nil {
		return nil, fmt.Errorf("failed to query view durations: %w", err)
	}

	stats := &ViewStats{
		PageDurations:              []PageDurationMs{},
		AnalyticsEnabled:           avail.Enabled,
		AnalyticsUnavailableReason: avail.Reason,
	}
	if !avail.Enabled {
		return stats, nil
	}

	versions, err := e.documents.ListVersions(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document versions: %w", err)
	}
	ver := ResolveVersion(v, versions)
	numPages := 0
	if ver.NumPages != nil {
		numPages = *ver.NumPages
	} else if doc.NumPages != nil {
		numPages = *doc.NumPages
	}

	durations := result.Data()
	agg := AggregatePaged(durations, numPages)
	stats.TotalDurationMs = agg.TotalDurationMs
	stats.CompletionRate = agg.CompletionRate
	if ms := toMilliseconds(durations); ms != nil {
		stats.PageDurations = ms
	}
	return stats, nil
}

// ViewVideoStats aggregates playback metrics for a single view of a video
// document, including the per-second watch distribution used for heatmaps.
func (e *Engine) ViewVideoStats(ctx context.Context, documentID, teamID, viewID string) (*ViewVideoStats, error) {
	doc, err := e.documents.GetByTeam(documentID, teamID)
	if err != nil {
		return nil, err
	}
	if !doc.IsVideo() {
		return nil, fmt.Errorf("document %s is not a video: %w", doc.ID, errors.ErrUnsupported)
	}

	v, err := e.views.GetByID(viewID)
	if err != nil {
		return nil, err
	}
	if v.DocumentID != doc.ID {
		return nil, view.ErrViewNotFound
	}

	result := recordQuery(e.metrics, tinybird.PipeVideoEventsByView, e.tsdb.GetVideoEventsByView(ctx, v.ID, doc.ID))
	avail, err := Classify([]tinybird.Outcome{tinybird.OutcomeOf(result)})
	if err != nil {
		return nil, fmt.Errorf("failed to query playback events: %w", err)
	}

	stats := &ViewVideoStats{
		Distribution:               []SecondViews{},
		AnalyticsEnabled:           avail.Enabled,
		AnalyticsUnavailableReason: avail.Reason,
	}
	if !avail.Enabled {
		return stats, nil
	}

	versions, err := e.documents.ListVersions(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document versions: %w", err)
	}
	length := 0
	if len(versions) > 0 && versions[0].Length != nil {
		length = *versions[0].Length
	}

	events := result.Data()
	agg := AggregateVideo(events, v.ID, length)
	stats.TotalWatchTimeMs = agg.TotalWatchTimeMs
	stats.UniqueWatchSeconds = agg.UniqueWatchSeconds
	stats.CompletionRate = agg.CompletionRate
	stats.Distribution = WatchDistribution(events, length)
	return stats, nil
}

package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/theatlasimpact/papermark-vansgiving/internal/document"
	"github.com/theatlasimpact/papermark-vansgiving/internal/plan"
	"github.com/theatlasimpact/papermark-vansgiving/internal/team"
	"github.com/theatlasimpact/papermark-vansgiving/internal/tinybird"
	"github.com/theatlasimpact/papermark-vansgiving/internal/view"
)

// ErrMissingTarget is returned when Options names neither a document nor a link.
var ErrMissingTarget = errors.New("analytics: either document id or link id is required")

// Engine turns raw views and time-series durations into engagement reports.
type Engine struct {
	documents document.Repository
	links     document.LinkRepository
	views     view.Repository
	teams     team.Repository
	tsdb      TimeSeriesClient
	gate      plan.Gate
	logger    *slog.Logger

	cache   *ReportCache
	metrics *Metrics
}

// NewEngine creates an Engine. Cache and metrics are optional and may be nil.
func NewEngine(
	documents document.Repository,
	links document.LinkRepository,
	views view.Repository,
	teams team.Repository,
	tsdb TimeSeriesClient,
	gate plan.Gate,
	logger *slog.Logger,
	cache *ReportCache,
	metrics *Metrics,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		documents: documents,
		links:     links,
		views:     views,
		teams:     teams,
		tsdb:      tsdb,
		gate:      gate,
		logger:    logger,
		cache:     cache,
		metrics:   metrics,
	}
}

// ViewReport produces one page of per-view engagement rows for a document or
// link. Unknown documents and links yield an empty well-formed report rather
// than an error, so a dashboard poll for a just-deleted target renders an
// empty state instead of failing.
func (e *Engine) ViewReport(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.normalized()

	if opts.DocumentID == "" && opts.LinkID == "" {
		return nil, ErrMissingTarget
	}

	start := time.Now()

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, opts); ok {
			if e.metrics != nil {
				e.metrics.IncCacheHit()
			}
			e.observe(OutcomeCacheHit, time.Since(start))
			return cached, nil
		}
		if e.metrics != nil {
			e.metrics.IncCacheMiss()
		}
	}

	doc, views, err := e.resolveTarget(opts)
	if err != nil {
		if errors.Is(err, errTargetGone) {
			e.observe(OutcomeEmpty, time.Since(start))
			return emptyReport(opts), nil
		}
		return nil, err
	}

	tm, err := e.teams.GetByID(doc.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to load team %s: %w", doc.TeamID, err)
	}

	memberEmails, err := e.teams.ListActiveMemberEmails(doc.TeamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team member emails: %w", err)
	}
	members := make(map[string]struct{}, len(memberEmails))
	for _, email := range memberEmails {
		members[email] = struct{}{}
	}

	versions, err := e.documents.ListVersions(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list document versions: %w", err)
	}

	// Archived views never appear, but they also never count toward the
	// total. Team-member exclusion applies after that, plan caps last.
	totalItems := 0
	filtered := make([]*view.View, 0, len(views))
	for _, v := range views {
		if v.IsArchived {
			continue
		}
		totalItems++
		if opts.ExcludeTeamMembers && v.ViewerEmail != nil {
			if _, ok := members[*v.ViewerEmail]; ok {
				continue
			}
		}
		filtered = append(filtered, v)
	}

	eligible := filtered
	if detailLimit := e.gate.ViewDetailLimit(tm.Plan); detailLimit >= 0 && len(eligible) > detailLimit {
		eligible = eligible[:detailLimit]
	}
	hidden := len(filtered) - len(eligible)

	skip := (opts.Page - 1) * opts.Limit
	var pageViews []*view.View
	if skip < len(eligible) {
		end := skip + opts.Limit
		if end > len(eligible) {
			end = len(eligible)
		}
		pageViews = eligible[skip:end]
	}

	var (
		rows     []ViewRow
		outcomes []tinybird.Outcome
	)
	if doc.IsVideo() {
		rows, outcomes = e.videoRows(ctx, doc, versions, pageViews, members)
	} else {
		rows, outcomes = e.pagedRows(ctx, doc, versions, pageViews, members)
	}

	avail, err := Classify(outcomes)
	if err != nil {
		e.observe(OutcomeError, time.Since(start))
		return nil, fmt.Errorf("failed to query view durations: %w", err)
	}
	if !avail.Enabled {
		if e.metrics != nil {
			e.metrics.IncDegraded()
		}
		for i := range rows {
			rows[i].PageDurations = nil
			rows[i].TotalDurationMs = 0
			rows[i].CompletionRate = 0
		}
	}

	report := &Report{
		Rows:                       rows,
		HiddenViewCount:            hidden,
		TotalViews:                 totalItems,
		Pagination:                 paginate(opts.Page, opts.Limit, totalItems),
		AnalyticsEnabled:           avail.Enabled,
		AnalyticsUnavailableReason: avail.Reason,
	}

	if e.cache != nil && avail.Enabled {
		if err := e.cache.Set(ctx, opts, report); err != nil {
			e.logger.Warn("failed to cache view report", "document_id", doc.ID, "error", err)
		}
	}

	e.observe(OutcomeOK, time.Since(start))
	return report, nil
}

// errTargetGone signals that the requested document or link does not exist
// or is deleted. Internal to resolveTarget and ViewReport.
var errTargetGone = errors.New("analytics: target gone")

func (e *Engine) resolveTarget(opts Options) (*document.Document, []*view.View, error) {
	if opts.LinkID != "" {
		link, err := e.links.GetByID(opts.LinkID)
		if errors.Is(err, document.ErrLinkNotFound) {
			return nil, nil, errTargetGone
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load link %s: %w", opts.LinkID, err)
		}
		if link.Deleted() {
			return nil, nil, errTargetGone
		}

		doc, err := e.documents.GetByID(link.DocumentID)
		if errors.Is(err, document.ErrDocumentNotFound) {
			return nil, nil, errTargetGone
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load document %s: %w", link.DocumentID, err)
		}

		views, err := e.views.ListByLink(opts.LinkID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list views for link %s: %w", opts.LinkID, err)
		}
		return doc, views, nil
	}

	var (
		doc *document.Document
		err error
	)
	if opts.TeamID != "" {
		doc, err = e.documents.GetByTeam(opts.DocumentID, opts.TeamID)
	} else {
		doc, err = e.documents.GetByID(opts.DocumentID)
	}
	if errors.Is(err, document.ErrDocumentNotFound) {
		return nil, nil, errTargetGone
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document %s: %w", opts.DocumentID, err)
	}

	views, err := e.views.ListByDocument(doc.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list views for document %s: %w", doc.ID, err)
	}
	return doc, views, nil
}

// pagedRows fans out one duration query per view on the current page and
// aggregates each into a row. Results land by index, so row order matches
// view order regardless of completion order.
func (e *Engine) pagedRows(ctx context.Context, doc *document.Document, versions []*document.Version, pageViews []*view.View, members map[string]struct{}) ([]ViewRow, []tinybird.Outcome) {
	results := make([]tinybird.Result[[]tinybird.PageDuration], len(pageViews))

	var wg sync.WaitGroup
	for i, v := range pageViews {
		wg.Add(1)
		go func(i int, v *view.View) {
			defer wg.Done()
			results[i] = recordQuery(e.metrics, tinybird.PipePageDuration, e.tsdb.GetPageDuration(ctx, doc.ID, v.ID, 0))
		}(i, v)
	}
	wg.Wait()

	rows := make([]ViewRow, 0, len(pageViews))
	outcomes := make([]tinybird.Outcome, 0, len(pageViews))
	for i, v := range pageViews {
		outcomes = append(outcomes, tinybird.OutcomeOf(results[i]))

		ver := ResolveVersion(v, versions)
		numPages := 0
		if ver.NumPages != nil {
			numPages = *ver.NumPages
		} else if doc.NumPages != nil {
			numPages = *doc.NumPages
		}

		durations := results[i].Data()
		agg := AggregatePaged(durations, numPages)

		row := e.baseRow(v, members)
		row.VersionNumber = ver.VersionNumber
		row.VersionNumPages = numPages
		row.TotalDurationMs = agg.TotalDurationMs
		row.CompletionRate = agg.CompletionRate
		row.PageDurations = toMilliseconds(durations)
		rows = append(rows, row)
	}
	return rows, outcomes
}

// videoRows issues a single document-wide event query and slices it per view.
func (e *Engine) videoRows(ctx context.Context, doc *document.Document, versions []*document.Version, pageViews []*view.View, members map[string]struct{}) ([]ViewRow, []tinybird.Outcome) {
	result := recordQuery(e.metrics, tinybird.PipeVideoEventsByDocument, e.tsdb.GetVideoEventsByDocument(ctx, doc.ID))
	outcomes := []tinybird.Outcome{tinybird.OutcomeOf(result)}

	length := 0
	if len(versions) > 0 && versions[0].Length != nil {
		length = *versions[0].Length
	}

	events := result.Data()
	rows := make([]ViewRow, 0, len(pageViews))
	for _, v := range pageViews {
		ver := ResolveVersion(v, versions)
		agg := AggregateVideo(events, v.ID, length)

		row := e.baseRow(v, members)
		row.VersionNumber = ver.VersionNumber
		row.TotalDurationMs = agg.TotalWatchTimeMs
		row.CompletionRate = agg.CompletionRate
		rows = append(rows, row)
	}
	return rows, outcomes
}

func (e *Engine) baseRow(v *view.View, members map[string]struct{}) ViewRow {
	internal := false
	if v.ViewerEmail != nil {
		_, internal = members[*v.ViewerEmail]
	}

	return ViewRow{
		ViewID:      v.ID,
		DocumentID:  v.DocumentID,
		LinkID:      v.LinkID,
		LinkName:    v.LinkName,
		ViewerEmail: v.ViewerEmail,
		ViewedAt:    v.ViewedAt,
		Internal:    internal,
	}
}

func (e *Engine) observe(outcome string, elapsed time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveReport(outcome, elapsed)
	}
}

// recordQuery counts one backend query under its pipe name before
// handing the result back to the caller.
func recordQuery[T any](m *Metrics, pipe string, r tinybird.Result[T]) tinybird.Result[T] {
	if m == nil {
		return r
	}
	switch {
	case r.OK():
		m.IncTimeseriesQuery(pipe, "ok")
	case r.Unauthorized():
		m.IncTimeseriesQuery(pipe, "unauthorized")
	default:
		m.IncTimeseriesQuery(pipe, "error")
	}
	return r
}

func toMilliseconds(durations []tinybird.PageDuration) []PageDurationMs {
	if len(durations) == 0 {
		return nil
	}
	out := make([]PageDurationMs, 0, len(durations))
	for _, d := range durations {
		out = append(out, PageDurationMs{
			PageNumber: d.PageNumber,
			DurationMs: int64(d.SumDuration * 1000),
		})
	}
	return out
}

func emptyReport(opts Options) *Report {
	return &Report{
		Rows:             []ViewRow{},
		Pagination:       paginate(opts.Page, opts.Limit, 0),
		AnalyticsEnabled: true,
	}
}

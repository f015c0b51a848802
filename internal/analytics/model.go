package analytics

import (
	"context"
	"time"

	"github.com/theatlasimpact/papermark-vansgiving/internal/tinybird"
)

// Default and maximum page sizes for view listings.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TimeSeriesClient is the engine's view of the time-series backend.
// Implemented by tinybird.Client; faked in tests.
type TimeSeriesClient interface {
	GetPageDuration(ctx context.Context, documentID, viewID string, since int64) tinybird.Result[[]tinybird.PageDuration]
	GetVideoEventsByDocument(ctx context.Context, documentID string) tinybird.Result[[]tinybird.VideoEvent]
	GetVideoEventsByView(ctx context.Context, viewID, documentID string) tinybird.Result[[]tinybird.VideoEvent]
	GetAvgPageDuration(ctx context.Context, documentID string, excludedViewIDs []string, since int64) tinybird.Result[[]tinybird.PageAvgDuration]
	GetTotalDocumentDuration(ctx context.Context, documentID string, excludedViewIDs []string, since int64) tinybird.Result[[]tinybird.TotalDuration]
}

// Options selects the views to report on. Exactly one of DocumentID or
// LinkID must be set; TeamID additionally scopes document lookups.
type Options struct {
	DocumentID         string
	LinkID             string
	TeamID             string
	Page               int
	Limit              int
	ExcludeTeamMembers bool
}

// normalized returns a copy with page and limit clamped to valid values.
func (o Options) normalized() Options {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
	return o
}

// PageDurationMs is one per-page duration, converted to milliseconds.
type PageDurationMs struct {
	PageNumber string `json:"pageNumber"`
	DurationMs int64  `json:"sum_duration"`
}

// ViewRow is one view enriched with engagement metrics and the version
// attribution in effect when the view occurred.
type ViewRow struct {
	ViewID          string           `json:"id"`
	DocumentID      string           `json:"document_id"`
	LinkID          *string          `json:"link_id,omitempty"`
	LinkName        *string          `json:"link_name,omitempty"`
	ViewerEmail     *string          `json:"viewer_email,omitempty"`
	ViewedAt        time.Time        `json:"viewed_at"`
	PageDurations   []PageDurationMs `json:"duration,omitempty"`
	TotalDurationMs int64            `json:"total_duration"`
	CompletionRate  int              `json:"completion_rate"`
	VersionNumber   int              `json:"version_number"`
	VersionNumPages int              `json:"version_num_pages"` // 0 for video documents
	Internal        bool             `json:"internal"`          // viewer email belongs to a team member
}

// Pagination describes the position of a page of rows within the full set.
// TotalItems is the count of non-archived views, independent of plan caps
// and team-member exclusion: what is available to page through, not what the
// plan allows to see in detail.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	PageSize    int  `json:"page_size"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

func paginate(page, limit, totalItems int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (totalItems + limit - 1) / limit
	}

	return Pagination{
		CurrentPage: page,
		PageSize:    limit,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrev:     page > 1 && totalItems > 0,
	}
}

// Report is the aggregated response for a page of views.
type Report struct {
	Rows []ViewRow `json:"rows"`

	// HiddenViewCount is how many filtered views fell past the plan cap.
	HiddenViewCount int `json:"hidden_view_count"`

	// TotalViews is the number of non-archived views of the document.
	TotalViews int `json:"total_views"`

	Pagination Pagination `json:"pagination"`

	AnalyticsEnabled           bool   `json:"analytics_enabled"`
	AnalyticsUnavailableReason string `json:"analytics_unavailable_reason,omitempty"`
}

package tinybird

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the Tinybird API endpoint used when none is configured.
const DefaultBaseURL = "https://api.tinybird.co"

// defaultTimeout bounds a single pipe query.
const defaultTimeout = 10 * time.Second

// Pipe names. Each corresponds to a published Tinybird pipe.
const (
	PipePageDuration          = "page_duration_per_view__v1"
	PipeVideoEventsByDocument = "video_events_by_document__v1"
	PipeVideoEventsByView     = "video_events_by_view__v1"
	PipeAvgPageDuration       = "avg_page_duration__v1"
	PipeTotalDocumentDuration = "total_document_duration__v1"
)

// PageDuration is one (page, view) duration observation.
// SumDuration is in backend-native seconds; conversion to milliseconds
// happens once, in the aggregation layer.
type PageDuration struct {
	PageNumber  string  `json:"pageNumber"`
	SumDuration float64 `json:"sum_duration"`
}

// PageAvgDuration is the average duration spent on one page across views.
type PageAvgDuration struct {
	PageNumber    string  `json:"pageNumber"`
	AvgDuration   float64 `json:"avg_duration"`
	VersionNumber int     `json:"versionNumber"`
}

// TotalDuration is the summed duration across all views of a document.
type TotalDuration struct {
	SumDuration float64 `json:"sum_duration"`
}

// VideoEvent is one playback interval observation for a view.
// Times are in seconds; the interval is half-open [StartTime, EndTime).
type VideoEvent struct {
	ViewID    string  `json:"view_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	EventType string  `json:"event_type"` // "played", "muted", "unmuted", "rate_changed", ...
}

// Client issues pipe queries against the Tinybird API.
// A Client with an empty token never issues requests; every query
// short-circuits to an unauthorized result so callers degrade uniformly.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// NewClient creates a Client. An empty baseURL falls back to DefaultBaseURL.
// Outbound requests are traced via otelhttp.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GetPageDuration retrieves per-page duration sums for a single view.
func (c *Client) GetPageDuration(ctx context.Context, documentID, viewID string, since int64) Result[[]PageDuration] {
	params := url.Values{}
	params.Set("documentId", documentID)
	params.Set("viewId", viewID)
	params.Set("since", strconv.FormatInt(since, 10))

	return query[[]PageDuration](ctx, c, PipePageDuration, params)
}

// GetVideoEventsByDocument retrieves playback events for every view of a document.
func (c *Client) GetVideoEventsByDocument(ctx context.Context, documentID string) Result[[]VideoEvent] {
	params := url.Values{}
	params.Set("document_id", documentID)

	return query[[]VideoEvent](ctx, c, PipeVideoEventsByDocument, params)
}

// GetVideoEventsByView retrieves playback events for a single view.
func (c *Client) GetVideoEventsByView(ctx context.Context, viewID, documentID string) Result[[]VideoEvent] {
	params := url.Values{}
	params.Set("view_id", viewID)
	params.Set("document_id", documentID)

	return query[[]VideoEvent](ctx, c, PipeVideoEventsByView, params)
}

// GetAvgPageDuration retrieves per-page average durations for a document,
// excluding the given view IDs.
func (c *Client) GetAvgPageDuration(ctx context.Context, documentID string, excludedViewIDs []string, since int64) Result[[]PageAvgDuration] {
	params := url.Values{}
	params.Set("documentId", documentID)
	params.Set("excludedViewIds", strings.Join(excludedViewIDs, ","))
	params.Set("since", strconv.FormatInt(since, 10))

	return query[[]PageAvgDuration](ctx, c, PipeAvgPageDuration, params)
}

// GetTotalDocumentDuration retrieves the total duration across all views of a
// document, excluding the given view IDs.
func (c *Client) GetTotalDocumentDuration(ctx context.Context, documentID string, excludedViewIDs []string, since int64) Result[[]TotalDuration] {
	params := url.Values{}
	params.Set("documentId", documentID)
	params.Set("excludedViewIds", strings.Join(excludedViewIDs, ","))
	params.Set("since", strconv.FormatInt(since, 10))

	return query[[]TotalDuration](ctx, c, PipeTotalDocumentDuration, params)
}

// pipeResponse is the envelope Tinybird wraps every pipe result in.
type pipeResponse[T any] struct {
	Data T `json:"data"`
}

// query executes a pipe query and classifies the outcome into a Result.
// HTTP 401/403 and bodies mentioning "Unauthorized" map to the unauthorized
// variant; every other failure maps to the error variant.
func query[T any](ctx context.Context, c *Client, pipe string, params url.Values) Result[T] {
	// Absent credential and runtime rejection look identical to callers.
	if c.token == "" {
		return Unauthorized[T]()
	}

	endpoint := fmt.Sprintf("%s/v0/pipes/%s.json?%s", c.baseURL, pipe, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Failure[T](fmt.Errorf("failed to build pipe request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Failure[T](fmt.Errorf("pipe %s request failed: %w", pipe, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Unauthorized[T]()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure[T](fmt.Errorf("failed to read pipe %s response: %w", pipe, err))
	}

	if resp.StatusCode != http.StatusOK {
		if strings.Contains(string(body), "Unauthorized") {
			return Unauthorized[T]()
		}
		return Failure[T](fmt.Errorf("pipe %s returned status %d", pipe, resp.StatusCode))
	}

	var envelope pipeResponse[T]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Failure[T](fmt.Errorf("failed to decode pipe %s response: %w", pipe, err))
	}

	return OK(envelope.Data)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/theatlasimpact/papermark-vansgiving/internal/analytics"
	"github.com/theatlasimpact/papermark-vansgiving/internal/document"
	"github.com/theatlasimpact/papermark-vansgiving/internal/middleware"
	"github.com/theatlasimpact/papermark-vansgiving/internal/team"
	"github.com/theatlasimpact/papermark-vansgiving/internal/view"
)

// FileURLSigner produces time-limited download URLs for stored document files.
type FileURLSigner interface {
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)
}

// AnalyticsHandlers holds dependencies for engagement report HTTP handlers.
type AnalyticsHandlers struct {
	engine    *analytics.Engine
	teams     team.Repository
	documents document.Repository
	links     document.LinkRepository
	files     FileURLSigner // nil when file storage is not configured
}

// NewAnalyticsHandlers creates a new AnalyticsHandlers instance.
func NewAnalyticsHandlers(engine *analytics.Engine, teams team.Repository, documents document.Repository, links document.LinkRepository, files FileURLSigner) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		engine:    engine,
		teams:     teams,
		documents: documents,
		links:     links,
		files:     files,
	}
}

// Register attaches the analytics routes to the mux.
func (h *AnalyticsHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/teams/", h.routeTeams)
	mux.HandleFunc("/links/", h.routeLinks)
}

// routeTeams dispatches /teams/{teamId}/documents/{documentId}/... requests.
func (h *AnalyticsHandlers) routeTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/teams/"), "/")
	if len(parts) < 4 || parts[1] != "documents" || parts[0] == "" || parts[2] == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	teamID, documentID := parts[0], parts[2]

	if !h.requireMember(w, r, teamID) {
		return
	}

	switch {
	case len(parts) == 4 && parts[3] == "views":
		h.listViews(w, r, teamID, documentID)
	case len(parts) == 4 && parts[3] == "stats":
		h.documentStats(w, r, teamID, documentID)
	case len(parts) == 4 && parts[3] == "file":
		h.fileURL(w, r, teamID, documentID)
	case len(parts) == 6 && parts[3] == "views" && parts[5] == "stats":
		h.viewStats(w, r, teamID, documentID, parts[4])
	case len(parts) == 6 && parts[3] == "views" && parts[5] == "video-stats":
		h.viewVideoStats(w, r, teamID, documentID, parts[4])
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	}
}

// routeLinks dispatches /links/{linkId}/visits requests.
func (h *AnalyticsHandlers) routeLinks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/links/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "visits" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
		return
	}
	linkID := parts[0]

	// Link visits are authorized through the owning document's team. An
	// unknown link or document falls through so the engine can serve its
	// empty report; any other lookup failure fails closed.
	link, err := h.links.GetByID(linkID)
	if err != nil && !errors.Is(err, document.ErrLinkNotFound) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to authorize link access")
		return
	}
	if err == nil {
		doc, derr := h.documents.GetByID(link.DocumentID)
		if derr != nil && !errors.Is(derr, document.ErrDocumentNotFound) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to authorize link access")
			return
		}
		if derr == nil && !h.requireMember(w, r, doc.TeamID) {
			return
		}
	}

	opts := analytics.Options{
		LinkID:             linkID,
		Page:               queryInt(r, "page", 1),
		Limit:              queryInt(r, "limit", analytics.DefaultPageSize),
		ExcludeTeamMembers: queryBool(r, "excludeTeamMembers"),
	}

	report, rerr := h.engine.ViewReport(r.Context(), opts)
	if rerr != nil {
		h.writeEngineError(w, r, rerr)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, report)
}

// listViews handles GET /teams/{teamId}/documents/{documentId}/views.
func (h *AnalyticsHandlers) listViews(w http.ResponseWriter, r *http.Request, teamID, documentID string) {
	opts := analytics.Options{
		DocumentID:         documentID,
		TeamID:             teamID,
		Page:               queryInt(r, "page", 1),
		Limit:              queryInt(r, "limit", analytics.DefaultPageSize),
		ExcludeTeamMembers: queryBool(r, "excludeTeamMembers"),
	}

	report, err := h.engine.ViewReport(r.Context(), opts)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, report)
}

// documentStats handles GET /teams/{teamId}/documents/{documentId}/stats.
func (h *AnalyticsHandlers) documentStats(w http.ResponseWriter, r *http.Request, teamID, documentID string) {
	stats, err := h.engine.DocumentStats(r.Context(), documentID, teamID, queryBool(r, "excludeTeamMembers"))
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, stats)
}

// viewStats handles GET /teams/{teamId}/documents/{documentId}/views/{viewId}/stats.
func (h *AnalyticsHandlers) viewStats(w http.ResponseWriter, r *http.Request, teamID, documentID, viewID string) {
	stats, err := h.engine.ViewStats(r.Context(), documentID, teamID, viewID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, stats)
}

// viewVideoStats handles GET /teams/{teamId}/documents/{documentId}/views/{viewId}/video-stats.
func (h *AnalyticsHandlers) viewVideoStats(w http.ResponseWriter, r *http.Request, teamID, documentID, viewID string) {
	stats, err := h.engine.ViewVideoStats(r.Context(), documentID, teamID, viewID)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotVideo)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeNotVideo, "Document is not a video")
			return
		}
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, stats)
}

// FileURLResponse carries a presigned download URL for a document file.
type FileURLResponse struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// fileURL handles GET /teams/{teamId}/documents/{documentId}/file.
func (h *AnalyticsHandlers) fileURL(w http.ResponseWriter, r *http.Request, teamID, documentID string) {
	if h.files == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeStorageUnavailable)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeStorageUnavailable, "File storage is not configured")
		return
	}

	doc, err := h.documents.GetByTeam(documentID, teamID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if doc.File == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Document has no stored file")
		return
	}

	const expiry = 15 * time.Minute
	url, err := h.files.PresignGet(r.Context(), doc.File, expiry)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to sign file URL")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, FileURLResponse{
		URL:       url,
		ExpiresIn: int(expiry.Seconds()),
	})
}

// requireMember verifies the authenticated user is an active member of the
// team, writing the error response itself when not.
func (h *AnalyticsHandlers) requireMember(w http.ResponseWriter, r *http.Request, teamID string) bool {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return false
	}

	member, err := h.teams.GetMember(teamID, userID)
	if errors.Is(err, team.ErrMemberNotFound) || errors.Is(err, team.ErrTeamNotFound) {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Not a member of this team")
		return false
	}
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to check team membership")
		return false
	}
	if !member.Active() {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeForbidden)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "Membership is not active")
		return false
	}
	return true
}

// writeEngineError maps engine errors to API error responses.
func (h *AnalyticsHandlers) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, document.ErrDocumentNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeDocumentNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeDocumentNotFound, "Document not found")
	case errors.Is(err, view.ErrViewNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeViewNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeViewNotFound, "View not found")
	case errors.Is(err, document.ErrLinkNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Link not found")
	case errors.Is(err, analytics.ErrMissingTarget):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Either document id or link id is required")
	default:
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to build engagement report")
	}
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Response already started; nothing useful to send the client.
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// queryInt parses an integer query parameter, falling back on absence or
// malformed input.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// queryBool parses a boolean query parameter; anything but "true" is false.
func queryBool(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}

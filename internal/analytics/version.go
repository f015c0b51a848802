// Package analytics computes per-view and per-document engagement metrics
// from raw time-series events, attributed against the document version that
// was active at viewing time.
package analytics

import (
	"github.com/theatlasimpact/papermark-vansgiving/internal/document"
	"github.com/theatlasimpact/papermark-vansgiving/internal/view"
)

// ResolveVersion selects the document version in effect when the view
// occurred: the first version (in the given created_at-descending order)
// created at or before the view.
//
// A view that predates every recorded version (possible for views migrated
// from another source) gets the most recent version as a best-effort fallback
// rather than an error. With no versions at all, a synthetic version 1 is
// returned.
func ResolveVersion(v *view.View, versions []*document.Version) *document.Version {
	for _, ver := range versions {
		if !ver.CreatedAt.After(v.ViewedAt) {
			return ver
		}
	}

	if len(versions) > 0 {
		return versions[0]
	}

	return &document.Version{VersionNumber: 1}
}

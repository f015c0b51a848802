// Package plan provides subscription plan normalization and feature gating.
// Plans limit how much view detail a team can see; the analytics pipeline
// consults the gate before computing per-view engagement.
package plan

import "strings"

// Known plan identifiers, lowest tier first.
const (
	Free          = "free"
	Starter       = "starter"
	Pro           = "pro"
	Trial         = "trial"
	Business      = "business"
	Datarooms     = "datarooms"
	DataroomsPlus = "datarooms-plus"
)

// FreeViewLimit is the number of views whose engagement detail is computed
// for teams without the viewsFull feature. Views beyond the limit are counted
// but their metrics are hidden.
const FreeViewLimit = 20

// Feature identifies a plan-gated capability.
type Feature string

// Plan-gated features.
const (
	FeatureCustomDomain    Feature = "custom_domain"
	FeatureAnalyticsExport Feature = "analytics_export"
	FeatureAdvancedLinks   Feature = "advanced_links"
	FeatureWebhooks        Feature = "webhooks"
	FeatureViewsFull       Feature = "views_full"
)

// featurePlans maps each feature to the plans that include it.
var featurePlans = map[Feature][]string{
	FeatureCustomDomain:    {Starter, Pro, Business, Datarooms, DataroomsPlus},
	FeatureAnalyticsExport: {Pro, Business, Datarooms, DataroomsPlus},
	FeatureAdvancedLinks:   {Pro, Business, Datarooms, DataroomsPlus},
	FeatureWebhooks:        {Business, Datarooms, DataroomsPlus},
	FeatureViewsFull:       {Pro, Business, Datarooms, DataroomsPlus},
}

var knownPlans = map[string]bool{
	Free:          true,
	Starter:       true,
	Pro:           true,
	Trial:         true,
	Business:      true,
	Datarooms:     true,
	DataroomsPlus: true,
}

// Normalize maps a raw plan string to a known plan identifier.
// Suffixes after "+" (e.g. "pro+drtrial") are stripped; unknown plans map to free.
func Normalize(raw string) string {
	base := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(base, "+"); i >= 0 {
		base = base[:i]
	}
	if knownPlans[base] {
		return base
	}
	return Free
}

// Gate evaluates feature access for a team's plan.
// Self-hosted deployments get every feature regardless of plan.
type Gate struct {
	SelfHosted bool
}

// HasFeature reports whether the given raw plan includes the feature.
func (g Gate) HasFeature(rawPlan string, f Feature) bool {
	if g.SelfHosted {
		return true
	}

	normalized := Normalize(rawPlan)
	for _, p := range featurePlans[f] {
		if p == normalized {
			return true
		}
	}
	return false
}

// ViewDetailLimit returns how many filtered views are eligible for detailed
// engagement metrics under the given plan. A negative value means unlimited.
func (g Gate) ViewDetailLimit(rawPlan string) int {
	if g.HasFeature(rawPlan, FeatureViewsFull) {
		return -1
	}
	return FreeViewLimit
}

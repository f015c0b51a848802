package analytics

import (
	"github.com/theatlasimpact/papermark-vansgiving/internal/tinybird"
)

// ReasonUnauthorized is the analyticsUnavailableReason reported when the
// time-series backend rejects (or lacks) credentials.
const ReasonUnauthorized = "unauthorized"

// Availability is the per-request decision on whether real analytics can be
// reported. When Enabled is false every duration and completion field in the
// response must be zero; metrics are never partially populated.
type Availability struct {
	Enabled bool
	Reason  string
}

// Classify decides, from the outcomes of every time-series query a request
// issued, whether to degrade gracefully or fail:
//
//   - any non-authorization error fails the whole request, since zeroed
//     metrics would be indistinguishable from "no engagement";
//   - otherwise any unauthorized outcome degrades the response, regardless of
//     partial success elsewhere;
//   - otherwise analytics are enabled.
//
// Aggregators never suppress errors themselves; this is the single place the
// decision is made, so every endpoint reports the same availability for the
// same backend condition.
func Classify(outcomes []tinybird.Outcome) (Availability, error) {
	for _, o := range outcomes {
		if o.Err != nil {
			return Availability{}, o.Err
		}
	}

	for _, o := range outcomes {
		if o.Unauthorized {
			return Availability{Enabled: false, Reason: ReasonUnauthorized}, nil
		}
	}

	return Availability{Enabled: true}, nil
}

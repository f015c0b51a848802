package billing

import (
	"github.com/stripe/stripe-go/v81"

	"github.com/theatlasimpact/papermark-vansgiving/internal/plan"
)

// PriceMap maps Stripe price IDs to plan identifiers. Deployments configure
// it from their Stripe dashboard; unknown prices fall through to the price
// nickname so a renamed price degrades to name-based matching instead of
// silently downgrading a team.
type PriceMap map[string]string

// PlanForSubscription derives the plan a subscription entitles its team to.
// A subscription that is no longer active always maps to the free plan.
func PlanForSubscription(sub *stripe.Subscription, prices PriceMap) string {
	if sub == nil {
		return plan.Free
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing, stripe.SubscriptionStatusPastDue:
	default:
		return plan.Free
	}

	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return plan.Free
	}

	price := sub.Items.Data[0].Price
	if price == nil {
		return plan.Free
	}

	if mapped, ok := prices[price.ID]; ok {
		return plan.Normalize(mapped)
	}
	if price.Nickname != "" {
		return plan.Normalize(price.Nickname)
	}
	if price.LookupKey != "" {
		return plan.Normalize(price.LookupKey)
	}
	return plan.Free
}

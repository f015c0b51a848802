package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/theatlasimpact/papermark-vansgiving/internal/billing"
	"github.com/theatlasimpact/papermark-vansgiving/internal/middleware"
	"github.com/theatlasimpact/papermark-vansgiving/internal/plan"
	"github.com/theatlasimpact/papermark-vansgiving/internal/team"
)

// WebhookHandlers holds dependencies for Stripe webhook HTTP handlers.
type WebhookHandlers struct {
	webhookSecret string
	teams         team.Repository
	events        billing.WebhookRepository
	prices        billing.PriceMap
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(webhookSecret string, teams team.Repository, events billing.WebhookRepository, prices billing.PriceMap) *WebhookHandlers {
	return &WebhookHandlers{
		webhookSecret: webhookSecret,
		teams:         teams,
		events:        events,
		prices:        prices,
	}
}

// HandleStripeWebhook processes Stripe webhook events with signature verification.
// POST /internal/stripe
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeWebhookInvalid)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeWebhookInvalid, "missing Stripe-Signature header")
		return
	}

	event, err := webhook.ConstructEvent(body, signature, h.webhookSecret)
	if err != nil {
		slog.WarnContext(ctx, "webhook signature verification failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeWebhookInvalid)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeWebhookInvalid, "invalid signature")
		return
	}

	// Log minimal event info (type and ID only, not full payload)
	slog.InfoContext(ctx, "webhook event received", "event_type", event.Type, "event_id", event.ID)

	// Stripe retries deliveries; a replayed event is acknowledged and skipped.
	if err := h.events.RecordEvent(event.ID, string(event.Type)); err != nil {
		if errors.Is(err, billing.ErrEventAlreadyProcessed) {
			slog.InfoContext(ctx, "webhook event already processed, ignoring", "event_id", event.ID)
			w.WriteHeader(http.StatusOK)
			return
		}
		slog.ErrorContext(ctx, "failed to record webhook event", "event_id", event.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(ctx, event)
	default:
		slog.InfoContext(ctx, "ignoring unhandled webhook event type", "event_type", event.Type, "event_id", event.ID)
	}

	// Always return 200 to acknowledge receipt
	w.WriteHeader(http.StatusOK)
}

// handleSubscriptionChanged moves the team onto the plan its subscription
// now entitles it to.
func (h *WebhookHandlers) handleSubscriptionChanged(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		slog.ErrorContext(ctx, "failed to parse subscription", "event_id", event.ID, "error", err)
		return
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		slog.WarnContext(ctx, "subscription event without customer", "event_id", event.ID)
		return
	}

	newPlan := billing.PlanForSubscription(&sub, h.prices)
	h.updateTeamPlan(ctx, event.ID, sub.Customer.ID, newPlan)
}

// handleSubscriptionDeleted drops the team back to the free plan.
func (h *WebhookHandlers) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		slog.ErrorContext(ctx, "failed to parse subscription", "event_id", event.ID, "error", err)
		return
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		slog.WarnContext(ctx, "subscription event without customer", "event_id", event.ID)
		return
	}

	h.updateTeamPlan(ctx, event.ID, sub.Customer.ID, plan.Free)
}

func (h *WebhookHandlers) updateTeamPlan(ctx context.Context, eventID, customerID, newPlan string) {
	tm, err := h.teams.GetByStripeCustomer(customerID)
	if err != nil {
		if errors.Is(err, team.ErrTeamNotFound) {
			slog.WarnContext(ctx, "no team for stripe customer", "customer_id", customerID, "event_id", eventID)
			return
		}
		slog.ErrorContext(ctx, "failed to look up team by customer", "customer_id", customerID, "error", err)
		return
	}

	if tm.Plan == newPlan {
		return
	}

	if err := h.teams.UpdatePlan(tm.ID, newPlan); err != nil {
		slog.ErrorContext(ctx, "failed to update team plan",
			"team_id", tm.ID,
			"plan", newPlan,
			"error", err)
		return
	}

	slog.InfoContext(ctx, "team plan updated",
		"team_id", tm.ID,
		"old_plan", tm.Plan,
		"new_plan", newPlan,
		"event_id", eventID)
}

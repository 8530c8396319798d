// internal/app/system/payment/stripe.go
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/tutorhub/tutorhub/internal/app/system/apierr"
	"go.uber.org/zap"
)

// StripeGateway implements Gateway against Stripe. The API client is built
// once in the constructor; handlers receive the gateway by injection.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	log           *zap.Logger
}

// NewStripeGateway builds a gateway from the secret key and the webhook
// signing secret.
func NewStripeGateway(secretKey, webhookSecret string, logger *zap.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:           api,
		webhookSecret: webhookSecret,
		log:           logger,
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	cust, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

func (g *StripeGateway) CreateRecurringPrice(ctx context.Context, productName string, amount int64, currency string) (string, error) {
	params := &stripe.PriceParams{
		Currency:   stripe.String(currency),
		UnitAmount: stripe.Int64(amount),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(productName),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	price, err := g.api.Prices.New(params)
	if err != nil {
		return "", fmt.Errorf("create price: %w", err)
	}
	return price.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(p.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	params.SetIdempotencyKey(uuid.NewString())
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) RetrieveSubscription(ctx context.Context, subscriptionID string, expandLatestInvoice bool) (SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	if expandLatestInvoice {
		params.AddExpand("latest_invoice")
	}
	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return SubscriptionSnapshot{}, fmt.Errorf("retrieve subscription %s: %w", subscriptionID, err)
	}
	return subscriptionFromStripe(sub), nil
}

func (g *StripeGateway) UpdateSubscription(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) (SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancelAtPeriodEnd),
	}
	params.Context = ctx
	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return SubscriptionSnapshot{}, fmt.Errorf("update subscription %s: %w", subscriptionID, err)
	}
	return subscriptionFromStripe(sub), nil
}

func subscriptionFromStripe(sub *stripe.Subscription) SubscriptionSnapshot {
	snap := SubscriptionSnapshot{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: unixTime(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   unixTime(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if sub.CanceledAt > 0 {
		t := unixTime(sub.CanceledAt)
		snap.CanceledAt = &t
	}
	if inv := sub.LatestInvoice; inv != nil {
		snap.LatestInvoice = &InvoiceSnapshot{
			ID:             inv.ID,
			Status:         string(inv.Status),
			BillingReason:  string(inv.BillingReason),
			AmountPaid:     inv.AmountPaid,
			Currency:       string(inv.Currency),
			SubscriptionID: sub.ID,
		}
	}
	return snap
}

/* -------------------------------------------------------------------------- */
/* Webhook verification and payload decoding                                  */
/* -------------------------------------------------------------------------- */

func (g *StripeGateway) VerifyAndParseEvent(payload []byte, signatureHeader string) (Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return Event{}, apierr.SignatureInvalid(err)
	}
	return parseEvent(stripeEvent.ID, EventType(stripeEvent.Type), stripeEvent.Data.Raw)
}

// parseEvent decodes the raw event object for the known event types. It is
// split from signature verification so tests can exercise decoding with
// hand-built payloads.
func parseEvent(id string, typ EventType, raw json.RawMessage) (Event, error) {
	ev := Event{ID: id, Type: typ}

	switch typ {
	case EventCheckoutCompleted, EventCheckoutExpired, EventCheckoutAsyncPaymentFailed:
		var p checkoutSessionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", typ, err)
		}
		ev.CheckoutSession = &CheckoutSessionSnapshot{
			ID:             p.ID,
			Mode:           p.Mode,
			SubscriptionID: p.Subscription.ID,
			CustomerID:     p.Customer.ID,
			Metadata:       p.Metadata,
		}

	case EventInvoicePaymentSucceeded:
		var p invoicePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", typ, err)
		}
		inv := &InvoiceSnapshot{
			ID:             p.ID,
			Status:         p.Status,
			BillingReason:  p.BillingReason,
			AmountPaid:     p.AmountPaid,
			Currency:       p.Currency,
			SubscriptionID: p.Subscription.ID,
		}
		if len(p.Lines.Data) > 0 {
			inv.PeriodStart = unixTime(p.Lines.Data[0].Period.Start)
			inv.PeriodEnd = unixTime(p.Lines.Data[0].Period.End)
		}
		ev.Invoice = inv

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var p subscriptionPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", typ, err)
		}
		snap := &SubscriptionSnapshot{
			ID:                 p.ID,
			Status:             p.Status,
			CustomerID:         p.Customer.ID,
			CurrentPeriodStart: unixTime(p.CurrentPeriodStart),
			CurrentPeriodEnd:   unixTime(p.CurrentPeriodEnd),
			CancelAtPeriodEnd:  p.CancelAtPeriodEnd,
		}
		if p.CanceledAt > 0 {
			t := unixTime(p.CanceledAt)
			snap.CanceledAt = &t
		}
		ev.Subscription = snap
	}

	return ev, nil
}

// Wire shapes for the event payloads we decode ourselves. Kept private so
// the provider's JSON never leaks past this package.

type checkoutSessionPayload struct {
	ID           string            `json:"id"`
	Mode         string            `json:"mode"`
	Subscription expandableID      `json:"subscription"`
	Customer     expandableID      `json:"customer"`
	Metadata     map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID            string       `json:"id"`
	Status        string       `json:"status"`
	BillingReason string       `json:"billing_reason"`
	AmountPaid    int64        `json:"amount_paid"`
	Currency      string       `json:"currency"`
	Subscription  expandableID `json:"subscription"`
	Lines         struct {
		Data []struct {
			Period struct {
				Start int64 `json:"start"`
				End   int64 `json:"end"`
			} `json:"period"`
		} `json:"data"`
	} `json:"lines"`
}

type subscriptionPayload struct {
	ID                 string       `json:"id"`
	Status             string       `json:"status"`
	Customer           expandableID `json:"customer"`
	CurrentPeriodStart int64        `json:"current_period_start"`
	CurrentPeriodEnd   int64        `json:"current_period_end"`
	CancelAtPeriodEnd  bool         `json:"cancel_at_period_end"`
	CanceledAt         int64        `json:"canceled_at"`
}

// expandableID accepts either a bare id string or an expanded object with
// an "id" field, which is how the provider serializes references.
type expandableID struct {
	ID string
}

func (e *expandableID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		e.ID = ""
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &e.ID)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	e.ID = obj.ID
	return nil
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

package payment

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseEvent_CheckoutCompleted(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "cs_test_1",
		"mode": "subscription",
		"subscription": "sub_123",
		"customer": "cus_456",
		"metadata": {"enrollment_id": "abc", "group_id": "g1"}
	}`)

	ev, err := parseEvent("evt_1", EventCheckoutCompleted, raw)
	if err != nil {
		t.Fatalf("parseEvent failed: %v", err)
	}
	if ev.CheckoutSession == nil {
		t.Fatal("expected checkout session payload")
	}
	cs := ev.CheckoutSession
	if cs.ID != "cs_test_1" {
		t.Errorf("ID: got %q", cs.ID)
	}
	if cs.Mode != "subscription" {
		t.Errorf("Mode: got %q", cs.Mode)
	}
	if cs.SubscriptionID != "sub_123" {
		t.Errorf("SubscriptionID: got %q", cs.SubscriptionID)
	}
	if cs.CustomerID != "cus_456" {
		t.Errorf("CustomerID: got %q", cs.CustomerID)
	}
	if cs.Metadata[MetaEnrollmentID] != "abc" {
		t.Errorf("metadata enrollment id: got %q", cs.Metadata[MetaEnrollmentID])
	}
}

func TestParseEvent_InvoicePaymentSucceeded(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "in_1",
		"status": "paid",
		"billing_reason": "subscription_cycle",
		"amount_paid": 10000,
		"currency": "usd",
		"subscription": {"id": "sub_123"},
		"lines": {"data": [{"period": {"start": 1700000000, "end": 1702592000}}]}
	}`)

	ev, err := parseEvent("evt_2", EventInvoicePaymentSucceeded, raw)
	if err != nil {
		t.Fatalf("parseEvent failed: %v", err)
	}
	inv := ev.Invoice
	if inv == nil {
		t.Fatal("expected invoice payload")
	}
	if inv.AmountPaid != 10000 {
		t.Errorf("AmountPaid: got %d", inv.AmountPaid)
	}
	// Expanded object form of the subscription reference must also decode.
	if inv.SubscriptionID != "sub_123" {
		t.Errorf("SubscriptionID: got %q", inv.SubscriptionID)
	}
	wantEnd := time.Unix(1702592000, 0).UTC()
	if !inv.PeriodEnd.Equal(wantEnd) {
		t.Errorf("PeriodEnd: got %v, want %v", inv.PeriodEnd, wantEnd)
	}
}

func TestParseEvent_SubscriptionDeleted(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "sub_123",
		"status": "canceled",
		"customer": "cus_456",
		"current_period_start": 1700000000,
		"current_period_end": 1702592000,
		"cancel_at_period_end": true,
		"canceled_at": 1701000000
	}`)

	ev, err := parseEvent("evt_3", EventSubscriptionDeleted, raw)
	if err != nil {
		t.Fatalf("parseEvent failed: %v", err)
	}
	sub := ev.Subscription
	if sub == nil {
		t.Fatal("expected subscription payload")
	}
	if sub.Status != "canceled" {
		t.Errorf("Status: got %q", sub.Status)
	}
	if !sub.CancelAtPeriodEnd {
		t.Error("expected CancelAtPeriodEnd")
	}
	if sub.CanceledAt == nil || sub.CanceledAt.Unix() != 1701000000 {
		t.Errorf("CanceledAt: got %v", sub.CanceledAt)
	}
}

func TestParseEvent_UnknownTypeKeepsTypeOnly(t *testing.T) {
	ev, err := parseEvent("evt_4", EventType("customer.created"), json.RawMessage(`{"id":"cus_1"}`))
	if err != nil {
		t.Fatalf("parseEvent failed: %v", err)
	}
	if ev.CheckoutSession != nil || ev.Invoice != nil || ev.Subscription != nil {
		t.Error("unknown event types must not decode a payload")
	}
	if ev.Type != "customer.created" {
		t.Errorf("Type: got %q", ev.Type)
	}
}

func TestExpandableID_Null(t *testing.T) {
	var p checkoutSessionPayload
	if err := json.Unmarshal([]byte(`{"id":"cs_1","subscription":null}`), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if p.Subscription.ID != "" {
		t.Errorf("expected empty id for null reference, got %q", p.Subscription.ID)
	}
}

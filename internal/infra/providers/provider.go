package providers

import (
	"context"

	"marketplace/internal/domain"
)

type EventKind string

const (
	EventSucceeded       EventKind = "succeeded"
	EventFailed          EventKind = "failed"
	EventCanceled        EventKind = "canceled"
	EventRefundSucceeded EventKind = "refund_succeeded"
	EventRefundFailed    EventKind = "refund_failed"
)

// WebhookEvent is the normalized form of a provider callback. Events are
// matched to local payments by ProviderRef, never by order id, because an
// order may have several charge attempts. IntentID is the idempotency key
// the provider echoes back; it is the only handle left when the synchronous
// charge response was lost and the local row has no provider ref yet.
type WebhookEvent struct {
	Kind          EventKind
	ProviderRef   string
	IntentID      string
	FailureCode   string
	FailureReason string
}

type ChargeRequest struct {
	IntentID string
	Amount   int64
	Currency string
	Details  map[string]string
}

type ChargeResult struct {
	ProviderRef   string
	Status        domain.PaymentStatus
	FailureCode   string
	FailureReason string
}

// RefundRequest carries the refund's own id as the idempotency key so the
// refund webhook can be matched even when the synchronous response is lost.
type RefundRequest struct {
	ProviderRef string
	RefundID    string
	Amount      int64
	Reason      string
}

type RefundResult struct {
	ProviderRef string
	Status      domain.RefundStatus
}

type Provider interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	// VerifySignature must pass before any webhook payload is trusted; an
	// invalid signature is rejected with no side effect.
	VerifySignature(payload []byte, signature string) bool
	ParseEvent(payload []byte) (*WebhookEvent, error)
}

// Registry maps payment methods and webhook paths to providers. Cash on
// delivery has no provider: those payments stay pending until confirmed
// manually.
type Registry struct {
	byName   map[string]Provider
	byMethod map[domain.PaymentMethod]Provider
}

func NewRegistry(stripe, paypal Provider) *Registry {
	r := &Registry{
		byName:   make(map[string]Provider),
		byMethod: make(map[domain.PaymentMethod]Provider),
	}
	if stripe != nil {
		r.byName[stripe.Name()] = stripe
		r.byMethod[domain.MethodCard] = stripe
	}
	if paypal != nil {
		r.byName[paypal.Name()] = paypal
		r.byMethod[domain.MethodWallet] = paypal
	}
	return r
}

func (r *Registry) ByName(name string) (Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

func (r *Registry) ByMethod(method domain.PaymentMethod) (Provider, bool) {
	p, ok := r.byMethod[method]
	return p, ok
}

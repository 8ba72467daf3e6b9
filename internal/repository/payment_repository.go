package repository

import (
	"context"

	"marketplace/internal/domain"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	FindByID(ctx context.Context, id string) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
	// TransitionByProviderRef moves the payment identified by the provider's
	// reference to the target status, but only while it is still in flight
	// (processing or pending). Duplicate webhook deliveries therefore apply
	// exactly once: the second call returns applied=false with the current
	// payment row. A ref that matches no payment returns (nil, false, nil).
	TransitionByProviderRef(ctx context.Context, providerRef string, to domain.PaymentStatus, failureCode, failureReason string) (*domain.Payment, bool, error)
	// TransitionByIntentID is the fallback when the provider ref matches
	// nothing: a charge whose synchronous response was lost still has an
	// empty provider_ref locally, so the webhook is matched by the intent
	// id the provider echoes back and the ref is recorded alongside the
	// transition.
	TransitionByIntentID(ctx context.Context, intentID, providerRef string, to domain.PaymentStatus, failureCode, failureReason string) (*domain.Payment, bool, error)

	CreateRefund(ctx context.Context, refund *domain.Refund) error
	UpdateRefund(ctx context.Context, refund *domain.Refund) error
	// TransitionRefundByProviderRef mirrors TransitionByProviderRef for
	// refund webhook events.
	TransitionRefundByProviderRef(ctx context.Context, providerRef string, to domain.RefundStatus, failureReason string) (*domain.Refund, bool, error)
	// TransitionRefundByID mirrors TransitionByIntentID for refunds; the
	// refund's own id doubles as the idempotency key sent to the provider.
	TransitionRefundByID(ctx context.Context, refundID, providerRef string, to domain.RefundStatus, failureReason string) (*domain.Refund, bool, error)
}

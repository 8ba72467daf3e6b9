package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/domain"
	"marketplace/internal/infra/providers"
	rabbit "marketplace/internal/infra/rabbitmq"
	"marketplace/internal/repository"
	"marketplace/internal/resilience"
)

const chargeTimeout = 10 * time.Second

// orderConfirmer is the only thing the payment flow needs from the order
// side; *OrderService satisfies it.
type orderConfirmer interface {
	ConfirmOrder(ctx context.Context, orderID string) error
}

// PaymentService drives charge attempts against external providers and
// reconciles their webhooks. The local payment row is authoritative at every
// step: a provider call that times out leaves the payment processing and the
// webhook settles it later.
type PaymentService struct {
	payments  repository.PaymentRepository
	orders    repository.OrderRepository
	registry  *providers.Registry
	confirmer orderConfirmer
	breaker   *resilience.CircuitBreaker
	publisher rabbit.PublisherInterface
}

func NewPaymentService(
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	registry *providers.Registry,
	confirmer orderConfirmer,
	breaker *resilience.CircuitBreaker,
	publisher rabbit.PublisherInterface,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		orders:    orders,
		registry:  registry,
		confirmer: confirmer,
		breaker:   breaker,
		publisher: publisher,
	}
}

// ProcessPayment opens a charge attempt for a pending order. Each call is a
// new payment row with a fresh intent id; details carries the provider
// instrument (card token, wallet id) and is passed through untouched. Cash
// on delivery skips the provider entirely and parks the payment as pending.
// A declined charge returns the failed payment together with the rejection
// error; a provider timeout returns the payment still processing with no
// error, webhook reconciliation finishes the job.
func (s *PaymentService) ProcessPayment(ctx context.Context, orderID, buyerID string, details map[string]string) (*domain.Payment, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}
	if order.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: order %s is %s, only pending orders can be paid", domain.ErrInvalidTransition, orderID, order.Status)
	}

	payment := &domain.Payment{
		ID:       uuid.NewString(),
		IntentID: uuid.NewString(),
		OrderID:  order.ID,
		Amount:   order.Total,
		Method:   order.PaymentMethod,
		Status:   domain.PaymentProcessing,
	}

	if order.PaymentMethod == domain.MethodCashOnDelivery {
		payment.Status = domain.PaymentPending
		if err := s.payments.Create(ctx, payment); err != nil {
			return nil, err
		}
		return payment, nil
	}

	provider, ok := s.registry.ByMethod(order.PaymentMethod)
	if !ok {
		return nil, fmt.Errorf("%w: no provider for method %s", domain.ErrValidation, order.PaymentMethod)
	}
	payment.Provider = provider.Name()

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	var result *providers.ChargeResult
	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		chargeCtx, cancel := context.WithTimeout(ctx, chargeTimeout)
		defer cancel()
		var chargeErr error
		result, chargeErr = provider.Charge(chargeCtx, providers.ChargeRequest{
			IntentID: payment.IntentID,
			Amount:   payment.Amount,
			Currency: "usd",
			Details:  details,
		})
		return chargeErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, resilience.ErrCircuitOpen) ||
			errors.Is(err, domain.ErrUpstreamUnavailable) {
			// Outcome unknown. The payment stays processing until the
			// provider's webhook tells us what actually happened.
			logger.Warn().Err(err).
				Str("payment_id", payment.ID).
				Str("order_id", order.ID).
				Msg("charge outcome unknown, awaiting webhook")
			return payment, nil
		}
		payment.Status = domain.PaymentFailed
		payment.FailureReason = err.Error()
		if updErr := s.payments.Update(ctx, payment); updErr != nil {
			logger.Error().Err(updErr).Str("payment_id", payment.ID).Msg("failed to record charge failure")
		}
		go s.publishPaymentEvent(context.Background(), domain.EventPaymentFailed, payment)
		return payment, err
	}

	payment.ProviderRef = result.ProviderRef
	payment.Status = result.Status
	payment.FailureCode = result.FailureCode
	payment.FailureReason = result.FailureReason
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, err
	}

	switch result.Status {
	case domain.PaymentCompleted:
		s.confirmOrder(ctx, payment)
		go s.publishPaymentEvent(context.Background(), domain.EventPaymentCompleted, payment)
		return payment, nil
	case domain.PaymentFailed:
		go s.publishPaymentEvent(context.Background(), domain.EventPaymentFailed, payment)
		return payment, fmt.Errorf("%w: %s", domain.ErrProviderRejected, result.FailureReason)
	default:
		// Provider accepted the charge but has not settled it yet.
		return payment, nil
	}
}

// HandleWebhook reconciles a provider callback. The signature must verify
// before anything else happens. Transitions are conditional on the payment
// still being in flight, so duplicate deliveries apply exactly once and an
// out-of-order event against a settled payment is ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, providerName string, payload []byte, signature string) error {
	provider, ok := s.registry.ByName(providerName)
	if !ok {
		return fmt.Errorf("%w: unknown provider %s", domain.ErrNotFound, providerName)
	}
	if !provider.VerifySignature(payload, signature) {
		return fmt.Errorf("%w: invalid webhook signature", domain.ErrValidation)
	}

	event, err := provider.ParseEvent(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	switch event.Kind {
	case providers.EventSucceeded:
		return s.settlePayment(ctx, event, domain.PaymentCompleted)
	case providers.EventFailed:
		return s.settlePayment(ctx, event, domain.PaymentFailed)
	case providers.EventCanceled:
		return s.settlePayment(ctx, event, domain.PaymentCancelled)
	case providers.EventRefundSucceeded:
		return s.settleRefund(ctx, event, domain.RefundCompleted)
	case providers.EventRefundFailed:
		return s.settleRefund(ctx, event, domain.RefundFailed)
	default:
		logger.Warn().Str("kind", string(event.Kind)).Msg("ignoring unrecognized webhook event")
		return nil
	}
}

func (s *PaymentService) settlePayment(ctx context.Context, event *providers.WebhookEvent, to domain.PaymentStatus) error {
	payment, applied, err := s.payments.TransitionByProviderRef(ctx, event.ProviderRef, to, event.FailureCode, event.FailureReason)
	if err != nil {
		return err
	}
	if payment == nil && event.IntentID != "" {
		// A lost charge response leaves the local row with no provider
		// ref; match by the intent id echoed back instead, recording the
		// ref as part of the transition.
		payment, applied, err = s.payments.TransitionByIntentID(ctx, event.IntentID, event.ProviderRef, to, event.FailureCode, event.FailureReason)
		if err != nil {
			return err
		}
	}
	if payment == nil {
		logger.Warn().Str("provider_ref", event.ProviderRef).Msg("webhook for unknown payment")
		return nil
	}
	if !applied {
		logger.Info().
			Str("provider_ref", event.ProviderRef).
			Str("status", string(payment.Status)).
			Msg("duplicate webhook delivery ignored")
		return nil
	}

	switch to {
	case domain.PaymentCompleted:
		s.confirmOrder(ctx, payment)
		go s.publishPaymentEvent(context.Background(), domain.EventPaymentCompleted, payment)
	case domain.PaymentFailed, domain.PaymentCancelled:
		go s.publishPaymentEvent(context.Background(), domain.EventPaymentFailed, payment)
	}
	return nil
}

func (s *PaymentService) settleRefund(ctx context.Context, event *providers.WebhookEvent, to domain.RefundStatus) error {
	refund, applied, err := s.payments.TransitionRefundByProviderRef(ctx, event.ProviderRef, to, event.FailureReason)
	if err != nil {
		return err
	}
	if refund == nil && event.IntentID != "" {
		refund, applied, err = s.payments.TransitionRefundByID(ctx, event.IntentID, event.ProviderRef, to, event.FailureReason)
		if err != nil {
			return err
		}
	}
	if refund == nil {
		logger.Warn().Str("provider_ref", event.ProviderRef).Msg("webhook for unknown refund")
		return nil
	}
	if !applied || to != domain.RefundCompleted {
		return nil
	}
	return s.markPaymentRefunded(ctx, refund.PaymentID)
}

// ProcessRefund opens a refund against a completed payment. The ceiling is
// checked against the amount already refunded before any provider call, so a
// bad amount never reaches the provider.
func (s *PaymentService) ProcessRefund(ctx context.Context, paymentID string, amount int64, reason string) (*domain.Refund, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !payment.Status.Refundable() {
		return nil, fmt.Errorf("%w: payment %s is %s, not refundable", domain.ErrInvalidTransition, paymentID, payment.Status)
	}
	if amount < 1 {
		return nil, fmt.Errorf("%w: refund amount must be at least 1", domain.ErrValidation)
	}

	var refunded int64
	for _, r := range payment.Refunds {
		if r.Status != domain.RefundFailed {
			refunded += r.Amount
		}
	}
	if amount > payment.Amount-refunded {
		return nil, fmt.Errorf("%w: refund amount exceeds remaining refundable balance", domain.ErrValidation)
	}

	provider, ok := s.registry.ByName(payment.Provider)
	if !ok {
		return nil, fmt.Errorf("%w: payment %s has no refundable provider", domain.ErrValidation, paymentID)
	}

	refund := &domain.Refund{
		ID:        uuid.NewString(),
		PaymentID: payment.ID,
		Amount:    amount,
		Reason:    reason,
		Status:    domain.RefundProcessing,
	}
	if err := s.payments.CreateRefund(ctx, refund); err != nil {
		return nil, err
	}

	var result *providers.RefundResult
	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		refundCtx, cancel := context.WithTimeout(ctx, chargeTimeout)
		defer cancel()
		var refundErr error
		result, refundErr = provider.Refund(refundCtx, providers.RefundRequest{
			ProviderRef: payment.ProviderRef,
			RefundID:    refund.ID,
			Amount:      amount,
			Reason:      reason,
		})
		return refundErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, resilience.ErrCircuitOpen) ||
			errors.Is(err, domain.ErrUpstreamUnavailable) {
			logger.Warn().Err(err).Str("refund_id", refund.ID).Msg("refund outcome unknown, awaiting webhook")
			return refund, nil
		}
		refund.Status = domain.RefundFailed
		if updErr := s.payments.UpdateRefund(ctx, refund); updErr != nil {
			logger.Error().Err(updErr).Str("refund_id", refund.ID).Msg("failed to record refund failure")
		}
		return refund, err
	}

	refund.ProviderRef = result.ProviderRef
	refund.Status = result.Status
	if err := s.payments.UpdateRefund(ctx, refund); err != nil {
		return nil, err
	}

	if refund.Status == domain.RefundCompleted {
		if err := s.markPaymentRefunded(ctx, payment.ID); err != nil {
			logger.Error().Err(err).Str("payment_id", payment.ID).Msg("failed to mark payment refunded")
		}
		go s.publishPaymentEvent(context.Background(), domain.EventPaymentRefunded, payment)
	}
	return refund, nil
}

func (s *PaymentService) markPaymentRefunded(ctx context.Context, paymentID string) error {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	payment.Status = domain.PaymentRefundedPartially
	return s.payments.Update(ctx, payment)
}

// confirmOrder promotes the order after a completed payment. The payment is
// already settled, so a confirmation failure is logged and left for the
// operator rather than unwinding the charge.
func (s *PaymentService) confirmOrder(ctx context.Context, payment *domain.Payment) {
	if err := s.confirmer.ConfirmOrder(ctx, payment.OrderID); err != nil {
		logger.Error().Err(err).
			Str("order_id", payment.OrderID).
			Str("payment_id", payment.ID).
			Msg("order confirmation failed after completed payment")
	}
}

func (s *PaymentService) publishPaymentEvent(ctx context.Context, routingKey string, payment *domain.Payment) {
	evt := domain.PaymentEvent{
		PaymentID:   payment.ID,
		OrderID:     payment.OrderID,
		Amount:      payment.Amount,
		Status:      payment.Status,
		ProviderRef: payment.ProviderRef,
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, routingKey, evt); err != nil {
		logger.Error().Err(err).Str("routing_key", routingKey).Str("payment_id", payment.ID).Msg("event publish failed")
	}
}

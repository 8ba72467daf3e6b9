package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"marketplace/internal/domain"
	"marketplace/internal/infra/providers"
	"marketplace/internal/mocks"
	"marketplace/internal/resilience"
)

type paymentFixture struct {
	service   *PaymentService
	payments  *mocks.MockPaymentRepository
	orders    *mocks.MockOrderRepository
	provider  *mocks.MockProvider
	confirmer *mocks.MockOrderConfirmer
	publisher *mocks.MockPublisher
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		payments:  new(mocks.MockPaymentRepository),
		orders:    new(mocks.MockOrderRepository),
		provider:  new(mocks.MockProvider),
		confirmer: new(mocks.MockOrderConfirmer),
		publisher: new(mocks.MockPublisher),
	}
	registry := providers.NewRegistry(f.provider, nil)
	breaker := resilience.NewCircuitBreaker("test-provider", resilience.BreakerConfig{})
	f.service = NewPaymentService(f.payments, f.orders, registry, f.confirmer, breaker, f.publisher)
	return f
}

func TestPaymentService_ProcessPayment(t *testing.T) {
	t.Run("cash on delivery parks the payment pending", func(t *testing.T) {
		f := newPaymentFixture()

		order := testOrder(domain.StatusPending)
		order.PaymentMethod = domain.MethodCashOnDelivery
		f.orders.On("FindByID", mock.Anything, TestOrderID).Return(order, nil)
		f.payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)

		payment, err := f.service.ProcessPayment(context.Background(), TestOrderID, TestBuyerID, nil)

		assert.NoError(t, err)
		assert.Equal(t, domain.PaymentPending, payment.Status)
		assert.Empty(t, payment.Provider)
		f.provider.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything)
	})

	t.Run("successful card charge confirms the order", func(t *testing.T) {
		f := newPaymentFixture()

		f.orders.On("FindByID", mock.Anything, TestOrderID).Return(testOrder(domain.StatusPending), nil)
		f.payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.provider.On("Charge", mock.Anything, mock.MatchedBy(func(req providers.ChargeRequest) bool {
			return req.Amount == 9640 && req.IntentID != ""
		})).Return(&providers.ChargeResult{
			ProviderRef: "ch_123",
			Status:      domain.PaymentCompleted,
		}, nil)
		f.payments.On("Update", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.confirmer.On("ConfirmOrder", mock.Anything, TestOrderID).Return(nil)
		f.publisher.On("Publish", mock.Anything, domain.EventPaymentCompleted, mock.Anything).Return(nil).Maybe()

		payment, err := f.service.ProcessPayment(context.Background(), TestOrderID, TestBuyerID, nil)

		assert.NoError(t, err)
		assert.Equal(t, domain.PaymentCompleted, payment.Status)
		assert.Equal(t, "ch_123", payment.ProviderRef)
		assert.Equal(t, int64(9640), payment.Amount)

		time.Sleep(50 * time.Millisecond)
		f.confirmer.AssertExpectations(t)
		f.payments.AssertExpectations(t)
	})

	t.Run("payment details reach the provider untouched", func(t *testing.T) {
		f := newPaymentFixture()

		f.orders.On("FindByID", mock.Anything, TestOrderID).Return(testOrder(domain.StatusPending), nil)
		f.payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.provider.On("Charge", mock.Anything, mock.MatchedBy(func(req providers.ChargeRequest) bool {
			return req.Details["token"] == "tok_visa"
		})).Return(&providers.ChargeResult{
			ProviderRef: "ch_789",
			Status:      domain.PaymentCompleted,
		}, nil)
		f.payments.On("Update", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.confirmer.On("ConfirmOrder", mock.Anything, TestOrderID).Return(nil)
		f.publisher.On("Publish", mock.Anything, domain.EventPaymentCompleted, mock.Anything).Return(nil).Maybe()

		_, err := f.service.ProcessPayment(context.Background(), TestOrderID, TestBuyerID,
			map[string]string{"token": "tok_visa"})

		assert.NoError(t, err)
		f.provider.AssertExpectations(t)
	})

	t.Run("declined charge fails the payment", func(t *testing.T) {
		f := newPaymentFixture()

		f.orders.On("FindByID", mock.Anything, TestOrderID).Return(testOrder(domain.StatusPending), nil)
		f.payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.provider.On("Charge", mock.Anything, mock.Anything).Return(&providers.ChargeResult{
			ProviderRef:   "ch_456",
			Status:        domain.PaymentFailed,
			FailureCode:   "card_declined",
			FailureReason: "insufficient funds",
		}, nil)
		f.payments.On("Update", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.publisher.On("Publish", mock.Anything, domain.EventPaymentFailed, mock.Anything).Return(nil).Maybe()

		payment, err := f.service.ProcessPayment(context.Background(), TestOrderID, TestBuyerID, nil)

		assert.ErrorIs(t, err, domain.ErrProviderRejected)
		assert.Equal(t, domain.PaymentFailed, payment.Status)
		assert.Equal(t, "card_declined", payment.FailureCode)
		f.confirmer.AssertNotCalled(t, "ConfirmOrder", mock.Anything, mock.Anything)
	})

	t.Run("provider timeout leaves the payment processing", func(t *testing.T) {
		f := newPaymentFixture()

		f.orders.On("FindByID", mock.Anything, TestOrderID).Return(testOrder(domain.StatusPending), nil)
		f.payments.On("Create", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.provider.On("Charge", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

		payment, err := f.service.ProcessPayment(context.Background(), TestOrderID, TestBuyerID, nil)

		assert.NoError(t, err)
		assert.Equal(t, domain.PaymentProcessing, payment.Status)
		f.confirmer.AssertNotCalled(t, "ConfirmOrder", mock.Anything, mock.Anything)
		f.payments.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("wrong buyer is forbidden", func(t *testing.T) {
		f := newPaymentFixture()

		f.orders.On("FindByID", mock.Anything, TestOrderID).Return(testOrder(domain.StatusPending), nil)

		payment, err := f.service.ProcessPayment(context.Background(), TestOrderID, "intruder", nil)

		assert.Nil(t, payment)
		assert.ErrorIs(t, err, domain.ErrForbidden)
		f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("only pending orders can be paid", func(t *testing.T) {
		f := newPaymentFixture()

		f.orders.On("FindByID", mock.Anything, TestOrderID).Return(testOrder(domain.StatusConfirmed), nil)

		payment, err := f.service.ProcessPayment(context.Background(), TestOrderID, TestBuyerID, nil)

		assert.Nil(t, payment)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	payload := []byte(`{"type":"charge.succeeded"}`)

	t.Run("invalid signature is rejected with no side effect", func(t *testing.T) {
		f := newPaymentFixture()

		f.provider.On("VerifySignature", payload, "bad-sig").Return(false)

		err := f.service.HandleWebhook(context.Background(), "mockpay", payload, "bad-sig")

		assert.ErrorIs(t, err, domain.ErrValidation)
		f.payments.AssertNotCalled(t, "TransitionByProviderRef",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown provider path", func(t *testing.T) {
		f := newPaymentFixture()

		err := f.service.HandleWebhook(context.Background(), "ghostpay", payload, "sig")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("completed event confirms the order", func(t *testing.T) {
		f := newPaymentFixture()

		settled := &domain.Payment{
			ID:          "pay-1",
			OrderID:     TestOrderID,
			ProviderRef: "ch_123",
			Status:      domain.PaymentCompleted,
		}

		f.provider.On("VerifySignature", payload, "sig").Return(true)
		f.provider.On("ParseEvent", payload).Return(&providers.WebhookEvent{
			Kind:        providers.EventSucceeded,
			ProviderRef: "ch_123",
		}, nil)
		f.payments.On("TransitionByProviderRef", mock.Anything, "ch_123",
			domain.PaymentCompleted, "", "").Return(settled, true, nil)
		f.confirmer.On("ConfirmOrder", mock.Anything, TestOrderID).Return(nil)
		f.publisher.On("Publish", mock.Anything, domain.EventPaymentCompleted, mock.Anything).Return(nil).Maybe()

		err := f.service.HandleWebhook(context.Background(), "mockpay", payload, "sig")

		assert.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		f.confirmer.AssertExpectations(t)
	})

	t.Run("duplicate delivery is a no-op", func(t *testing.T) {
		f := newPaymentFixture()

		settled := &domain.Payment{
			ID:          "pay-1",
			OrderID:     TestOrderID,
			ProviderRef: "ch_123",
			Status:      domain.PaymentCompleted,
		}

		f.provider.On("VerifySignature", payload, "sig").Return(true)
		f.provider.On("ParseEvent", payload).Return(&providers.WebhookEvent{
			Kind:        providers.EventSucceeded,
			ProviderRef: "ch_123",
		}, nil)
		f.payments.On("TransitionByProviderRef", mock.Anything, "ch_123",
			domain.PaymentCompleted, "", "").Return(settled, false, nil)

		err := f.service.HandleWebhook(context.Background(), "mockpay", payload, "sig")

		assert.NoError(t, err)
		f.confirmer.AssertNotCalled(t, "ConfirmOrder", mock.Anything, mock.Anything)
		f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown provider ref is acknowledged", func(t *testing.T) {
		f := newPaymentFixture()

		f.provider.On("VerifySignature", payload, "sig").Return(true)
		f.provider.On("ParseEvent", payload).Return(&providers.WebhookEvent{
			Kind:        providers.EventSucceeded,
			ProviderRef: "ch_unknown",
		}, nil)
		f.payments.On("TransitionByProviderRef", mock.Anything, "ch_unknown",
			domain.PaymentCompleted, "", "").Return(nil, false, nil)

		err := f.service.HandleWebhook(context.Background(), "mockpay", payload, "sig")

		assert.NoError(t, err)
	})

	t.Run("lost charge response settles by intent id", func(t *testing.T) {
		f := newPaymentFixture()

		// The charge timed out locally, so the payment row never learned
		// its provider ref; the webhook still lands via the echoed intent.
		settled := &domain.Payment{
			ID:          "pay-1",
			IntentID:    "intent-1",
			OrderID:     TestOrderID,
			ProviderRef: "ch_late",
			Status:      domain.PaymentCompleted,
		}

		f.provider.On("VerifySignature", payload, "sig").Return(true)
		f.provider.On("ParseEvent", payload).Return(&providers.WebhookEvent{
			Kind:        providers.EventSucceeded,
			ProviderRef: "ch_late",
			IntentID:    "intent-1",
		}, nil)
		f.payments.On("TransitionByProviderRef", mock.Anything, "ch_late",
			domain.PaymentCompleted, "", "").Return(nil, false, nil)
		f.payments.On("TransitionByIntentID", mock.Anything, "intent-1", "ch_late",
			domain.PaymentCompleted, "", "").Return(settled, true, nil)
		f.confirmer.On("ConfirmOrder", mock.Anything, TestOrderID).Return(nil)
		f.publisher.On("Publish", mock.Anything, domain.EventPaymentCompleted, mock.Anything).Return(nil).Maybe()

		err := f.service.HandleWebhook(context.Background(), "mockpay", payload, "sig")

		assert.NoError(t, err)
		time.Sleep(50 * time.Millisecond)
		f.payments.AssertExpectations(t)
		f.confirmer.AssertExpectations(t)
	})

	t.Run("lost refund response settles by refund id", func(t *testing.T) {
		f := newPaymentFixture()

		completed := &domain.Refund{
			ID:          "ref-9",
			PaymentID:   "pay-1",
			Amount:      500,
			ProviderRef: "re_late",
			Status:      domain.RefundCompleted,
		}

		f.provider.On("VerifySignature", payload, "sig").Return(true)
		f.provider.On("ParseEvent", payload).Return(&providers.WebhookEvent{
			Kind:        providers.EventRefundSucceeded,
			ProviderRef: "re_late",
			IntentID:    "ref-9",
		}, nil)
		f.payments.On("TransitionRefundByProviderRef", mock.Anything, "re_late",
			domain.RefundCompleted, "").Return(nil, false, nil)
		f.payments.On("TransitionRefundByID", mock.Anything, "ref-9", "re_late",
			domain.RefundCompleted, "").Return(completed, true, nil)
		f.payments.On("FindByID", mock.Anything, "pay-1").Return(&domain.Payment{
			ID:     "pay-1",
			Status: domain.PaymentCompleted,
		}, nil)
		f.payments.On("Update", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)

		err := f.service.HandleWebhook(context.Background(), "mockpay", payload, "sig")

		assert.NoError(t, err)
		f.payments.AssertExpectations(t)
	})

	t.Run("failed event publishes payment.failed", func(t *testing.T) {
		f := newPaymentFixture()

		failed := &domain.Payment{
			ID:          "pay-1",
			OrderID:     TestOrderID,
			ProviderRef: "ch_123",
			Status:      domain.PaymentFailed,
		}

		f.provider.On("VerifySignature", payload, "sig").Return(true)
		f.provider.On("ParseEvent", payload).Return(&providers.WebhookEvent{
			Kind:          providers.EventFailed,
			ProviderRef:   "ch_123",
			FailureCode:   "card_declined",
			FailureReason: "do not honor",
		}, nil)
		f.payments.On("TransitionByProviderRef", mock.Anything, "ch_123",
			domain.PaymentFailed, "card_declined", "do not honor").Return(failed, true, nil)
		f.publisher.On("Publish", mock.Anything, domain.EventPaymentFailed, mock.Anything).Return(nil).Maybe()

		err := f.service.HandleWebhook(context.Background(), "mockpay", payload, "sig")

		assert.NoError(t, err)
		f.confirmer.AssertNotCalled(t, "ConfirmOrder", mock.Anything, mock.Anything)
	})
}

func TestPaymentService_ProcessRefund(t *testing.T) {
	completedPayment := func() *domain.Payment {
		return &domain.Payment{
			ID:          "pay-1",
			OrderID:     TestOrderID,
			Amount:      9640,
			Method:      domain.MethodCard,
			Provider:    "mockpay",
			ProviderRef: "ch_123",
			Status:      domain.PaymentCompleted,
		}
	}

	t.Run("full refund succeeds", func(t *testing.T) {
		f := newPaymentFixture()

		f.payments.On("FindByID", mock.Anything, "pay-1").Return(completedPayment(), nil)
		f.payments.On("CreateRefund", mock.Anything, mock.AnythingOfType("*domain.Refund")).Return(nil)
		f.provider.On("Refund", mock.Anything, mock.MatchedBy(func(req providers.RefundRequest) bool {
			return req.ProviderRef == "ch_123" && req.Amount == 9640 && req.RefundID != ""
		})).Return(&providers.RefundResult{
			ProviderRef: "re_123",
			Status:      domain.RefundCompleted,
		}, nil)
		f.payments.On("UpdateRefund", mock.Anything, mock.AnythingOfType("*domain.Refund")).Return(nil)
		f.payments.On("Update", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.publisher.On("Publish", mock.Anything, domain.EventPaymentRefunded, mock.Anything).Return(nil).Maybe()

		refund, err := f.service.ProcessRefund(context.Background(), "pay-1", 9640, "defective item")

		assert.NoError(t, err)
		assert.Equal(t, domain.RefundCompleted, refund.Status)
		assert.Equal(t, "re_123", refund.ProviderRef)
	})

	t.Run("amount over remaining balance never reaches the provider", func(t *testing.T) {
		f := newPaymentFixture()

		payment := completedPayment()
		payment.Status = domain.PaymentRefundedPartially
		payment.Refunds = []domain.Refund{
			{ID: "ref-1", PaymentID: "pay-1", Amount: 5000, Status: domain.RefundCompleted},
		}
		f.payments.On("FindByID", mock.Anything, "pay-1").Return(payment, nil)

		refund, err := f.service.ProcessRefund(context.Background(), "pay-1", 5000, "second refund")

		assert.Nil(t, refund)
		assert.ErrorIs(t, err, domain.ErrValidation)
		f.provider.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything)
		f.payments.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything)
	})

	t.Run("failed refunds do not count against the ceiling", func(t *testing.T) {
		f := newPaymentFixture()

		payment := completedPayment()
		payment.Refunds = []domain.Refund{
			{ID: "ref-1", PaymentID: "pay-1", Amount: 9640, Status: domain.RefundFailed},
		}
		f.payments.On("FindByID", mock.Anything, "pay-1").Return(payment, nil)
		f.payments.On("CreateRefund", mock.Anything, mock.AnythingOfType("*domain.Refund")).Return(nil)
		f.provider.On("Refund", mock.Anything, mock.Anything).Return(&providers.RefundResult{
			ProviderRef: "re_200",
			Status:      domain.RefundCompleted,
		}, nil)
		f.payments.On("UpdateRefund", mock.Anything, mock.AnythingOfType("*domain.Refund")).Return(nil)
		f.payments.On("Update", mock.Anything, mock.AnythingOfType("*domain.Payment")).Return(nil)
		f.publisher.On("Publish", mock.Anything, domain.EventPaymentRefunded, mock.Anything).Return(nil).Maybe()

		refund, err := f.service.ProcessRefund(context.Background(), "pay-1", 9640, "retry after failure")

		assert.NoError(t, err)
		assert.Equal(t, domain.RefundCompleted, refund.Status)
	})

	t.Run("pending payment is not refundable", func(t *testing.T) {
		f := newPaymentFixture()

		payment := completedPayment()
		payment.Status = domain.PaymentPending
		f.payments.On("FindByID", mock.Anything, "pay-1").Return(payment, nil)

		refund, err := f.service.ProcessRefund(context.Background(), "pay-1", 1000, "too early")

		assert.Nil(t, refund)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("provider timeout leaves the refund processing", func(t *testing.T) {
		f := newPaymentFixture()

		f.payments.On("FindByID", mock.Anything, "pay-1").Return(completedPayment(), nil)
		f.payments.On("CreateRefund", mock.Anything, mock.AnythingOfType("*domain.Refund")).Return(nil)
		f.provider.On("Refund", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

		refund, err := f.service.ProcessRefund(context.Background(), "pay-1", 1000, "slow provider")

		assert.NoError(t, err)
		assert.Equal(t, domain.RefundProcessing, refund.Status)
	})
}

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"marketplace/internal/domain"
	"marketplace/internal/infra"
	"marketplace/internal/infra/providers"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order, history *domain.OrderStatusHistory) error {
	args := m.Called(ctx, order, history)
	return args.Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, comment, actor string, updates map[string]interface{}) (bool, error) {
	args := m.Called(ctx, orderID, from, to, comment, actor, updates)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) MarkReserved(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) TransitionByProviderRef(ctx context.Context, providerRef string, to domain.PaymentStatus, failureCode, failureReason string) (*domain.Payment, bool, error) {
	args := m.Called(ctx, providerRef, to, failureCode, failureReason)
	var p *domain.Payment
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Payment)
	}
	return p, args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) TransitionByIntentID(ctx context.Context, intentID, providerRef string, to domain.PaymentStatus, failureCode, failureReason string) (*domain.Payment, bool, error) {
	args := m.Called(ctx, intentID, providerRef, to, failureCode, failureReason)
	var p *domain.Payment
	if args.Get(0) != nil {
		p = args.Get(0).(*domain.Payment)
	}
	return p, args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *MockPaymentRepository) UpdateRefund(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *MockPaymentRepository) TransitionRefundByProviderRef(ctx context.Context, providerRef string, to domain.RefundStatus, failureReason string) (*domain.Refund, bool, error) {
	args := m.Called(ctx, providerRef, to, failureReason)
	var r *domain.Refund
	if args.Get(0) != nil {
		r = args.Get(0).(*domain.Refund)
	}
	return r, args.Bool(1), args.Error(2)
}

func (m *MockPaymentRepository) TransitionRefundByID(ctx context.Context, refundID, providerRef string, to domain.RefundStatus, failureReason string) (*domain.Refund, bool, error) {
	args := m.Called(ctx, refundID, providerRef, to, failureReason)
	var r *domain.Refund
	if args.Get(0) != nil {
		r = args.Get(0).(*domain.Refund)
	}
	return r, args.Bool(1), args.Error(2)
}

type MockInventoryClient struct {
	mock.Mock
}

func (m *MockInventoryClient) GetProduct(ctx context.Context, productID string) (*infra.ProductInfo, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*infra.ProductInfo), args.Error(1)
}

func (m *MockInventoryClient) Reserve(ctx context.Context, productID string, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *MockInventoryClient) Release(ctx context.Context, productID string, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *MockInventoryClient) Consume(ctx context.Context, productID string, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, data any) error {
	args := m.Called(ctx, routingKey, data)
	return args.Error(0)
}

type MockProvider struct {
	mock.Mock
	ProviderName string
}

func (m *MockProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mockpay"
}

func (m *MockProvider) Charge(ctx context.Context, req providers.ChargeRequest) (*providers.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.ChargeResult), args.Error(1)
}

func (m *MockProvider) Refund(ctx context.Context, req providers.RefundRequest) (*providers.RefundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.RefundResult), args.Error(1)
}

func (m *MockProvider) VerifySignature(payload []byte, signature string) bool {
	args := m.Called(payload, signature)
	return args.Bool(0)
}

func (m *MockProvider) ParseEvent(payload []byte) (*providers.WebhookEvent, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.WebhookEvent), args.Error(1)
}

type MockOrderConfirmer struct {
	mock.Mock
}

func (m *MockOrderConfirmer) ConfirmOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

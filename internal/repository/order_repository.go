package repository

import (
	"context"

	"marketplace/internal/domain"
)

type OrderRepository interface {
	// Create inserts the order, its items and the initial history row in one
	// local transaction. Nothing is visible until commit.
	Create(ctx context.Context, order *domain.Order, history *domain.OrderStatusHistory) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// UpdateStatus performs a guarded transition: the UPDATE carries a
	// `WHERE status = from` clause, and the history row is written in the
	// same transaction. Returns false when the guard did not match, which
	// makes repeated calls no-ops instead of corruption.
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, comment, actor string, updates map[string]interface{}) (bool, error)
	// MarkReserved records that every line item of the order holds a stock
	// reservation. Cancellation only releases stock for orders that carry
	// this mark.
	MarkReserved(ctx context.Context, orderID string) error
}

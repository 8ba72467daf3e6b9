package infra

import "context"

type InventoryClientInterface interface {
	GetProduct(ctx context.Context, productID string) (*ProductInfo, error)
	Reserve(ctx context.Context, productID string, qty int64) error
	Release(ctx context.Context, productID string, qty int64) error
	Consume(ctx context.Context, productID string, qty int64) error
}

var _ InventoryClientInterface = (*InventoryClient)(nil)

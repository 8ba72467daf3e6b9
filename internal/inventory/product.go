package inventory

import (
	"fmt"
	"time"

	"marketplace/internal/domain"
)

// Product holds the per-product counters owned by the inventory service.
// Invariant after every operation: available = quantity - reserved,
// reserved >= 0, available >= 0. Counters are mutated only through
// Reserve/Release/Consume, never by direct assignment from order logic.
type Product struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Name      string    `json:"name" gorm:"size:255;not null"`
	SKU       string    `json:"sku" gorm:"size:64;not null;uniqueIndex"`
	Price     int64     `json:"price" gorm:"not null"`
	Active    bool      `json:"active" gorm:"not null;default:true"`
	Quantity  int64     `json:"quantity" gorm:"not null"`
	Reserved  int64     `json:"reserved" gorm:"not null"`
	Available int64     `json:"available" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// Reserve places a soft hold: availability drops without permanently
// decrementing stock.
func (p *Product) Reserve(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive", domain.ErrValidation)
	}
	if p.Available < qty {
		return fmt.Errorf("%w: product %s has %d available, requested %d",
			domain.ErrInsufficientInventory, p.ID, p.Available, qty)
	}
	p.Reserved += qty
	p.Available -= qty
	return nil
}

// Release undoes a reservation. There is no lower-bound check: callers must
// not release more than they reserved. That is a documented caller contract,
// not ledger-enforced.
func (p *Product) Release(qty int64) {
	p.Reserved -= qty
	p.Available += qty
}

// Consume turns a reservation into a permanent decrement (e.g. the order
// shipped). Availability is unchanged: both quantity and reserved drop.
func (p *Product) Consume(qty int64) error {
	if qty <= 0 {
		return fmt.Errorf("%w: consume quantity must be positive", domain.ErrValidation)
	}
	if p.Reserved < qty {
		return fmt.Errorf("%w: product %s has only %d reserved, cannot consume %d",
			domain.ErrValidation, p.ID, p.Reserved, qty)
	}
	p.Reserved -= qty
	p.Quantity -= qty
	p.Available = p.Quantity - p.Reserved
	return nil
}

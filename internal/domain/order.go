package domain

import "time"

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions is one-directional; no state is re-enterable.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

type PaymentMethod string

const (
	MethodCard           PaymentMethod = "card"
	MethodWallet         PaymentMethod = "wallet"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodWallet, MethodCashOnDelivery:
		return true
	}
	return false
}

// Address is snapshotted onto the order as a JSON blob at creation time and
// never mutated afterwards.
type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// All monetary amounts are int64 cents.
type Order struct {
	ID              string        `json:"id" gorm:"primaryKey;size:36"`
	BuyerID         string        `json:"buyerId" gorm:"size:36;not null;index"`
	Status          OrderStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Subtotal        int64         `json:"subtotal" gorm:"not null"`
	Tax             int64         `json:"tax" gorm:"not null"`
	Shipping        int64         `json:"shipping" gorm:"not null"`
	Discount        int64         `json:"discount" gorm:"not null"`
	Total           int64         `json:"total" gorm:"not null"`
	ShippingAddress string        `json:"shippingAddress" gorm:"type:json"`
	BillingAddress  string        `json:"billingAddress" gorm:"type:json"`
	PaymentMethod   PaymentMethod `json:"paymentMethod" gorm:"type:varchar(20);not null"`
	TrackingNumber  string        `json:"trackingNumber,omitempty" gorm:"size:64"`
	Carrier         string        `json:"carrier,omitempty" gorm:"size:64"`
	// InventoryReserved records that the reservation pass completed, so the
	// cancel path knows whether there is anything to give back. An order
	// whose reservations failed must never be released: the ledger has no
	// lower bound on release and would go negative.
	InventoryReserved bool `json:"inventoryReserved" gorm:"not null;default:false"`

	Items   []OrderItem          `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `json:"-" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// OrderItem carries a price/name/sku snapshot taken at order time so later
// product edits never retroactively change historical orders.
type OrderItem struct {
	ID        uint64 `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   string `json:"orderId" gorm:"size:36;not null;index"`
	ProductID string `json:"productId" gorm:"size:36;not null;index"`
	Name      string `json:"name" gorm:"size:255;not null"`
	SKU       string `json:"sku" gorm:"size:64;not null"`
	UnitPrice int64  `json:"unitPrice" gorm:"not null"`
	Quantity  int64  `json:"quantity" gorm:"not null"`
	LineTotal int64  `json:"lineTotal" gorm:"not null"`
}

// OrderStatusHistory is an append-only audit log; rows are never updated or
// deleted while the order lives.
type OrderStatusHistory struct {
	ID        uint64      `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   string      `json:"orderId" gorm:"size:36;not null;index"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(20);not null"`
	Comment   string      `json:"comment" gorm:"size:255"`
	Actor     string      `json:"actor" gorm:"size:64"`
	CreatedAt time.Time   `json:"createdAt" gorm:"autoCreateTime"`
}

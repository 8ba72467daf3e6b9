package domain

import "time"

type PaymentStatus string

const (
	PaymentProcessing        PaymentStatus = "processing"
	PaymentPending           PaymentStatus = "pending"
	PaymentCompleted         PaymentStatus = "completed"
	PaymentFailed            PaymentStatus = "failed"
	PaymentCancelled         PaymentStatus = "cancelled"
	PaymentRefundedPartially PaymentStatus = "refunded_partially"
)

// Terminal reports whether webhook reconciliation may no longer move the
// payment. Duplicate provider deliveries against a terminal payment are
// no-ops.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentCancelled, PaymentRefundedPartially:
		return true
	}
	return false
}

// Refundable reports whether a refund may be opened against the payment.
// A partially refunded payment remains refundable; the caller checks the
// remaining amount.
func (s PaymentStatus) Refundable() bool {
	return s == PaymentCompleted || s == PaymentRefundedPartially
}

// Payment is one row per charge attempt, not per order. A retried attempt
// creates a new row with a fresh intent id; orders may accumulate several
// payments over their lifetime.
type Payment struct {
	ID            string        `json:"id" gorm:"primaryKey;size:36"`
	IntentID      string        `json:"intentId" gorm:"size:36;not null;uniqueIndex"`
	OrderID       string        `json:"orderId" gorm:"size:36;not null;index"`
	Amount        int64         `json:"amount" gorm:"not null"`
	Method        PaymentMethod `json:"method" gorm:"type:varchar(20);not null"`
	Provider      string        `json:"provider" gorm:"size:32"`
	ProviderRef   string        `json:"providerRef,omitempty" gorm:"size:128;index"`
	Status        PaymentStatus `json:"status" gorm:"type:varchar(20);not null"`
	FailureCode   string        `json:"failureCode,omitempty" gorm:"size:64"`
	FailureReason string        `json:"failureReason,omitempty" gorm:"size:255"`

	Refunds []Refund `json:"refunds,omitempty" gorm:"foreignKey:PaymentID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

type RefundStatus string

const (
	RefundProcessing RefundStatus = "processing"
	RefundCompleted  RefundStatus = "completed"
	RefundFailed     RefundStatus = "failed"
)

// Refund belongs to exactly one completed payment. The amount ceiling is
// enforced by the service, not the schema.
type Refund struct {
	ID          string       `json:"id" gorm:"primaryKey;size:36"`
	PaymentID   string       `json:"paymentId" gorm:"size:36;not null;index"`
	Amount      int64        `json:"amount" gorm:"not null"`
	Reason      string       `json:"reason" gorm:"size:255"`
	Status      RefundStatus `json:"status" gorm:"type:varchar(20);not null"`
	ProviderRef string       `json:"providerRef,omitempty" gorm:"size:128;index"`
	CreatedAt   time.Time    `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time    `json:"updatedAt" gorm:"autoUpdateTime"`
}

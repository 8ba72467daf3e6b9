package http

import "marketplace/internal/domain"

type addressDTO struct {
	Name       string `json:"name" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" binding:"required"`
	Country    string `json:"country" binding:"required"`
}

func (a addressDTO) toDomain() domain.Address {
	return domain.Address{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type orderItemDTO struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
}

type createOrderRequest struct {
	Items           []orderItemDTO `json:"items" binding:"required,min=1,dive"`
	PaymentMethod   string         `json:"paymentMethod" binding:"required"`
	ShippingAddress addressDTO     `json:"shippingAddress" binding:"required"`
	BillingAddress  addressDTO     `json:"billingAddress" binding:"required"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type fulfillOrderRequest struct {
	TrackingNumber string `json:"trackingNumber" binding:"required"`
	Carrier        string `json:"carrier" binding:"required"`
}

type paymentRequest struct {
	OrderID        string            `json:"orderId" binding:"required"`
	PaymentDetails map[string]string `json:"paymentDetails"`
}

type refundRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,min=1"`
	Reason    string `json:"reason" binding:"required"`
}

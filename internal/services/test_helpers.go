package services

import (
	"encoding/json"

	"marketplace/internal/domain"
	"marketplace/internal/infra"
)

const (
	TestBuyerID   = "buyer-1"
	TestOrderID   = "order-1"
	TestProductID = "prod-1"
)

func testAddress() domain.Address {
	return domain.Address{
		Name:       "Jordan Reyes",
		Line1:      "500 Market St",
		City:       "Springfield",
		PostalCode: "62701",
		Country:    "US",
	}
}

func testAddressJSON() string {
	b, _ := json.Marshal(testAddress())
	return string(b)
}

func testProduct(id string, price, available int64) *infra.ProductInfo {
	return &infra.ProductInfo{
		ID:        id,
		Name:      "Test Product " + id,
		SKU:       "SKU-" + id,
		Price:     price,
		Active:    true,
		Available: available,
	}
}

func testOrder(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:              TestOrderID,
		BuyerID:         TestBuyerID,
		Status:          status,
		Subtotal:        8000,
		Tax:             640,
		Shipping:        1000,
		Total:           9640,
		ShippingAddress: testAddressJSON(),
		BillingAddress:  testAddressJSON(),
		PaymentMethod:   domain.MethodCard,
		// Orders in these fixtures hold their reservations unless a test
		// clears the flag.
		InventoryReserved: true,
		Items: []domain.OrderItem{
			{
				OrderID:   TestOrderID,
				ProductID: TestProductID,
				Name:      "Test Product",
				SKU:       "SKU-1",
				UnitPrice: 4000,
				Quantity:  2,
				LineTotal: 8000,
			},
		},
	}
}

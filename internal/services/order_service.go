package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"marketplace/internal/domain"
	"marketplace/internal/infra"
	rabbit "marketplace/internal/infra/rabbitmq"
	"marketplace/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const (
	taxRatePercent        = 8
	freeShippingThreshold = 10000
	flatShippingFee       = 1000

	productCacheTTL = time.Minute
)

type OrderItemRequest struct {
	ProductID string
	Quantity  int64
}

type CreateOrderRequest struct {
	BuyerID         string
	Items           []OrderItemRequest
	PaymentMethod   domain.PaymentMethod
	ShippingAddress domain.Address
	BillingAddress  domain.Address
}

// OrderService orchestrates the order lifecycle. The local order row is the
// source of truth; inventory reservations follow it and are compensated with
// releases when a later step fails, there is no cross-service transaction.
type OrderService struct {
	repo        repository.OrderRepository
	invClient   infra.InventoryClientInterface
	publisher   rabbit.PublisherInterface
	redisClient *redis.Client
}

func NewOrderService(r repository.OrderRepository, inv infra.InventoryClientInterface, pub rabbit.PublisherInterface) *OrderService {
	return &OrderService{
		repo:      r,
		invClient: inv,
		publisher: pub,
	}
}

func (s *OrderService) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// CreateOrder runs the creation saga: validate, snapshot products, price,
// persist, reserve. When a reservation fails after commit every earlier
// reservation is released and the order is left pending; the caller decides
// whether to retry or cancel. A visible inconsistent order beats hidden
// double-booked inventory.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if err := validateCreateOrder(req); err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	var subtotal int64
	for _, it := range req.Items {
		prod, err := s.getProductWithCache(ctx, it.ProductID)
		if err != nil {
			return nil, err
		}
		if !prod.Active {
			return nil, fmt.Errorf("%w: product %s", domain.ErrProductUnavailable, it.ProductID)
		}
		if prod.Available < it.Quantity {
			return nil, fmt.Errorf("%w: product %s", domain.ErrInsufficientInventory, it.ProductID)
		}
		lineTotal := prod.Price * it.Quantity
		subtotal += lineTotal
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      prod.Name,
			SKU:       prod.SKU,
			UnitPrice: prod.Price,
			Quantity:  it.Quantity,
			LineTotal: lineTotal,
		})
	}

	tax := subtotal * taxRatePercent / 100
	var shipping int64
	if subtotal < freeShippingThreshold {
		shipping = flatShippingFee
	}

	shipAddr, _ := json.Marshal(req.ShippingAddress)
	billAddr, _ := json.Marshal(req.BillingAddress)

	order := &domain.Order{
		ID:              uuid.NewString(),
		BuyerID:         req.BuyerID,
		Status:          domain.StatusPending,
		Subtotal:        subtotal,
		Tax:             tax,
		Shipping:        shipping,
		Total:           subtotal + tax + shipping,
		ShippingAddress: string(shipAddr),
		BillingAddress:  string(billAddr),
		PaymentMethod:   req.PaymentMethod,
		Items:           items,
	}

	if err := s.repo.Create(ctx, order, &domain.OrderStatusHistory{
		Status:  domain.StatusPending,
		Comment: "order placed",
		Actor:   req.BuyerID,
	}); err != nil {
		return nil, err
	}

	if err := s.reserveItems(ctx, order); err != nil {
		logger.Warn().Err(err).Str("order_id", order.ID).Msg("reservation incomplete, order left pending")
		return order, err
	}
	if err := s.repo.MarkReserved(ctx, order.ID); err != nil {
		// The cancel path only releases marked orders; give the stock back
		// now rather than strand a reservation it cannot see.
		s.releaseItems(ctx, order.ID, order.Items)
		logger.Warn().Err(err).Str("order_id", order.ID).Msg("reservation not recorded, order left pending")
		return order, err
	}
	order.InventoryReserved = true

	go s.publishOrderEvent(context.Background(), domain.EventOrderCreated, order, "")

	return order, nil
}

// reserveItems reserves stock for every line item. On the first failure it
// releases what was already reserved and reports the failure; reservations
// are never retried because a retry that landed twice would double-book.
func (s *OrderService) reserveItems(ctx context.Context, order *domain.Order) error {
	reserved := make([]domain.OrderItem, 0, len(order.Items))
	for _, it := range order.Items {
		if err := s.invClient.Reserve(ctx, it.ProductID, it.Quantity); err != nil {
			s.releaseItems(ctx, order.ID, reserved)
			return err
		}
		reserved = append(reserved, it)
	}
	return nil
}

// releaseItems gives reservations back best-effort. Failures are logged and
// left for the operator; the ledger has no record tying reservations to
// orders, so a missed release cannot be replayed automatically.
func (s *OrderService) releaseItems(ctx context.Context, orderID string, items []domain.OrderItem) {
	for _, it := range items {
		if relErr := s.invClient.Release(ctx, it.ProductID, it.Quantity); relErr != nil {
			logger.Error().Err(relErr).
				Str("order_id", orderID).
				Str("product_id", it.ProductID).
				Int64("quantity", it.Quantity).
				Msg("inventory_release_failed")
		}
	}
}

// GetOrder returns the order only to its buyer. A wrong buyer gets forbidden,
// not not-found, so enumeration still reveals that the id exists; ids are
// random uuids so this is acceptable.
func (s *OrderService) GetOrder(ctx context.Context, orderID, buyerID string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// CancelOrder cancels a pending or confirmed order on the buyer's behalf and
// releases its reservations, but only when the reservation pass actually
// completed; the compensation after a failed pass already gave the stock
// back. Release failures are logged, never surfaced: the cancellation
// already committed and stands.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, buyerID, reason string) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}
	if !order.Status.Cancellable() {
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", domain.ErrInvalidTransition, order.Status)
	}

	applied, err := s.repo.UpdateStatus(ctx, orderID, order.Status, domain.StatusCancelled, reason, buyerID, nil)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race to a concurrent transition; report the conflict.
		return nil, fmt.Errorf("%w: order status changed concurrently", domain.ErrInvalidTransition)
	}
	order.Status = domain.StatusCancelled

	if order.InventoryReserved {
		s.releaseItems(ctx, order.ID, order.Items)
	}

	go s.publishOrderEvent(context.Background(), domain.EventOrderCancelled, order, reason)

	return order, nil
}

// ConfirmOrder moves a pending order to confirmed after its payment
// completed. Idempotent: confirming an already confirmed order is a no-op.
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID string) error {
	applied, err := s.repo.UpdateStatus(ctx, orderID, domain.StatusPending, domain.StatusConfirmed,
		"payment completed", "system", nil)
	if err != nil {
		return err
	}
	if !applied {
		order, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusConfirmed {
			return nil
		}
		return fmt.Errorf("%w: order %s is %s, expected pending", domain.ErrInvalidTransition, orderID, order.Status)
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err == nil {
		go s.publishOrderEvent(context.Background(), domain.EventOrderConfirmed, order, "")
		go s.publishNotification(context.Background(), order)
	}
	return nil
}

// ShipOrder starts fulfillment on a confirmed order. Calling it again on an
// order already processing is a no-op success.
func (s *OrderService) ShipOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, _, err := s.advance(ctx, orderID, domain.StatusConfirmed, domain.StatusProcessing,
		"fulfillment started", nil, "")
	return order, err
}

// FulfillOrder marks a processing order shipped, records the tracking number
// and consumes the reservations so stock leaves the warehouse for good.
// Consumption is tied to winning the status transition: a repeated call sees
// the order already shipped and must not decrement the ledger again.
func (s *OrderService) FulfillOrder(ctx context.Context, orderID, trackingNumber, carrier string) (*domain.Order, error) {
	if trackingNumber == "" || carrier == "" {
		return nil, fmt.Errorf("%w: tracking number and carrier are required", domain.ErrValidation)
	}
	order, applied, err := s.advance(ctx, orderID, domain.StatusProcessing, domain.StatusShipped,
		"shipped via "+carrier, map[string]interface{}{
			"tracking_number": trackingNumber,
			"carrier":         carrier,
		}, domain.EventOrderShipped)
	if err != nil {
		return nil, err
	}
	if !applied {
		return order, nil
	}

	for _, it := range order.Items {
		if conErr := s.invClient.Consume(ctx, it.ProductID, it.Quantity); conErr != nil {
			logger.Error().Err(conErr).
				Str("order_id", order.ID).
				Str("product_id", it.ProductID).
				Int64("quantity", it.Quantity).
				Msg("inventory consume failed")
		}
	}
	return order, nil
}

// MarkDelivered closes out a shipped order.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID string) (*domain.Order, error) {
	order, _, err := s.advance(ctx, orderID, domain.StatusShipped, domain.StatusDelivered,
		"delivery confirmed", nil, "")
	return order, err
}

func (s *OrderService) advance(ctx context.Context, orderID string, from, to domain.OrderStatus, comment string, updates map[string]interface{}, event string) (*domain.Order, bool, error) {
	applied, err := s.repo.UpdateStatus(ctx, orderID, from, to, comment, "system", updates)
	if err != nil {
		return nil, false, err
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		if order.Status == to {
			return order, false, nil
		}
		return nil, false, fmt.Errorf("%w: order %s is %s, expected %s", domain.ErrInvalidTransition, orderID, order.Status, from)
	}
	if event != "" {
		go s.publishOrderEvent(context.Background(), event, order, "")
	}
	return order, true, nil
}

func (s *OrderService) getProductWithCache(ctx context.Context, productID string) (*infra.ProductInfo, error) {
	cacheKey := "product:" + productID

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var prod infra.ProductInfo
			if err := json.Unmarshal([]byte(cached), &prod); err == nil {
				return &prod, nil
			}
		}
	}

	prod, err := s.invClient.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(prod); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}

	return prod, nil
}

func (s *OrderService) publishOrderEvent(ctx context.Context, routingKey string, order *domain.Order, reason string) {
	evt := domain.OrderEvent{
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		Status:     order.Status,
		Total:      order.Total,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, routingKey, evt); err != nil {
		logger.Error().Err(err).Str("routing_key", routingKey).Str("order_id", order.ID).Msg("event publish failed")
	}
}

func (s *OrderService) publishNotification(ctx context.Context, order *domain.Order) {
	req := domain.NotificationRequest{
		Template:   "order_confirmation",
		BuyerID:    order.BuyerID,
		OrderID:    order.ID,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, domain.EventNotifyOrderConfirmation, req); err != nil {
		logger.Error().Err(err).Str("order_id", order.ID).Msg("notification publish failed")
	}
}

func validateCreateOrder(req CreateOrderRequest) error {
	if req.BuyerID == "" {
		return fmt.Errorf("%w: buyer id is required", domain.ErrValidation)
	}
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", domain.ErrValidation)
	}
	seen := make(map[string]bool, len(req.Items))
	for _, it := range req.Items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: product id is required", domain.ErrValidation)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: quantity must be at least 1", domain.ErrValidation)
		}
		if seen[it.ProductID] {
			return fmt.Errorf("%w: duplicate product %s", domain.ErrValidation, it.ProductID)
		}
		seen[it.ProductID] = true
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", domain.ErrValidation, req.PaymentMethod)
	}
	if err := validateAddress("shipping", req.ShippingAddress); err != nil {
		return err
	}
	return validateAddress("billing", req.BillingAddress)
}

func validateAddress(kind string, a domain.Address) error {
	if a.Name == "" || a.Line1 == "" || a.City == "" || a.PostalCode == "" || a.Country == "" {
		return fmt.Errorf("%w: incomplete %s address", domain.ErrValidation, kind)
	}
	return nil
}

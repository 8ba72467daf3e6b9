package mysql

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order, history *domain.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			logger.Error().Err(err).Str("order_id", order.ID).Msg("order insert failed")
			return err
		}
		history.OrderID = order.ID
		if err := tx.Create(history).Error; err != nil {
			logger.Error().Err(err).Str("order_id", order.ID).Msg("history insert failed")
			return err
		}
		return nil
	})
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		First(&o, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, comment, actor string, updates map[string]interface{}) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		values := map[string]interface{}{"status": to}
		for k, v := range updates {
			values[k] = v
		}
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND status = ?", orderID, from).
			Updates(values)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Create(&domain.OrderStatusHistory{
			OrderID: orderID,
			Status:  to,
			Comment: comment,
			Actor:   actor,
		}).Error
	})
	return applied, err
}

func (r *orderRepo) MarkReserved(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).Model(&domain.Order{}).
		Where("id = ?", orderID).
		Update("inventory_reserved", true).Error
}

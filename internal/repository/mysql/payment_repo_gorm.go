package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
)

type paymentRepo struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) repository.PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		logger.Error().Err(err).Str("payment_id", payment.ID).Msg("payment insert failed")
		return err
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, id string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.WithContext(ctx).Preload("Refunds").First(&p, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) Update(ctx context.Context, payment *domain.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *paymentRepo) TransitionByProviderRef(ctx context.Context, providerRef string, to domain.PaymentStatus, failureCode, failureReason string) (*domain.Payment, bool, error) {
	var out *domain.Payment
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Payment{}).
			Where("provider_ref = ? AND status IN ?", providerRef,
				[]domain.PaymentStatus{domain.PaymentProcessing, domain.PaymentPending}).
			Updates(map[string]interface{}{
				"status":         to,
				"failure_code":   failureCode,
				"failure_reason": failureReason,
			})
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0

		var p domain.Payment
		err := tx.First(&p, "provider_ref = ?", providerRef).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		out = &p
		return nil
	})
	return out, applied, err
}

func (r *paymentRepo) TransitionByIntentID(ctx context.Context, intentID, providerRef string, to domain.PaymentStatus, failureCode, failureReason string) (*domain.Payment, bool, error) {
	var out *domain.Payment
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Payment{}).
			Where("intent_id = ? AND status IN ?", intentID,
				[]domain.PaymentStatus{domain.PaymentProcessing, domain.PaymentPending}).
			Updates(map[string]interface{}{
				"provider_ref":   providerRef,
				"status":         to,
				"failure_code":   failureCode,
				"failure_reason": failureReason,
			})
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0

		var p domain.Payment
		err := tx.First(&p, "intent_id = ?", intentID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		out = &p
		return nil
	})
	return out, applied, err
}

func (r *paymentRepo) CreateRefund(ctx context.Context, refund *domain.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

func (r *paymentRepo) UpdateRefund(ctx context.Context, refund *domain.Refund) error {
	return r.db.WithContext(ctx).Save(refund).Error
}

func (r *paymentRepo) TransitionRefundByProviderRef(ctx context.Context, providerRef string, to domain.RefundStatus, failureReason string) (*domain.Refund, bool, error) {
	var out *domain.Refund
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Refund{}).
			Where("provider_ref = ? AND status = ?", providerRef, domain.RefundProcessing).
			Updates(map[string]interface{}{
				"status":         to,
				"failure_reason": failureReason,
			})
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0

		var ref domain.Refund
		err := tx.First(&ref, "provider_ref = ?", providerRef).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		out = &ref
		return nil
	})
	return out, applied, err
}

func (r *paymentRepo) TransitionRefundByID(ctx context.Context, refundID, providerRef string, to domain.RefundStatus, failureReason string) (*domain.Refund, bool, error) {
	var out *domain.Refund
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Refund{}).
			Where("id = ? AND status = ?", refundID, domain.RefundProcessing).
			Updates(map[string]interface{}{
				"provider_ref":   providerRef,
				"status":         to,
				"failure_reason": failureReason,
			})
		if res.Error != nil {
			return res.Error
		}
		applied = res.RowsAffected > 0

		var ref domain.Refund
		err := tx.First(&ref, "id = ?", refundID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		out = &ref
		return nil
	})
	return out, applied, err
}

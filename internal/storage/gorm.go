package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
)

// DB is the GORM-backed Store used in production.
type DB struct {
	db *gorm.DB
}

// Open connects to Postgres, migrates the reconciliation tables, and returns
// the Store.
func Open(dsn string) (*DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&model.Product{}, &model.Order{}, &model.OrderItem{}, &model.Payment{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{db: db}, nil
}

// NewDB wraps an existing GORM handle, for tests.
func NewDB(db *gorm.DB) *DB { return &DB{db: db} }

func (d *DB) PaymentByProviderID(ctx context.Context, providerID string) (*model.Payment, error) {
	if providerID == "" {
		return nil, ErrNotFound
	}
	var p model.Payment
	err := d.db.WithContext(ctx).Where("provider_payment_id = ?", providerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payment by provider id: %w", err)
	}
	return &p, nil
}

func (d *DB) PaymentByOrderID(ctx context.Context, orderID uint) (*model.Payment, error) {
	var p model.Payment
	err := d.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payment by order id: %w", err)
	}
	return &p, nil
}

func (d *DB) OrderWithItems(ctx context.Context, orderID uint) (*model.Order, error) {
	var o model.Order
	err := d.db.WithContext(ctx).Preload("Items").First(&o, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order with items: %w", err)
	}
	return &o, nil
}

// AddStock increments the product's stock in the database, not in application
// code, so concurrent deliveries and the checkout flow cannot lose updates.
func (d *DB) AddStock(ctx context.Context, productID uint, qty int) error {
	res := d.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("add stock product=%d: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SavePaymentAndOrder writes the payment and the order status fields in one
// transaction, so a crash cannot leave them inconsistent.
func (d *DB) SavePaymentAndOrder(ctx context.Context, p *model.Payment, o *model.Order) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Payment{}).Where("id = ?", p.ID).Updates(map[string]any{
			"status":              p.Status,
			"provider_payment_id": p.ProviderPaymentID,
			"raw_response":        p.RawResponse,
		}).Error; err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		if err := tx.Model(&model.Order{}).Where("id = ?", o.ID).Updates(map[string]any{
			"status":         o.Status,
			"payment_status": o.PaymentStatus,
		}).Error; err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return nil
	})
}

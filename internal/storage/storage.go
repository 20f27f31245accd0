// Package storage implements the persistence gateway for orders, payments,
// and products.
package storage

import (
	"context"
	"errors"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the persistence capability the reconciliation engine depends on.
//
// AddStock must be an atomic storage-level increment: order rows are shared
// with the checkout flow and concurrent webhook deliveries, so read-modify-
// write in application code would lose updates. SavePaymentAndOrder must
// write both records in one transaction.
type Store interface {
	PaymentByProviderID(ctx context.Context, providerID string) (*model.Payment, error)
	PaymentByOrderID(ctx context.Context, orderID uint) (*model.Payment, error)
	OrderWithItems(ctx context.Context, orderID uint) (*model.Order, error)
	AddStock(ctx context.Context, productID uint, qty int) error
	SavePaymentAndOrder(ctx context.Context, p *model.Payment, o *model.Order) error
}

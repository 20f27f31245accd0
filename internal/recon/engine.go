package recon

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/events"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/obs"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/storage"
)

// ErrPaymentNotFound indicates no local payment matches the provider record,
// neither by provider payment id nor via the external-reference fallback.
var ErrPaymentNotFound = errors.New("payment not found")

// CompensationError reports which stock increments failed. Successful items
// are already applied; an operator reconciles the failed ones manually.
type CompensationError struct {
	FailedProducts []uint
	Err            error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("stock compensation failed for products %v: %v", e.FailedProducts, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

// Result describes what one reconciliation did.
type Result struct {
	PaymentID      uint
	OrderID        uint
	ProviderStatus model.ProviderStatus
	PaymentStatus  model.PaymentStatus
	OrderStatus    model.OrderStatus
	StatusKnown    bool
	StockReversed  bool
	ItemsReversed  int
	Idempotent     bool
}

// Engine reconciles local payment/order state against a fetched provider
// payment record. The persistence gateway and the event publisher are
// injected; the engine holds no other state.
type Engine struct {
	store storage.Store
	pub   events.Publisher
}

// New constructs an Engine. pub may be nil; events are then dropped.
func New(store storage.Store, pub events.Publisher) *Engine {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Engine{store: store, pub: pub}
}

// Reconcile runs the full flow for one fetched provider payment: lookup,
// status mapping, stock compensation, transactional persist, event publish.
// The steps are a hard dependency chain in that order.
func (e *Engine) Reconcile(ctx context.Context, pp *model.ProviderPayment) (*Result, error) {
	payment, err := e.lookup(ctx, pp)
	if err != nil {
		return nil, err
	}

	out := Map(pp.Status)
	if !out.Known {
		obs.Logger.Warn("provider_status_unknown",
			"provider_payment_id", pp.ID,
			"provider_status", string(pp.Status),
			"payment_id", payment.ID,
		)
		order, err := e.store.OrderWithItems(ctx, payment.OrderID)
		if err != nil {
			return nil, fmt.Errorf("load order %d: %w", payment.OrderID, err)
		}
		return &Result{
			PaymentID:      payment.ID,
			OrderID:        order.ID,
			ProviderStatus: pp.Status,
			PaymentStatus:  payment.Status,
			OrderStatus:    order.Status,
		}, nil
	}

	// Idempotency guard: the provider redelivers webhooks at least once. A
	// payment already in the target status was fully processed, including any
	// stock compensation, so reprocessing must not touch stock again.
	if payment.Status == out.PaymentStatus {
		order, err := e.store.OrderWithItems(ctx, payment.OrderID)
		if err != nil {
			return nil, fmt.Errorf("load order %d: %w", payment.OrderID, err)
		}
		obs.Logger.Info("reconcile_idempotent",
			"payment_id", payment.ID,
			"order_id", order.ID,
			"status", string(payment.Status),
		)
		return &Result{
			PaymentID:      payment.ID,
			OrderID:        order.ID,
			ProviderStatus: pp.Status,
			PaymentStatus:  payment.Status,
			OrderStatus:    order.Status,
			StatusKnown:    true,
			Idempotent:     true,
		}, nil
	}

	order, err := e.store.OrderWithItems(ctx, payment.OrderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", payment.OrderID, err)
	}

	// Compensation runs before the status persist so its failures surface
	// distinctly from persistence failures.
	itemsReversed := 0
	if out.ReverseStock {
		if err := e.compensate(ctx, order.Items); err != nil {
			return nil, err
		}
		itemsReversed = len(order.Items)
	}

	payment.Status = out.PaymentStatus
	payment.ProviderPaymentID = pp.ID
	payment.RawResponse = datatypes.JSON(pp.Raw)
	order.Status = out.OrderStatus
	order.PaymentStatus = out.PaymentStatus
	if err := e.store.SavePaymentAndOrder(ctx, payment, order); err != nil {
		return nil, fmt.Errorf("persist payment %d / order %d: %w", payment.ID, order.ID, err)
	}

	obs.Logger.Info("reconciled",
		"payment_id", payment.ID,
		"order_id", order.ID,
		"provider_status", string(pp.Status),
		"payment_status", string(out.PaymentStatus),
		"order_status", string(out.OrderStatus),
		"stock_reversed", out.ReverseStock,
	)

	if err := e.pub.Publish(ctx, events.StatusChange{
		OrderID:        order.ID,
		PaymentID:      payment.ID,
		ProviderStatus: pp.Status,
		PaymentStatus:  out.PaymentStatus,
		OrderStatus:    out.OrderStatus,
		StockReversed:  out.ReverseStock,
		OccurredAt:     time.Now().UTC(),
	}); err != nil {
		// State is already persisted; a lost event is not worth a retry storm.
		obs.Logger.Warn("status_change_publish_failed", "order_id", order.ID, "error", err)
	}

	return &Result{
		PaymentID:      payment.ID,
		OrderID:        order.ID,
		ProviderStatus: pp.Status,
		PaymentStatus:  out.PaymentStatus,
		OrderStatus:    out.OrderStatus,
		StatusKnown:    true,
		StockReversed:  out.ReverseStock,
		ItemsReversed:  itemsReversed,
	}, nil
}

// lookup finds the local payment by provider payment id, falling back to the
// provider's external reference interpreted as the local order id.
func (e *Engine) lookup(ctx context.Context, pp *model.ProviderPayment) (*model.Payment, error) {
	p, err := e.store.PaymentByProviderID(ctx, pp.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup by provider id %q: %w", pp.ID, err)
	}
	if pp.ExternalReference == "" {
		return nil, ErrPaymentNotFound
	}
	orderID, perr := strconv.ParseUint(pp.ExternalReference, 10, 32)
	if perr != nil {
		return nil, ErrPaymentNotFound
	}
	p, err = e.store.PaymentByOrderID(ctx, uint(orderID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup by order id %d: %w", orderID, err)
	}
	return p, nil
}

// compensate increments stock for every line item. Items are independent and
// run concurrently; every item is attempted even when some fail, and the
// failing product ids are reported back.
func (e *Engine) compensate(ctx context.Context, items []model.OrderItem) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []uint
		errs   []error
	)
	for _, it := range items {
		wg.Add(1)
		go func(it model.OrderItem) {
			defer wg.Done()
			if err := e.store.AddStock(ctx, it.ProductID, it.Quantity); err != nil {
				mu.Lock()
				failed = append(failed, it.ProductID)
				errs = append(errs, fmt.Errorf("product %d: %w", it.ProductID, err))
				mu.Unlock()
			}
		}(it)
	}
	wg.Wait()
	if len(errs) > 0 {
		return &CompensationError{FailedProducts: failed, Err: errors.Join(errs...)}
	}
	return nil
}

package recon

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/events"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/storage"
)

func seedStore() *storage.Memory {
	st := storage.NewMemory()
	st.SeedProduct(model.Product{ID: 1, Stock: 10})
	st.SeedProduct(model.Product{ID: 2, Stock: 20})
	st.SeedOrder(model.Order{
		ID:            42,
		Total:         decimal.NewFromInt(300),
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		Items: []model.OrderItem{
			{ID: 1, OrderID: 42, ProductID: 1, Quantity: 2},
			{ID: 2, OrderID: 42, ProductID: 2, Quantity: 3},
		},
	}, model.Payment{ID: 7, OrderID: 42, ProviderPaymentID: "mp-123", Status: model.PaymentPending})
	return st
}

func TestReconcileApproved(t *testing.T) {
	st := seedStore()
	eng := New(st, nil)

	res, err := eng.Reconcile(context.Background(), &model.ProviderPayment{
		ID:     "mp-123",
		Status: model.ProviderApproved,
		Raw:    []byte(`{"status":"approved"}`),
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.PaymentStatus != model.PaymentPaid || res.OrderStatus != model.OrderProcessing {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.StockReversed {
		t.Fatalf("approved must not reverse stock")
	}
	o, _ := st.Order(42)
	if o.Status != model.OrderProcessing || o.PaymentStatus != model.PaymentPaid {
		t.Fatalf("order not persisted: %+v", o)
	}
	p, _ := st.Payment(7)
	if p.Status != model.PaymentPaid || len(p.RawResponse) == 0 {
		t.Fatalf("payment not persisted: %+v", p)
	}
	for id, want := range map[uint]int64{1: 10, 2: 20} {
		if got, _ := st.Product(id); got.Stock != want {
			t.Fatalf("product %d stock changed: %d", id, got.Stock)
		}
	}
}

func TestReconcileRejectedReversesPerProduct(t *testing.T) {
	st := seedStore()
	eng := New(st, nil)

	res, err := eng.Reconcile(context.Background(), &model.ProviderPayment{ID: "mp-123", Status: model.ProviderRejected})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.StockReversed || res.ItemsReversed != 2 {
		t.Fatalf("expected both items reversed: %+v", res)
	}
	if p1, _ := st.Product(1); p1.Stock != 12 {
		t.Fatalf("product 1 stock: %d", p1.Stock)
	}
	if p2, _ := st.Product(2); p2.Stock != 23 {
		t.Fatalf("product 2 stock: %d", p2.Stock)
	}
	o, _ := st.Order(42)
	if o.Status != model.OrderCancelled || o.PaymentStatus != model.PaymentRejected {
		t.Fatalf("order: %+v", o)
	}
}

func TestReconcileRefundedTwiceIsIdempotent(t *testing.T) {
	st := seedStore()
	eng := New(st, nil)
	pp := &model.ProviderPayment{ID: "mp-123", Status: model.ProviderRefunded}

	if _, err := eng.Reconcile(context.Background(), pp); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	res, err := eng.Reconcile(context.Background(), pp)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if !res.Idempotent {
		t.Fatalf("expected idempotent result: %+v", res)
	}
	if p1, _ := st.Product(1); p1.Stock != 12 {
		t.Fatalf("stock double-incremented: %d", p1.Stock)
	}
	if p2, _ := st.Product(2); p2.Stock != 23 {
		t.Fatalf("stock double-incremented: %d", p2.Stock)
	}
}

func TestReconcileLookupFallbackByExternalReference(t *testing.T) {
	st := seedStore()
	eng := New(st, nil)

	res, err := eng.Reconcile(context.Background(), &model.ProviderPayment{
		ID:                "mp-unknown",
		Status:            model.ProviderApproved,
		ExternalReference: "42",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.PaymentID != 7 || res.OrderID != 42 {
		t.Fatalf("fallback resolved wrong records: %+v", res)
	}
	// The provider payment id is refreshed on the local record.
	p, _ := st.Payment(7)
	if p.ProviderPaymentID != "mp-unknown" {
		t.Fatalf("provider id not refreshed: %q", p.ProviderPaymentID)
	}
}

func TestReconcileNotFound(t *testing.T) {
	st := seedStore()
	eng := New(st, nil)

	for _, pp := range []*model.ProviderPayment{
		{ID: "nope", Status: model.ProviderApproved},
		{ID: "nope", Status: model.ProviderApproved, ExternalReference: "9999"},
		{ID: "nope", Status: model.ProviderApproved, ExternalReference: "not-a-number"},
	} {
		if _, err := eng.Reconcile(context.Background(), pp); !errors.Is(err, ErrPaymentNotFound) {
			t.Fatalf("expected ErrPaymentNotFound, got %v", err)
		}
	}
	o, _ := st.Order(42)
	if o.Status != model.OrderPending {
		t.Fatalf("state mutated on not-found: %+v", o)
	}
}

func TestReconcileUnknownStatusLeavesStateAlone(t *testing.T) {
	st := seedStore()
	eng := New(st, nil)

	res, err := eng.Reconcile(context.Background(), &model.ProviderPayment{ID: "mp-123", Status: "charged_back"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.StatusKnown || res.StockReversed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.PaymentStatus != model.PaymentPending || res.OrderStatus != model.OrderPending {
		t.Fatalf("reported statuses should be the current ones: %+v", res)
	}
	o, _ := st.Order(42)
	if o.Status != model.OrderPending || o.PaymentStatus != model.PaymentPending {
		t.Fatalf("state mutated: %+v", o)
	}
	if p1, _ := st.Product(1); p1.Stock != 10 {
		t.Fatalf("stock mutated: %d", p1.Stock)
	}
}

// failingStock wraps a Store and fails AddStock for one product id.
type failingStock struct {
	storage.Store
	failID uint
}

func (f *failingStock) AddStock(ctx context.Context, productID uint, qty int) error {
	if productID == f.failID {
		return errors.New("disk on fire")
	}
	return f.Store.AddStock(ctx, productID, qty)
}

func TestReconcileCompensationPartialFailure(t *testing.T) {
	st := seedStore()
	eng := New(&failingStock{Store: st, failID: 2}, nil)

	_, err := eng.Reconcile(context.Background(), &model.ProviderPayment{ID: "mp-123", Status: model.ProviderCancelled})
	var ce *CompensationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompensationError, got %v", err)
	}
	if len(ce.FailedProducts) != 1 || ce.FailedProducts[0] != 2 {
		t.Fatalf("failed products: %v", ce.FailedProducts)
	}
	// The independent item was still attempted and applied.
	if p1, _ := st.Product(1); p1.Stock != 12 {
		t.Fatalf("product 1 not compensated: %d", p1.Stock)
	}
	// Statuses were not persisted after a compensation failure.
	o, _ := st.Order(42)
	if o.Status != model.OrderPending || o.PaymentStatus != model.PaymentPending {
		t.Fatalf("statuses persisted despite failure: %+v", o)
	}
}

// capturePub records published events.
type capturePub struct {
	got []events.StatusChange
}

func (c *capturePub) Publish(_ context.Context, ev events.StatusChange) error {
	c.got = append(c.got, ev)
	return nil
}

func (c *capturePub) Close() error { return nil }

func TestReconcilePublishesStatusChange(t *testing.T) {
	st := seedStore()
	pub := &capturePub{}
	eng := New(st, pub)

	if _, err := eng.Reconcile(context.Background(), &model.ProviderPayment{ID: "mp-123", Status: model.ProviderApproved}); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(pub.got) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.got))
	}
	ev := pub.got[0]
	if ev.OrderID != 42 || ev.PaymentStatus != model.PaymentPaid || ev.StockReversed {
		t.Fatalf("unexpected event: %+v", ev)
	}

	// Idempotent redelivery publishes nothing.
	if _, err := eng.Reconcile(context.Background(), &model.ProviderPayment{ID: "mp-123", Status: model.ProviderApproved}); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(pub.got) != 1 {
		t.Fatalf("idempotent redelivery published an event")
	}
}

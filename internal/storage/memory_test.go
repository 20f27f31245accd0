package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
)

func seed(m *Memory) {
	m.SeedProduct(model.Product{ID: 1, Stock: 5})
	m.SeedOrder(model.Order{
		ID:            10,
		Total:         decimal.NewFromInt(100),
		Status:        model.OrderPending,
		PaymentStatus: model.PaymentPending,
		Items:         []model.OrderItem{{ID: 1, OrderID: 10, ProductID: 1, Quantity: 2}},
	}, model.Payment{ID: 20, OrderID: 10, ProviderPaymentID: "mp-1", Status: model.PaymentPending})
}

func TestMemoryLookups(t *testing.T) {
	m := NewMemory()
	seed(m)
	ctx := context.Background()

	p, err := m.PaymentByProviderID(ctx, "mp-1")
	if err != nil || p.ID != 20 {
		t.Fatalf("by provider id: %v %+v", err, p)
	}
	p, err = m.PaymentByOrderID(ctx, 10)
	if err != nil || p.ID != 20 {
		t.Fatalf("by order id: %v %+v", err, p)
	}
	if _, err := m.PaymentByProviderID(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.PaymentByProviderID(ctx, ""); err != ErrNotFound {
		t.Fatalf("empty provider id must not match, got %v", err)
	}

	o, err := m.OrderWithItems(ctx, 10)
	if err != nil || len(o.Items) != 1 || o.Items[0].Quantity != 2 {
		t.Fatalf("order with items: %v %+v", err, o)
	}
}

func TestMemoryAddStockConcurrent(t *testing.T) {
	m := NewMemory()
	m.SeedProduct(model.Product{ID: 7, Stock: 0})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.AddStock(context.Background(), 7, 1); err != nil {
				t.Errorf("add stock: %v", err)
			}
		}()
	}
	wg.Wait()
	p, _ := m.Product(7)
	if p.Stock != 100 {
		t.Fatalf("expected 100, got %d", p.Stock)
	}
}

func TestMemorySavePaymentAndOrder(t *testing.T) {
	m := NewMemory()
	seed(m)
	ctx := context.Background()

	p, _ := m.PaymentByProviderID(ctx, "mp-1")
	o, _ := m.OrderWithItems(ctx, 10)
	p.Status = model.PaymentPaid
	o.Status = model.OrderProcessing
	o.PaymentStatus = model.PaymentPaid
	if err := m.SavePaymentAndOrder(ctx, p, o); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := m.Order(10)
	if got.Status != model.OrderProcessing || got.PaymentStatus != model.PaymentPaid {
		t.Fatalf("order not updated: %+v", got)
	}
	gp, _ := m.Payment(20)
	if gp.Status != model.PaymentPaid {
		t.Fatalf("payment not updated: %+v", gp)
	}

	if err := m.SavePaymentAndOrder(ctx, &model.Payment{ID: 99}, o); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown payment, got %v", err)
	}
}

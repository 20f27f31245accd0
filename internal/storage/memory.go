package storage

import (
	"context"
	"sync"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
)

// Memory is a mutex-guarded in-memory Store. It backs local runs without a
// database and the test suites.
type Memory struct {
	mu       sync.RWMutex
	orders   map[uint]model.Order
	items    map[uint][]model.OrderItem
	payments map[uint]model.Payment
	products map[uint]model.Product
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orders:   make(map[uint]model.Order),
		items:    make(map[uint][]model.OrderItem),
		payments: make(map[uint]model.Payment),
		products: make(map[uint]model.Product),
	}
}

// SeedOrder inserts an order, its items, and its payment in one call.
func (m *Memory) SeedOrder(o model.Order, p model.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := o.Items
	o.Items = nil
	m.orders[o.ID] = o
	m.items[o.ID] = items
	m.payments[p.ID] = p
}

// SeedProduct inserts a product.
func (m *Memory) SeedProduct(p model.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *Memory) PaymentByProviderID(ctx context.Context, providerID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if providerID == "" {
		return nil, ErrNotFound
	}
	for _, p := range m.payments {
		if p.ProviderPaymentID == providerID {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) PaymentByOrderID(ctx context.Context, orderID uint) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			cp := p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) OrderWithItems(ctx context.Context, orderID uint) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	o.Items = append([]model.OrderItem(nil), m.items[orderID]...)
	return &o, nil
}

func (m *Memory) AddStock(ctx context.Context, productID uint, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return ErrNotFound
	}
	p.Stock += int64(qty)
	m.products[productID] = p
	return nil
}

func (m *Memory) SavePaymentAndOrder(ctx context.Context, p *model.Payment, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	if _, ok := m.orders[o.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	co := *o
	co.Items = nil
	m.payments[cp.ID] = cp
	m.orders[co.ID] = co
	return nil
}

// Product returns the current product row, for tests and the dev mode.
func (m *Memory) Product(id uint) (model.Product, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	return p, ok
}

// Order returns the current order row without items.
func (m *Memory) Order(id uint) (model.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	return o, ok
}

// Payment returns the current payment row.
func (m *Memory) Payment(id uint) (model.Payment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	return p, ok
}

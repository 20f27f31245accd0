// Package model defines domain types shared by the reconciliation service.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProviderStatus is a payment status as reported by the payment provider.
type ProviderStatus string

const (
	ProviderApproved  ProviderStatus = "approved"
	ProviderPending   ProviderStatus = "pending"
	ProviderInProcess ProviderStatus = "in_process"
	ProviderRejected  ProviderStatus = "rejected"
	ProviderCancelled ProviderStatus = "cancelled"
	ProviderRefunded  ProviderStatus = "refunded"
)

// PaymentStatus is the internal payment status stored on payments and orders.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentRejected  PaymentStatus = "REJECTED"
	PaymentCancelled PaymentStatus = "CANCELLED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// OrderStatus is the shipping status of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderPacking    OrderStatus = "PACKING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// Order is an order row. The reconciliation engine mutates Status and
// PaymentStatus together; everything else belongs to the checkout flow.
type Order struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Total         decimal.Decimal `json:"total" gorm:"type:numeric(12,2);not null"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(16);not null"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:varchar(16);not null"`
	Items         []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is a single line of an order. Read-only here; it drives stock
// compensation on failed payments.
type OrderItem struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	OrderID   uint `json:"order_id" gorm:"index;not null"`
	ProductID uint `json:"product_id" gorm:"not null"`
	Quantity  int  `json:"quantity" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// Payment is the local payment record correlated to the provider by
// ProviderPaymentID. RawResponse keeps the provider payload verbatim for audit.
type Payment struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	OrderID           uint           `json:"order_id" gorm:"index;not null"`
	ProviderPaymentID string         `json:"provider_payment_id" gorm:"type:varchar(64);index"`
	Status            PaymentStatus  `json:"status" gorm:"type:varchar(16);not null"`
	RawResponse       datatypes.JSON `json:"raw_response,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

// Product carries the stock quantity the compensation subroutine increments.
type Product struct {
	ID    uint  `json:"id" gorm:"primaryKey"`
	Stock int64 `json:"stock" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// FlexibleID decodes a JSON identifier the provider sends either as a number
// or as a string.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

// ProviderPayment is the authoritative payment record fetched from the
// provider API. Raw holds the response body verbatim.
type ProviderPayment struct {
	ID                string          `json:"id"`
	Status            ProviderStatus  `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	ExternalReference string          `json:"external_reference"`
	Raw               []byte          `json:"-"`
}

// Package recon implements the order/payment reconciliation engine.
package recon

import "github.com/fairyhunter13/payment-webhook-reconciler/internal/model"

// Outcome is the target state derived from a provider payment status.
type Outcome struct {
	// Known is false for provider statuses outside the mapped domain; the
	// local statuses are then left untouched.
	Known         bool
	PaymentStatus model.PaymentStatus
	OrderStatus   model.OrderStatus
	ReverseStock  bool
}

// Map is the authoritative status-transition function. It is total over the
// provider status domain: every unrecognized value lands in the explicit
// default branch instead of falling through to a terminal state.
func Map(s model.ProviderStatus) Outcome {
	switch s {
	case model.ProviderApproved:
		return Outcome{Known: true, PaymentStatus: model.PaymentPaid, OrderStatus: model.OrderProcessing}
	case model.ProviderPending, model.ProviderInProcess:
		return Outcome{Known: true, PaymentStatus: model.PaymentPending, OrderStatus: model.OrderPending}
	case model.ProviderRejected:
		return Outcome{Known: true, PaymentStatus: model.PaymentRejected, OrderStatus: model.OrderCancelled, ReverseStock: true}
	case model.ProviderCancelled:
		return Outcome{Known: true, PaymentStatus: model.PaymentCancelled, OrderStatus: model.OrderCancelled, ReverseStock: true}
	case model.ProviderRefunded:
		return Outcome{Known: true, PaymentStatus: model.PaymentRefunded, OrderStatus: model.OrderCancelled, ReverseStock: true}
	default:
		return Outcome{}
	}
}

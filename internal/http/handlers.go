package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/config"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/metrics"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/model"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/obs"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/provider"
	"github.com/fairyhunter13/payment-webhook-reconciler/internal/recon"
)

// App wires the webhook handlers to the provider client and the engine.
type App struct {
	Cfg     config.Config
	Fetcher provider.Fetcher
	Engine  *recon.Engine
	Metrics *metrics.Registry
	started time.Time
}

func NewApp(cfg config.Config, f provider.Fetcher, e *recon.Engine, m *metrics.Registry) *App {
	return &App{Cfg: cfg, Fetcher: f, Engine: e, Metrics: m, started: time.Now()}
}

// webhookEvent is the inbound notification shape. The provider sends the
// payment id under data.id, as a number or a string depending on the event.
type webhookEvent struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID model.FlexibleID `json:"id"`
	} `json:"data"`
}

func (ev webhookEvent) relevant() bool {
	return ev.Type == "payment" || strings.HasPrefix(ev.Action, "payment.")
}

// webhookAck is the success response body.
type webhookAck struct {
	Received       bool   `json:"received"`
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RequestID      string `json:"request_id,omitempty"`
	PaymentID      string `json:"paymentId,omitempty"`
	ProviderStatus string `json:"status,omitempty"`
	PaymentStatus  string `json:"paymentStatus,omitempty"`
	OrderStatus    string `json:"orderStatus,omitempty"`
	StockReversed  bool   `json:"stockReversed,omitempty"`
	Idempotent     bool   `json:"idempotent,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// webhookHandler serves the provider webhook endpoint: POST processes a
// notification, GET answers the provider's endpoint-liveness probe.
func (a *App) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.healthHandler(w, r)
	case http.MethodPost:
		a.receiveWebhook(w, r)
	default:
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	}
}

func (a *App) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	a.Metrics.WebhooksReceived.Inc()

	var ev webhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	if !ev.relevant() {
		// The provider retries anything non-2xx, so irrelevant events are
		// acknowledged, not rejected.
		a.Metrics.WebhooksIgnored.Inc()
		obs.Logger.Info("webhook_ignored", "type", ev.Type, "action", ev.Action)
		writeJSON(w, http.StatusOK, webhookAck{Received: true, Success: true, Message: "event not applicable"})
		return
	}

	paymentID := string(ev.Data.ID)
	if paymentID == "" {
		WriteJSONError(w, http.StatusBadRequest, "missing_payment_id", "data.id is required for payment events")
		return
	}

	// One deadline covers the provider fetch and all persistence; the
	// provider's retry handles deliveries we cannot finish in time.
	ctx, cancel := context.WithTimeout(r.Context(), a.Cfg.WebhookTimeout)
	defer cancel()

	start := time.Now()
	pp, err := a.Fetcher.FetchPayment(ctx, paymentID)
	if err != nil {
		a.Metrics.ProviderErrors.Inc()
		obs.Logger.Error("provider_fetch_failed", "payment_id", paymentID, "error", err)
		WriteJSONError(w, http.StatusInternalServerError, "provider_fetch_failed", err.Error())
		return
	}

	res, err := a.Engine.Reconcile(ctx, pp)
	a.Metrics.ReconcileSec.Observe(time.Since(start).Seconds())
	if err != nil {
		a.writeReconcileError(w, paymentID, err)
		return
	}

	a.Metrics.Reconciled.Inc()
	msg := "payment reconciled"
	switch {
	case res.Idempotent:
		a.Metrics.Idempotent.Inc()
		msg = "already reconciled"
	case !res.StatusKnown:
		a.Metrics.UnknownStatus.Inc()
		msg = "provider status unrecognized, local state unchanged"
	}
	if res.ItemsReversed > 0 {
		a.Metrics.StockReversals.Add(float64(res.ItemsReversed))
	}

	writeJSON(w, http.StatusOK, webhookAck{
		Received:       true,
		Success:        true,
		Message:        msg,
		RequestID:      RequestIDFromContext(r.Context()),
		PaymentID:      pp.ID,
		ProviderStatus: string(res.ProviderStatus),
		PaymentStatus:  string(res.PaymentStatus),
		OrderStatus:    string(res.OrderStatus),
		StockReversed:  res.StockReversed,
		Idempotent:     res.Idempotent,
	})
}

func (a *App) writeReconcileError(w http.ResponseWriter, paymentID string, err error) {
	var ce *recon.CompensationError
	switch {
	case errors.Is(err, recon.ErrPaymentNotFound):
		a.Metrics.NotFound.Inc()
		WriteJSONError(w, http.StatusNotFound, "payment_not_found", fmt.Sprintf("no local payment for provider id %s", paymentID))
	case errors.As(err, &ce):
		obs.Logger.Error("stock_compensation_failed", "payment_id", paymentID, "failed_products", ce.FailedProducts, "error", err)
		WriteJSONError(w, http.StatusInternalServerError, "stock_compensation_failed", ce.Error())
	default:
		obs.Logger.Error("reconcile_failed", "payment_id", paymentID, "error", err)
		WriteJSONError(w, http.StatusInternalServerError, "reconcile_failed", err.Error())
	}
}

// healthHandler answers the static liveness payload on GET.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "active",
		"message":   "payment webhook endpoint is up",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

package httpapi

import (
	"net/http"

	"github.com/fairyhunter13/payment-webhook-reconciler/internal/metrics"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App, m *metrics.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/payment", app.webhookHandler)
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/openapi.yaml", app.openapiHandler)
	mux.HandleFunc("/docs", app.docsHandler)
	return WithRequestID(WithLogging(WithRecover(mux)))
}

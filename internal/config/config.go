// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds configuration knobs for the HTTP server, the provider client,
// persistence, and the optional event publisher.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// WebhookTimeout bounds one whole webhook invocation (provider fetch plus
	// persistence); the provider retries deliveries that exceed its own budget.
	WebhookTimeout time.Duration

	DBDSN string

	ProviderBaseURL     string
	ProviderAccessToken string
	ProviderTimeout     time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durenvms(key string, defMs int) time.Duration {
	ms := atoienv(key, defMs)
	return time.Duration(ms) * time.Millisecond
}

func durenvs(key string, defSec int) time.Duration {
	sec := atoienv(key, defSec)
	return time.Duration(sec) * time.Second
}

func listenv(key string) []string {
	v := getenv(key, "")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:            getenv("HTTP_ADDR", ":8080"),
		ShutdownTimeout:     durenvs("SHUTDOWN_TIMEOUT", 15),
		WebhookTimeout:      durenvms("WEBHOOK_TIMEOUT_MS", 10000),
		DBDSN:               getenv("DB_DSN", ""),
		ProviderBaseURL:     getenv("PROVIDER_BASE_URL", "https://api.mercadopago.com"),
		ProviderAccessToken: getenv("PROVIDER_ACCESS_TOKEN", ""),
		ProviderTimeout:     durenvms("PROVIDER_TIMEOUT_MS", 5000),
		KafkaBrokers:        listenv("KAFKA_BROKERS"),
		KafkaTopic:          getenv("KAFKA_TOPIC", "payment-status-changes"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
	}
}

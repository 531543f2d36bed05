package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server (webhook receiver + work item API).
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReconciler runs the polling reconciler.
	ServiceModeReconciler ServiceMode = "reconciler"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{ServiceModeHTTP, ServiceModeReconciler}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeReconciler:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, reconciler)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// ReconcilerConfig contains polling reconciler configuration.
type ReconcilerConfig struct {
	// Interval is the reconciler tick interval.
	Interval time.Duration `env:"RECONCILER_INTERVAL" envDefault:"30s"`

	// PollTimeout is the absolute horizon, measured from item creation, after
	// which an item is no longer polled. Items past it stay analyzing; they
	// are surfaced in logs, never auto-failed.
	PollTimeout time.Duration `env:"RECONCILER_POLL_TIMEOUT" envDefault:"900s"`

	// WebhookGrace is how long after a webhook receipt an item is skipped by
	// polling, avoiding redundant runner calls while the webhook settles.
	WebhookGrace time.Duration `env:"RECONCILER_WEBHOOK_GRACE" envDefault:"300s"`

	// BatchSize is the maximum number of items examined per tick.
	BatchSize int `env:"RECONCILER_BATCH_SIZE" envDefault:"50"`

	// Concurrency is the number of items polled in parallel within a tick.
	Concurrency int `env:"RECONCILER_CONCURRENCY" envDefault:"4"`
}

// Sanitize applies guardrails to reconciler configuration values.
func (r *ReconcilerConfig) Sanitize() {
	if r.Interval <= 0 {
		r.Interval = 30 * time.Second
	}
	if r.PollTimeout <= 0 {
		r.PollTimeout = 15 * time.Minute
	}
	if r.WebhookGrace < 0 {
		r.WebhookGrace = 0
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.Concurrency < 1 {
		r.Concurrency = 1
	}
}

// RunnerConfig contains configuration for the external analysis runner API.
type RunnerConfig struct {
	// BaseURL is the runner API base URL.
	BaseURL string `env:"RUNNER_BASE_URL" envDefault:"http://localhost:9090"`

	// APIToken authenticates outbound calls to the runner.
	APIToken string `env:"RUNNER_API_TOKEN" envDefault:""`

	// CallbackURL is the absolute URL the runner should POST results to.
	// When empty no callback is registered and items resolve via polling only.
	CallbackURL string `env:"RUNNER_CALLBACK_URL" envDefault:""`

	// Timeout bounds each HTTP call to the runner.
	Timeout time.Duration `env:"RUNNER_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to runner configuration values.
func (r *RunnerConfig) Sanitize() {
	if r.Timeout <= 0 {
		r.Timeout = 30 * time.Second
	}
	r.BaseURL = strings.TrimRight(strings.TrimSpace(r.BaseURL), "/")
}

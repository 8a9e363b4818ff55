package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/social-platform-accounts/internal/infra/config"
)

// Provider represents a telemetry provider handle for recovery-flow metrics.
type Provider struct {
	resetRequested   prometheus.Counter
	resetCompleted   prometheus.Counter
	resetRejected    *prometheus.CounterVec
	usernameRequests prometheus.Counter
}

// Attach configures telemetry collectors and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		resetRequested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "recovery",
			Name:      "password_reset_requests_total",
			Help:      "Total number of password reset requests accepted for processing.",
		}),
		resetCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "recovery",
			Name:      "password_resets_completed_total",
			Help:      "Total number of passwords successfully reset via emailed token.",
		}),
		resetRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "recovery",
			Name:      "password_reset_rejections_total",
			Help:      "Reset redemptions rejected, partitioned by reason.",
		}, []string{"reason"}),
		usernameRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "accounts",
			Subsystem: "recovery",
			Name:      "username_recovery_requests_total",
			Help:      "Total number of username recovery requests accepted for processing.",
		}),
	}, nil
}

// ObserveResetRequested counts an accepted password reset request.
func (p *Provider) ObserveResetRequested() {
	if p == nil || p.resetRequested == nil {
		return
	}
	p.resetRequested.Inc()
}

// ObserveResetCompleted counts a successful token redemption.
func (p *Provider) ObserveResetCompleted() {
	if p == nil || p.resetCompleted == nil {
		return
	}
	p.resetCompleted.Inc()
}

// ObserveResetRejected counts a rejected redemption with its reason
// (invalid_token, expired_token, policy_violation).
func (p *Provider) ObserveResetRejected(reason string) {
	if p == nil || p.resetRejected == nil {
		return
	}
	p.resetRejected.WithLabelValues(reason).Inc()
}

// ObserveUsernameRecoveryRequested counts an accepted username recovery request.
func (p *Provider) ObserveUsernameRecoveryRequested() {
	if p == nil || p.usernameRequests == nil {
		return
	}
	p.usernameRequests.Inc()
}

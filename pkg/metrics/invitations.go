package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InvitationMetrics records invitation lifecycle and membership transaction
// outcomes.
type InvitationMetrics struct {
	created   prometheus.Counter
	accepted  prometheus.Counter
	expired   prometheus.Counter
	cancelled prometheus.Counter
	conflicts *prometheus.CounterVec
}

// NewInvitationMetrics registers the invitation metrics on the provided registerer.
func NewInvitationMetrics(reg prometheus.Registerer) *InvitationMetrics {
	if reg == nil {
		return &InvitationMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invitations_created_total",
		Help: "Invitations issued.",
	})
	accepted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invitations_accepted_total",
		Help: "Invitations accepted into accounts.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invitations_expired_rejections_total",
		Help: "Accept or verify attempts rejected because the invitation expired.",
	})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invitations_cancelled_total",
		Help: "Invitations cancelled by an inviter.",
	})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "membership_tx_conflicts_total",
		Help: "Membership transactions retried or abandoned on version conflict.",
	}, []string{"operation"})
	reg.MustRegister(created, accepted, expired, cancelled, conflicts)
	return &InvitationMetrics{
		created:   created,
		accepted:  accepted,
		expired:   expired,
		cancelled: cancelled,
		conflicts: conflicts,
	}
}

// IncCreated increments the issued counter.
func (m *InvitationMetrics) IncCreated() {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
}

// IncAccepted increments the accepted counter.
func (m *InvitationMetrics) IncAccepted() {
	if m == nil || m.accepted == nil {
		return
	}
	m.accepted.Inc()
}

// IncExpiredRejection increments the expiry rejection counter.
func (m *InvitationMetrics) IncExpiredRejection() {
	if m == nil || m.expired == nil {
		return
	}
	m.expired.Inc()
}

// IncCancelled increments the cancelled counter.
func (m *InvitationMetrics) IncCancelled() {
	if m == nil || m.cancelled == nil {
		return
	}
	m.cancelled.Inc()
}

// IncMembershipConflict increments the conflict counter for the named operation.
func (m *InvitationMetrics) IncMembershipConflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	m.conflicts.WithLabelValues(operation).Inc()
}

package card

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts workflow outcomes.
type Metrics struct {
	CardsCreated     prometheus.Counter
	CardsDeleted     prometheus.Counter
	EditsRejected    prometheus.Counter
	ApprovalRequests *prometheus.CounterVec
	Approvals        *prometheus.CounterVec
}

// Outcome labels of the Approvals counter.
const (
	OutcomeGranted     = "granted"
	OutcomeAlreadyUsed = "already_used"
	OutcomeExpired     = "expired"
	OutcomeNotFound    = "not_found"
	OutcomeError       = "error"
)

// NewMetrics creates the workflow metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CardsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cardhub",
			Name:      "cards_created_total",
			Help:      "Cards created.",
		}),
		CardsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cardhub",
			Name:      "cards_deleted_total",
			Help:      "Cards soft deleted.",
		}),
		EditsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cardhub",
			Name:      "edits_rejected_total",
			Help:      "Edits rejected because the edit window was closed.",
		}),
		ApprovalRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardhub",
			Name:      "approval_requests_total",
			Help:      "Approval tokens issued, by kind.",
		}, []string{"kind"}),
		Approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardhub",
			Name:      "approvals_total",
			Help:      "Approval link visits, by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	reg.MustRegister(m.CardsCreated, m.CardsDeleted, m.EditsRejected, m.ApprovalRequests, m.Approvals)

	return m
}

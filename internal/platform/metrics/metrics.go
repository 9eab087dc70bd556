package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	DonationsConfirmed  prometheus.Counter
	BatchesCreated      *prometheus.CounterVec
	BatchesReleased     prometheus.Counter
	DisastersTriggered  prometheus.Counter
	EscrowsCreated      *prometheus.CounterVec
	EscrowsFinished     prometheus.Counter
	AllocationMismatch  prometheus.Counter
	GatewayReadFailures prometheus.Counter
}

// New creates all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics on the given registerer. Tests pass a fresh
// registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	promauto := promauto.With(reg)
	return &Metrics{
		DonationsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reliefpool_donations_confirmed_total",
			Help: "Total number of donor payments confirmed into the pool",
		}),
		BatchesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefpool_batches_created_total",
			Help: "Total number of batch escrows created, by trigger type",
		}, []string{"trigger"}),
		BatchesReleased: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reliefpool_batches_released_total",
			Help: "Total number of batch escrows released into the reserve",
		}),
		DisastersTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reliefpool_disasters_triggered_total",
			Help: "Total number of emergency allocations triggered",
		}),
		EscrowsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reliefpool_org_escrows_created_total",
			Help: "Total number of per-organization escrow creations, by outcome",
		}, []string{"outcome"}),
		EscrowsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reliefpool_org_escrows_finished_total",
			Help: "Total number of org escrows released to organizations",
		}),
		AllocationMismatch: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reliefpool_allocation_mismatch_total",
			Help: "Total number of disasters whose escrowed total fell short of the intended allocation",
		}),
		GatewayReadFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reliefpool_gateway_read_failures_total",
			Help: "Total number of failed ledger gateway reads",
		}),
	}
}

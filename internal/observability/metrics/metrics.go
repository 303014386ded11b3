package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsCalculated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "repwell",
		Subsystem: "commission",
		Name:      "records_calculated_total",
		Help:      "Commission records produced by the calculator, by commission type.",
	}, []string{"commission_type"})

	resolutionAmbiguities = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repwell",
		Subsystem: "commission",
		Name:      "rule_resolution_ambiguities_total",
		Help:      "Rule resolutions where more than one equally specific active rule matched.",
	})

	payoutsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repwell",
		Subsystem: "payout",
		Name:      "payouts_generated_total",
		Help:      "Commission payouts created by the batcher.",
	})

	claimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "repwell",
		Subsystem: "payout",
		Name:      "claim_conflicts_total",
		Help:      "Batch runs that lost a record claim to a concurrent run and rolled back.",
	})
)

func IncRecordCalculated(commissionType string) {
	recordsCalculated.WithLabelValues(commissionType).Inc()
}

func IncResolutionAmbiguity() { resolutionAmbiguities.Inc() }

func IncPayoutGenerated() { payoutsGenerated.Inc() }

func IncClaimConflict() { claimConflicts.Inc() }

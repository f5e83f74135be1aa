package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/babylonlabs-io/btc-staking/types"
)

type StakerMetrics struct {
	signingRequests  *prometheus.CounterVec
	signingFailures  *prometheus.CounterVec
	builtDelegations prometheus.Counter
	lastStakingFee   prometheus.Gauge
}

var stakerMetricsRegisterOnce sync.Once

var stakerMetricsInstance *StakerMetrics

// NewStakerMetrics initializes and registers the metrics once per process.
func NewStakerMetrics() *StakerMetrics {
	stakerMetricsRegisterOnce.Do(func() {
		stakerMetricsInstance = &StakerMetrics{
			signingRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "staker_signing_requests_total",
					Help: "Total number of signing requests sent to the providers",
				},
				[]string{"step"},
			),
			signingFailures: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "staker_signing_failures_total",
					Help: "Total number of signing requests the providers failed",
				},
				[]string{"step"},
			),
			builtDelegations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staker_built_delegations_total",
				Help: "Total number of signed delegation registration transactions",
			}),
			lastStakingFee: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staker_last_staking_tx_fee_sat",
				Help: "Fee in satoshis of the last built staking transaction",
			}),
		}

		prometheus.MustRegister(stakerMetricsInstance.signingRequests)
		prometheus.MustRegister(stakerMetricsInstance.signingFailures)
		prometheus.MustRegister(stakerMetricsInstance.builtDelegations)
		prometheus.MustRegister(stakerMetricsInstance.lastStakingFee)
	})

	return stakerMetricsInstance
}

func (m *StakerMetrics) RecordSigningRequest(step types.SigningStep) {
	m.signingRequests.WithLabelValues(step.String()).Inc()
}

func (m *StakerMetrics) RecordSigningFailure(step types.SigningStep) {
	m.signingFailures.WithLabelValues(step.String()).Inc()
}

func (m *StakerMetrics) RecordDelegation(stakingFee int64) {
	m.builtDelegations.Inc()
	m.lastStakingFee.Set(float64(stakingFee))
}

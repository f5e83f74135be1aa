package metrics

import (
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/babylonlabs-io/btc-staking/types"
)

func TestStakerMetrics(t *testing.T) {
	m := NewStakerMetrics()
	require.Same(t, m, NewStakerMetrics())

	step := types.SigningStepWithdrawSlashing
	requestsBefore := promtestutil.ToFloat64(m.signingRequests.WithLabelValues(step.String()))
	failuresBefore := promtestutil.ToFloat64(m.signingFailures.WithLabelValues(step.String()))
	delegationsBefore := promtestutil.ToFloat64(m.builtDelegations)

	m.RecordSigningRequest(step)
	m.RecordSigningRequest(step)
	m.RecordSigningFailure(step)
	m.RecordDelegation(1_065)

	require.Equal(t, requestsBefore+2, promtestutil.ToFloat64(m.signingRequests.WithLabelValues(step.String())))
	require.Equal(t, failuresBefore+1, promtestutil.ToFloat64(m.signingFailures.WithLabelValues(step.String())))
	require.Equal(t, delegationsBefore+1, promtestutil.ToFloat64(m.builtDelegations))
	require.Equal(t, float64(1_065), promtestutil.ToFloat64(m.lastStakingFee))
}

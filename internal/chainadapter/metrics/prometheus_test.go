package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetricsRecordRPCCall(t *testing.T) {
	m := NewPrometheusMetrics()

	m.RecordRPCCall("eth_estimateGas", 100*time.Millisecond, true)
	m.RecordRPCCall("eth_estimateGas", 150*time.Millisecond, true)
	m.RecordRPCCall("eth_estimateGas", 200*time.Millisecond, false)

	agg := m.GetMetrics()
	assert.Equal(t, int64(3), agg.TotalRPCCalls)
	assert.Equal(t, int64(2), agg.SuccessfulRPCCalls)
	assert.Equal(t, int64(1), agg.FailedRPCCalls)
	assert.InDelta(t, 2.0/3.0, agg.RPCSuccessRate, 0.0001)
	assert.Equal(t, 150*time.Millisecond, agg.AvgRPCDuration)
}

func TestPrometheusMetricsGetRPCMetricsPerMethod(t *testing.T) {
	m := NewPrometheusMetrics()
	m.RecordRPCCall("eth_sendRawTransaction", 50*time.Millisecond, true)
	m.RecordRPCCall("eth_sendRawTransaction", 500*time.Millisecond, false)

	method := m.GetRPCMetrics("eth_sendRawTransaction")
	require.NotNil(t, method)
	assert.Equal(t, int64(2), method.TotalCalls)
	assert.Equal(t, 50*time.Millisecond, method.MinDuration)
	assert.Equal(t, 500*time.Millisecond, method.MaxDuration)
}

func TestPrometheusMetricsGetRPCMetricsUnknownMethod(t *testing.T) {
	m := NewPrometheusMetrics()
	assert.Nil(t, m.GetRPCMetrics("never_called"))
}

func TestPrometheusMetricsRecordTransactionStages(t *testing.T) {
	m := NewPrometheusMetrics()
	m.RecordTransactionBuild("314159", 10*time.Millisecond, true)
	m.RecordTransactionSign("314159", 5*time.Millisecond, true)
	m.RecordTransactionSend("314159", 200*time.Millisecond, false)

	agg := m.GetMetrics()
	assert.Equal(t, int64(1), agg.TotalBuilds)
	assert.Equal(t, int64(1), agg.SuccessfulSigns)
	assert.Equal(t, int64(1), agg.FailedSends)
}

func TestPrometheusMetricsHealthStatusOKWithNoCalls(t *testing.T) {
	m := NewPrometheusMetrics()
	status := m.GetHealthStatus()
	assert.True(t, status.IsHealthy())
}

func TestPrometheusMetricsHealthStatusDegradedOnLowSuccessRate(t *testing.T) {
	m := NewPrometheusMetrics()
	for i := 0; i < 2; i++ {
		m.RecordRPCCall("eth_call", time.Millisecond, true)
	}
	for i := 0; i < 8; i++ {
		m.RecordRPCCall("eth_call", time.Millisecond, false)
	}

	status := m.GetHealthStatus()
	assert.True(t, status.IsDegraded())
	assert.True(t, status.LowSuccessRate)
}

func TestPrometheusMetricsHealthStatusDegradedOnHighLatency(t *testing.T) {
	m := NewPrometheusMetrics()
	m.RecordRPCCall("eth_call", 6*time.Second, true)

	status := m.GetHealthStatus()
	assert.True(t, status.IsDegraded())
	assert.True(t, status.HighLatency)
}

func TestPrometheusMetricsExportContainsExpectedSeries(t *testing.T) {
	m := NewPrometheusMetrics()
	m.RecordRPCCall("eth_call", time.Millisecond, true)
	m.RecordTransactionBuild("314159", time.Millisecond, true)

	out := m.Export()
	assert.Contains(t, out, "reward_orchestrator_rpc_calls_total")
	assert.Contains(t, out, "reward_orchestrator_tx_operations_total")
	assert.Contains(t, out, "reward_orchestrator_health_status")
}

func TestPrometheusMetricsReset(t *testing.T) {
	m := NewPrometheusMetrics()
	m.RecordRPCCall("eth_call", time.Millisecond, true)
	m.Reset()

	agg := m.GetMetrics()
	assert.Equal(t, int64(0), agg.TotalRPCCalls)
}

func TestNoOpMetricsDiscardsEverything(t *testing.T) {
	m := &NoOpMetrics{}
	m.RecordRPCCall("x", time.Millisecond, true)
	m.RecordTransactionBuild("314159", time.Millisecond, true)

	agg := m.GetMetrics()
	assert.Equal(t, int64(0), agg.TotalRPCCalls)
	assert.Nil(t, m.GetRPCMetrics("x"))
	assert.True(t, m.GetHealthStatus().IsHealthy())
	assert.Equal(t, "", m.Export())
}

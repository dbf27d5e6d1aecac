package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// PrometheusMetrics is the thread-safe ChainMetrics implementation used in
// production, exporting Prometheus text format.
type PrometheusMetrics struct {
	mu sync.RWMutex

	rpcMetrics map[string]*methodStats

	buildStats *operationStats
	signStats  *operationStats
	sendStats  *operationStats

	totalRPCCalls      int64
	successfulRPCCalls int64
	failedRPCCalls     int64
	lastSuccessfulCall time.Time
}

type methodStats struct {
	totalCalls         int64
	successfulCalls    int64
	failedCalls        int64
	totalDuration      time.Duration
	minDuration        time.Duration
	maxDuration        time.Duration
	lastSuccessfulCall time.Time
	lastFailedCall     time.Time
}

type operationStats struct {
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	totalDuration   time.Duration
}

func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		rpcMetrics: make(map[string]*methodStats),
		buildStats: &operationStats{},
		signStats:  &operationStats{},
		sendStats:  &operationStats{},
	}
}

func (p *PrometheusMetrics) RecordRPCCall(method string, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalRPCCalls++
	if success {
		p.successfulRPCCalls++
		p.lastSuccessfulCall = time.Now()
	} else {
		p.failedRPCCalls++
	}

	stats, exists := p.rpcMetrics[method]
	if !exists {
		stats = &methodStats{minDuration: duration, maxDuration: duration}
		p.rpcMetrics[method] = stats
	}

	stats.totalCalls++
	stats.totalDuration += duration
	if success {
		stats.successfulCalls++
		stats.lastSuccessfulCall = time.Now()
	} else {
		stats.failedCalls++
		stats.lastFailedCall = time.Now()
	}
	if duration < stats.minDuration || stats.minDuration == 0 {
		stats.minDuration = duration
	}
	if duration > stats.maxDuration {
		stats.maxDuration = duration
	}
}

func recordOperation(stats *operationStats, duration time.Duration, success bool) {
	stats.totalCalls++
	stats.totalDuration += duration
	if success {
		stats.successfulCalls++
	} else {
		stats.failedCalls++
	}
}

func (p *PrometheusMetrics) RecordTransactionBuild(chainID string, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	recordOperation(p.buildStats, duration, success)
}

func (p *PrometheusMetrics) RecordTransactionSign(chainID string, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	recordOperation(p.signStats, duration, success)
}

func (p *PrometheusMetrics) RecordTransactionSend(chainID string, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	recordOperation(p.sendStats, duration, success)
}

func rate(successful, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total)
}

func avgDuration(total time.Duration, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

func (p *PrometheusMetrics) GetMetrics() *AggregatedMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var totalRPCDuration time.Duration
	for _, stats := range p.rpcMetrics {
		totalRPCDuration += stats.totalDuration
	}

	return &AggregatedMetrics{
		TotalRPCCalls:      p.totalRPCCalls,
		SuccessfulRPCCalls: p.successfulRPCCalls,
		FailedRPCCalls:     p.failedRPCCalls,
		RPCSuccessRate:     rate(p.successfulRPCCalls, p.totalRPCCalls),
		AvgRPCDuration:     avgDuration(totalRPCDuration, p.totalRPCCalls),
		LastSuccessfulCall: p.lastSuccessfulCall,

		TotalBuilds:      p.buildStats.totalCalls,
		SuccessfulBuilds: p.buildStats.successfulCalls,
		FailedBuilds:     p.buildStats.failedCalls,
		BuildSuccessRate: rate(p.buildStats.successfulCalls, p.buildStats.totalCalls),
		AvgBuildDuration: avgDuration(p.buildStats.totalDuration, p.buildStats.totalCalls),

		TotalSigns:      p.signStats.totalCalls,
		SuccessfulSigns: p.signStats.successfulCalls,
		FailedSigns:     p.signStats.failedCalls,
		SignSuccessRate: rate(p.signStats.successfulCalls, p.signStats.totalCalls),
		AvgSignDuration: avgDuration(p.signStats.totalDuration, p.signStats.totalCalls),

		TotalSends:      p.sendStats.totalCalls,
		SuccessfulSends: p.sendStats.successfulCalls,
		FailedSends:     p.sendStats.failedCalls,
		SendSuccessRate: rate(p.sendStats.successfulCalls, p.sendStats.totalCalls),
		AvgSendDuration: avgDuration(p.sendStats.totalDuration, p.sendStats.totalCalls),
	}
}

func (p *PrometheusMetrics) GetRPCMetrics(method string) *MethodMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats, exists := p.rpcMetrics[method]
	if !exists {
		return nil
	}

	return &MethodMetrics{
		Method:             method,
		TotalCalls:         stats.totalCalls,
		SuccessfulCalls:    stats.successfulCalls,
		FailedCalls:        stats.failedCalls,
		SuccessRate:        rate(stats.successfulCalls, stats.totalCalls),
		AvgDuration:        avgDuration(stats.totalDuration, stats.totalCalls),
		MinDuration:        stats.minDuration,
		MaxDuration:        stats.maxDuration,
		LastSuccessfulCall: stats.lastSuccessfulCall,
		LastFailedCall:     stats.lastFailedCall,
	}
}

// GetHealthStatus reports Degraded when success rate < 90%, average RPC
// latency exceeds 5s, or no successful call has landed in 5 minutes.
func (p *PrometheusMetrics) GetHealthStatus() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthStatusLocked()
}

func (p *PrometheusMetrics) healthStatusLocked() HealthStatus {
	status := HealthStatus{CheckedAt: time.Now()}

	if p.totalRPCCalls == 0 {
		status.Status = "OK"
		status.Message = "no RPC calls recorded yet"
		return status
	}

	var totalDuration time.Duration
	for _, stats := range p.rpcMetrics {
		totalDuration += stats.totalDuration
	}
	successRate := rate(p.successfulRPCCalls, p.totalRPCCalls)
	avg := avgDuration(totalDuration, p.totalRPCCalls)

	status.LowSuccessRate = successRate < 0.90
	status.HighLatency = avg > 5*time.Second
	status.NoRecentSuccess = !p.lastSuccessfulCall.IsZero() && time.Since(p.lastSuccessfulCall) > 5*time.Minute

	if status.LowSuccessRate || status.HighLatency || status.NoRecentSuccess {
		var messages []string
		if status.LowSuccessRate {
			messages = append(messages, fmt.Sprintf("low success rate (%.1f%%)", successRate*100))
		}
		if status.HighLatency {
			messages = append(messages, fmt.Sprintf("high latency (%v)", avg))
		}
		if status.NoRecentSuccess {
			messages = append(messages, fmt.Sprintf("no recent success (%v ago)", time.Since(p.lastSuccessfulCall)))
		}
		status.Status = "Degraded"
		status.Message = strings.Join(messages, ", ")
		return status
	}

	status.Status = "OK"
	status.Message = fmt.Sprintf("success rate: %.1f%%, avg latency: %v", successRate*100, avg)
	return status
}

// Export renders every counter/gauge in Prometheus text exposition format.
func (p *PrometheusMetrics) Export() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var sb strings.Builder

	sb.WriteString("# HELP reward_orchestrator_rpc_calls_total Total number of RPC calls\n")
	sb.WriteString("# TYPE reward_orchestrator_rpc_calls_total counter\n")
	for method, stats := range p.rpcMetrics {
		fmt.Fprintf(&sb, "reward_orchestrator_rpc_calls_total{method=%q,status=\"success\"} %d\n", method, stats.successfulCalls)
		fmt.Fprintf(&sb, "reward_orchestrator_rpc_calls_total{method=%q,status=\"failure\"} %d\n", method, stats.failedCalls)
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP reward_orchestrator_rpc_duration_seconds RPC call duration in seconds\n")
	sb.WriteString("# TYPE reward_orchestrator_rpc_duration_seconds summary\n")
	for method, stats := range p.rpcMetrics {
		if stats.totalCalls > 0 {
			avgSec := stats.totalDuration.Seconds() / float64(stats.totalCalls)
			fmt.Fprintf(&sb, "reward_orchestrator_rpc_duration_seconds{method=%q,quantile=\"avg\"} %.6f\n", method, avgSec)
			fmt.Fprintf(&sb, "reward_orchestrator_rpc_duration_seconds{method=%q,quantile=\"min\"} %.6f\n", method, stats.minDuration.Seconds())
			fmt.Fprintf(&sb, "reward_orchestrator_rpc_duration_seconds{method=%q,quantile=\"max\"} %.6f\n", method, stats.maxDuration.Seconds())
		}
	}
	sb.WriteString("\n")

	sb.WriteString("# HELP reward_orchestrator_tx_operations_total Total number of transaction pipeline operations\n")
	sb.WriteString("# TYPE reward_orchestrator_tx_operations_total counter\n")
	for _, op := range []struct {
		name  string
		stats *operationStats
	}{{"build", p.buildStats}, {"sign", p.signStats}, {"send", p.sendStats}} {
		fmt.Fprintf(&sb, "reward_orchestrator_tx_operations_total{operation=%q,status=\"success\"} %d\n", op.name, op.stats.successfulCalls)
		fmt.Fprintf(&sb, "reward_orchestrator_tx_operations_total{operation=%q,status=\"failure\"} %d\n", op.name, op.stats.failedCalls)
	}
	sb.WriteString("\n")

	health := p.healthStatusLocked()
	healthValue := 0.0
	switch health.Status {
	case "OK":
		healthValue = 1.0
	case "Degraded":
		healthValue = 0.5
	}
	sb.WriteString("# HELP reward_orchestrator_health_status Health status (1=OK, 0.5=Degraded, 0=Down)\n")
	sb.WriteString("# TYPE reward_orchestrator_health_status gauge\n")
	fmt.Fprintf(&sb, "reward_orchestrator_health_status %.1f\n", healthValue)

	return sb.String()
}

// Reset clears every recorded statistic; intended for test isolation.
func (p *PrometheusMetrics) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rpcMetrics = make(map[string]*methodStats)
	p.buildStats = &operationStats{}
	p.signStats = &operationStats{}
	p.sendStats = &operationStats{}
	p.totalRPCCalls, p.successfulRPCCalls, p.failedRPCCalls = 0, 0, 0
	p.lastSuccessfulCall = time.Time{}
}

var _ ChainMetrics = (*PrometheusMetrics)(nil)

package rpc

import (
	"context"
	"fmt"
	"math/big"
	"runtime"
	"time"

	"github.com/ce20480/reward-orchestrator/internal/chainadapter/metrics"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// FailoverClient fans a single chainadapter.ChainClient call out across
// multiple underlying ethclient.Client connections, picking the healthiest
// endpoint first and falling over to the next on error.
type FailoverClient struct {
	endpoints []string
	conns     map[string]*ethclient.Client
	health    HealthTracker
	metrics   metrics.ChainMetrics
	log       *zap.SugaredLogger
}

// Dial creates one ethclient.Client per endpoint. An endpoint whose client
// cannot be created is recorded as unhealthy rather than failing Dial
// outright, so a single bad RPC URL doesn't block the whole process; for
// HTTP endpoints no connection is opened here, so an unreachable node only
// shows up on its first call. metricsCollector may be nil, in which case
// RPC call timings are discarded.
func Dial(ctx context.Context, endpoints []string, health HealthTracker, metricsCollector metrics.ChainMetrics, log *zap.SugaredLogger) (*FailoverClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if health == nil {
		health = NewSimpleHealthTracker()
	}
	if metricsCollector == nil {
		metricsCollector = &metrics.NoOpMetrics{}
	}

	conns := make(map[string]*ethclient.Client, len(endpoints))
	for _, ep := range endpoints {
		c, err := ethclient.DialContext(ctx, ep)
		if err != nil {
			log.Warnw("failed to dial RPC endpoint at startup", "endpoint", ep, "error", err)
			health.RecordFailure(ep, err)
			continue
		}
		conns[ep] = c
	}
	if len(conns) == 0 {
		return nil, fmt.Errorf("failed to dial any RPC endpoint")
	}

	return &FailoverClient{endpoints: endpoints, conns: conns, health: health, metrics: metricsCollector, log: log}, nil
}

// call runs fn against the best-ranked healthy endpoint, retrying the next
// healthiest endpoint on failure until all have been attempted. The calling
// method's name (via runtime.Caller) is recorded against RecordRPCCall.
func call[T any](c *FailoverClient, ctx context.Context, fn func(*ethclient.Client) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempted := make(map[string]bool, len(c.endpoints))
	method := callerMethod()

	for len(attempted) < len(c.endpoints) {
		endpoint := c.health.GetBestEndpoint(remaining(c.endpoints, attempted))
		if endpoint == "" {
			break
		}
		attempted[endpoint] = true

		conn, ok := c.conns[endpoint]
		if !ok {
			continue
		}

		start := time.Now()
		result, err := fn(conn)
		duration := time.Since(start)
		c.metrics.RecordRPCCall(method, duration, err == nil)
		if err == nil {
			c.health.RecordSuccess(endpoint, duration.Milliseconds())
			return result, nil
		}
		c.health.RecordFailure(endpoint, err)
		c.log.Warnw("RPC call failed, trying next endpoint", "endpoint", endpoint, "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no healthy RPC endpoint available")
	}
	return zero, fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}

// callerMethod returns the name of the FailoverClient method that invoked
// call(), for metric labeling (e.g. "EstimateGas", "SendTransaction").
func callerMethod() string {
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

func remaining(all []string, attempted map[string]bool) []string {
	out := make([]string, 0, len(all))
	for _, e := range all {
		if !attempted[e] {
			out = append(out, e)
		}
	}
	return out
}

func (c *FailoverClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(c, ctx, func(conn *ethclient.Client) (uint64, error) {
		return conn.EstimateGas(ctx, msg)
	})
}

func (c *FailoverClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return call(c, ctx, func(conn *ethclient.Client) (*types.Header, error) {
		return conn.HeaderByNumber(ctx, number)
	})
}

func (c *FailoverClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(c, ctx, func(conn *ethclient.Client) (*big.Int, error) {
		return conn.SuggestGasPrice(ctx)
	})
}

func (c *FailoverClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(c, ctx, func(conn *ethclient.Client) (uint64, error) {
		return conn.PendingNonceAt(ctx, account)
	})
}

func (c *FailoverClient) CallContract(ctx context.Context, call_ ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(c, ctx, func(conn *ethclient.Client) ([]byte, error) {
		return conn.CallContract(ctx, call_, blockNumber)
	})
}

func (c *FailoverClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	_, err := call(c, ctx, func(conn *ethclient.Client) (struct{}, error) {
		return struct{}{}, conn.SendTransaction(ctx, tx)
	})
	return err
}

func (c *FailoverClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return call(c, ctx, func(conn *ethclient.Client) (*types.Receipt, error) {
		return conn.TransactionReceipt(ctx, txHash)
	})
}

type txByHashResult struct {
	tx      *types.Transaction
	pending bool
}

// TransactionByHash reports whether hash is known to the chain at all, and
// if so whether it is still pending.
func (c *FailoverClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	result, err := call(c, ctx, func(conn *ethclient.Client) (txByHashResult, error) {
		tx, pending, err := conn.TransactionByHash(ctx, hash)
		return txByHashResult{tx: tx, pending: pending}, err
	})
	if err != nil {
		return nil, false, err
	}
	return result.tx, result.pending, nil
}

// Close shuts down every underlying connection.
func (c *FailoverClient) Close() {
	for _, conn := range c.conns {
		conn.Close()
	}
}

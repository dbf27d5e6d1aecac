package chainadapter

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// NonceSource fetches the pending nonce (the transaction count including
// pending transactions) for an address. In
// production this is ethclient.Client.PendingNonceAt; tests supply a stub.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceSerializer hands out monotonically increasing nonces for a single
// address under a 5-second refresh TTL, matching the cache-then-increment
// scheme of the original nonce manager. A singleflight group collapses
// concurrent cache-miss refetches into one RPC call.
type NonceSerializer struct {
	mu          sync.Mutex
	address     common.Address
	source      NonceSource
	ttl         time.Duration
	current     *uint64
	lastUpdate  time.Time
	sf          singleflight.Group
	log         *zap.SugaredLogger
}

func NewNonceSerializer(address common.Address, source NonceSource, log *zap.SugaredLogger) *NonceSerializer {
	return &NonceSerializer{
		address: address,
		source:  source,
		ttl:     5 * time.Second,
		log:     log,
	}
}

// Next returns the next nonce to use, refreshing from chain if the cache is
// empty or stale, and incrementing the cached value before returning.
func (n *NonceSerializer) Next(ctx context.Context) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.current == nil || time.Since(n.lastUpdate) > n.ttl {
		v, err, _ := n.sf.Do("refresh", func() (interface{}, error) {
			return n.source.PendingNonceAt(ctx, n.address)
		})
		if err != nil {
			if n.current != nil {
				n.log.Warnw("nonce refresh failed, using cached value", "cached", *n.current, "error", err)
			} else {
				n.log.Errorw("nonce refresh failed and no cached value available", "error", err)
				return 0, newChainError(ErrNetworkTimeout, "nonce fetch failed", err)
			}
		} else {
			fresh := v.(uint64)
			n.current = &fresh
			n.lastUpdate = time.Now()
			n.log.Infow("refreshed nonce from chain", "nonce", fresh)
		}
	}

	next := *n.current
	*n.current++
	return next, nil
}

// Reset forces the next Next call to refetch from chain.
func (n *NonceSerializer) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = nil
	n.lastUpdate = time.Time{}
}

// HandleError applies §4.1's nonce-error recovery: parse "minimum expected
// nonce is K" out of errText and pin the cache to K; if no such hint is
// present, reset and fetch fresh.
//
// The hint K was never consumed by any transaction (the send that produced
// this error used the stale, too-low nonce), so the cache is left at
// exactly K rather than K+1: the next Next() call is the one that hands K
// out and advances past it. Pre-incrementing here would strand K as a
// permanent gap no transaction ever fills.
func (n *NonceSerializer) HandleError(ctx context.Context, errText string) (uint64, error) {
	n.mu.Lock()
	if hint, ok := ExtractNonceHint(errText); ok {
		n.log.Infow("setting nonce to hinted value", "nonce", hint)
		n.current = &hint
		n.lastUpdate = time.Now()
		n.mu.Unlock()
		return hint, nil
	}
	n.mu.Unlock()

	n.Reset()
	return n.Next(ctx)
}

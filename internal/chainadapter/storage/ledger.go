// Package storage holds the in-memory transaction ledger: a thread-safe
// map from hash to TxRecord plus a per-address recency index, matching the
// broadcast-idempotency store's shape but generalized to the reward
// orchestrator's richer record type.
package storage

import (
	"context"
	"sync"

	"github.com/ce20480/reward-orchestrator/internal/chainadapter"
	"github.com/ethereum/go-ethereum/common"
)

// maxAddressHistory is the cap on recent hashes retained per address.
const maxAddressHistory = 10

// ChainReader is the subset of chain access the ledger falls back to when
// asked about a hash it has never seen.
type ChainReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (pending bool, blockNumber uint64, found bool, err error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (blockNumber uint64, gasUsed uint64, status uint64, found bool, err error)
}

// TransactionLedger is the in-memory transaction ledger described by §4.5:
// idempotent put, get-with-chain-fallback, and a 10-most-recent address
// index with synchronized eviction.
type TransactionLedger struct {
	mu      sync.RWMutex
	records map[common.Hash]*chainadapter.TxRecord
	byAddr  map[common.Address][]common.Hash
	chain   ChainReader
}

func NewTransactionLedger(chain ChainReader) *TransactionLedger {
	return &TransactionLedger{
		records: make(map[common.Hash]*chainadapter.TxRecord),
		byAddr:  make(map[common.Address][]common.Hash),
		chain:   chain,
	}
}

// Put inserts or replaces a record. Replacing a terminal record with a
// non-terminal one is forbidden, per §4.5.
func (l *TransactionLedger) Put(record *chainadapter.TxRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.records[record.Hash]; ok && existing.IsTerminal() && !record.IsTerminal() {
		return chainadapter.NewValidationError("cannot replace a terminal TxRecord with a non-terminal one")
	}

	_, isNew := l.records[record.Hash]
	l.records[record.Hash] = record

	if isNew {
		l.indexAddress(record.Address, record.Hash)
	}
	return nil
}

func (l *TransactionLedger) indexAddress(addr common.Address, hash common.Hash) {
	hashes := append(l.byAddr[addr], hash)
	if len(hashes) > maxAddressHistory {
		evicted := hashes[0]
		hashes = hashes[1:]
		if evictedRecord, ok := l.records[evicted]; ok && evictedRecord.Address == addr {
			delete(l.records, evicted)
		}
	}
	l.byAddr[addr] = hashes
}

// Get returns the in-memory record if present; otherwise it attempts a
// chain lookup. A transaction found on-chain but not yet mined synthesizes
// a Pending record; a RateLimited error during the chain read synthesizes
// a Pending record marked with that errorKind rather than NotFound.
func (l *TransactionLedger) Get(ctx context.Context, hash common.Hash) (*chainadapter.TxRecord, error) {
	l.mu.RLock()
	if r, ok := l.records[hash]; ok {
		l.mu.RUnlock()
		return r, nil
	}
	l.mu.RUnlock()

	pending, _, found, err := l.chain.TransactionByHash(ctx, hash)
	if err != nil {
		if chainadapter.ClassifyError(err).Kind == chainadapter.ErrRateLimited {
			return &chainadapter.TxRecord{Hash: hash, State: chainadapter.TxStatePending, ErrorKind: chainadapter.ErrRateLimited}, nil
		}
		return nil, err
	}
	if !found {
		return &chainadapter.TxRecord{Hash: hash, State: chainadapter.TxStateNotFound}, nil
	}
	if pending {
		return &chainadapter.TxRecord{Hash: hash, State: chainadapter.TxStatePending}, nil
	}

	blockNumber, gasUsed, status, receiptFound, err := l.chain.TransactionReceipt(ctx, hash)
	if err != nil {
		if chainadapter.ClassifyError(err).Kind == chainadapter.ErrRateLimited {
			return &chainadapter.TxRecord{Hash: hash, State: chainadapter.TxStatePending, ErrorKind: chainadapter.ErrRateLimited}, nil
		}
		return nil, err
	}
	if !receiptFound {
		return &chainadapter.TxRecord{Hash: hash, State: chainadapter.TxStatePending}, nil
	}

	state := chainadapter.TxStateConfirmed
	if status == 0 {
		state = chainadapter.TxStateFailed
	}
	return &chainadapter.TxRecord{
		Hash:        hash,
		State:       state,
		BlockNumber: blockNumber,
		GasUsed:     gasUsed,
	}, nil
}

// ListByAddress returns up to the 10 most recent records for addr, newest
// first.
func (l *TransactionLedger) ListByAddress(addr common.Address) []*chainadapter.TxRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	hashes := l.byAddr[addr]
	out := make([]*chainadapter.TxRecord, 0, len(hashes))
	for i := len(hashes) - 1; i >= 0; i-- {
		if r, ok := l.records[hashes[i]]; ok {
			out = append(out, r)
		}
	}
	return out
}

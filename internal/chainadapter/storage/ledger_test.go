package storage

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ce20480/reward-orchestrator/internal/chainadapter"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChainReader struct {
	byHashPending     bool
	byHashFound       bool
	byHashErr         error
	receiptBlockNum   uint64
	receiptGasUsed    uint64
	receiptStatus     uint64
	receiptFound      bool
	receiptErr        error
}

func (s *stubChainReader) TransactionByHash(ctx context.Context, hash common.Hash) (bool, uint64, bool, error) {
	if s.byHashErr != nil {
		return false, 0, false, s.byHashErr
	}
	return s.byHashPending, 0, s.byHashFound, nil
}

func (s *stubChainReader) TransactionReceipt(ctx context.Context, hash common.Hash) (uint64, uint64, uint64, bool, error) {
	if s.receiptErr != nil {
		return 0, 0, 0, false, s.receiptErr
	}
	return s.receiptBlockNum, s.receiptGasUsed, s.receiptStatus, s.receiptFound, nil
}

func TestTransactionLedgerPutAndGetFromMemory(t *testing.T) {
	ledger := NewTransactionLedger(&stubChainReader{})
	hash := common.HexToHash("0x1")
	record := &chainadapter.TxRecord{Hash: hash, State: chainadapter.TxStateConfirmed, Address: common.HexToAddress("0xa")}

	require.NoError(t, ledger.Put(record))

	got, err := ledger.Get(context.Background(), hash)
	require.NoError(t, err)
	assert.Same(t, record, got)
}

func TestTransactionLedgerPutRejectsDowngradingTerminalRecord(t *testing.T) {
	ledger := NewTransactionLedger(&stubChainReader{})
	hash := common.HexToHash("0x1")
	confirmed := &chainadapter.TxRecord{Hash: hash, State: chainadapter.TxStateConfirmed}
	require.NoError(t, ledger.Put(confirmed))

	pending := &chainadapter.TxRecord{Hash: hash, State: chainadapter.TxStatePending}
	err := ledger.Put(pending)
	require.Error(t, err)
}

func TestTransactionLedgerGetFallsBackToChainWhenUnknown(t *testing.T) {
	chain := &stubChainReader{byHashFound: false}
	ledger := NewTransactionLedger(chain)

	hash := common.HexToHash("0x2")
	record, err := ledger.Get(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.TxStateNotFound, record.State)
}

func TestTransactionLedgerGetPendingTransaction(t *testing.T) {
	chain := &stubChainReader{byHashFound: true, byHashPending: true}
	ledger := NewTransactionLedger(chain)

	hash := common.HexToHash("0x3")
	record, err := ledger.Get(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.TxStatePending, record.State)
}

func TestTransactionLedgerGetConfirmedFromReceipt(t *testing.T) {
	chain := &stubChainReader{
		byHashFound:     true,
		byHashPending:   false,
		receiptFound:    true,
		receiptStatus:   1,
		receiptBlockNum: 10,
		receiptGasUsed:  21000,
	}
	ledger := NewTransactionLedger(chain)

	hash := common.HexToHash("0x4")
	record, err := ledger.Get(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.TxStateConfirmed, record.State)
	assert.Equal(t, uint64(10), record.BlockNumber)
}

func TestTransactionLedgerGetFailedFromReceiptStatusZero(t *testing.T) {
	chain := &stubChainReader{
		byHashFound:   true,
		receiptFound:  true,
		receiptStatus: 0,
	}
	ledger := NewTransactionLedger(chain)

	hash := common.HexToHash("0x5")
	record, err := ledger.Get(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.TxStateFailed, record.State)
}

func TestTransactionLedgerGetDegradesRateLimitedLookupToPending(t *testing.T) {
	chain := &stubChainReader{byHashErr: errors.New("429 too many requests")}
	ledger := NewTransactionLedger(chain)

	hash := common.HexToHash("0x6")
	record, err := ledger.Get(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, chainadapter.TxStatePending, record.State)
	assert.Equal(t, chainadapter.ErrRateLimited, record.ErrorKind)
}

func TestTransactionLedgerGetPropagatesNonRateLimitedLookupError(t *testing.T) {
	chain := &stubChainReader{byHashErr: errors.New("connection refused")}
	ledger := NewTransactionLedger(chain)

	hash := common.HexToHash("0x7")
	_, err := ledger.Get(context.Background(), hash)
	assert.Error(t, err)
}

func TestTransactionLedgerListByAddressNewestFirst(t *testing.T) {
	ledger := NewTransactionLedger(&stubChainReader{})
	addr := common.HexToAddress("0xa")

	for i := 0; i < 3; i++ {
		hash := common.BigToHash(big.NewInt(int64(i)))
		require.NoError(t, ledger.Put(&chainadapter.TxRecord{Hash: hash, Address: addr, State: chainadapter.TxStatePending}))
	}

	records := ledger.ListByAddress(addr)
	require.Len(t, records, 3)
	assert.Equal(t, common.BigToHash(big.NewInt(2)), records[0].Hash)
	assert.Equal(t, common.BigToHash(big.NewInt(0)), records[2].Hash)
}

func TestTransactionLedgerListByAddressEvictsBeyondMaxHistory(t *testing.T) {
	ledger := NewTransactionLedger(&stubChainReader{})
	addr := common.HexToAddress("0xb")

	for i := 0; i < maxAddressHistory+5; i++ {
		hash := common.BigToHash(big.NewInt(int64(i)))
		require.NoError(t, ledger.Put(&chainadapter.TxRecord{Hash: hash, Address: addr, State: chainadapter.TxStatePending}))
	}

	records := ledger.ListByAddress(addr)
	assert.LessOrEqual(t, len(records), maxAddressHistory)
}

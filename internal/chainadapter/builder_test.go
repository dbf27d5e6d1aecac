package chainadapter

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGasEstimator struct {
	estimate uint64
	err      error
}

func (s *stubGasEstimator) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.estimate, nil
}

func TestBufferedGasLimit(t *testing.T) {
	testCases := []struct {
		name     string
		estimate uint64
		expected uint64
	}{
		{"round number", 100000, 120000},
		{"requires ceiling", 100001, 120002},
		{"small estimate", 21000, 25200},
		{"zero estimate", 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, bufferedGasLimit(tc.estimate))
		})
	}
}

func newTestBuilder(t *testing.T, estimator GasEstimator, nonceValue uint64, baseFeeGwei int64) (*TxBuilder, common.Address) {
	t.Helper()
	from := common.HexToAddress("0xabc")
	nonces := NewNonceSerializer(from, &stubNonceSource{value: nonceValue}, testLogger())
	fees := NewFeeOracle(&stubBlockSource{
		header: &types.Header{BaseFee: big.NewInt(baseFeeGwei * 1_000_000_000)},
	}, testLogger())
	return NewTxBuilder(big.NewInt(314159), from, estimator, nonces, fees, testLogger()), from
}

func TestTxBuilderBuildSuccess(t *testing.T) {
	estimator := &stubGasEstimator{estimate: 100000}
	builder, from := newTestBuilder(t, estimator, 3, 10)

	req, err := builder.Build(context.Background(), common.HexToAddress("0xdef"), []byte{0x01})
	require.NoError(t, err)

	assert.Equal(t, uint64(120000), req.GasLimit)
	assert.Equal(t, uint64(3), req.Nonce)
	assert.Equal(t, from, req.From)
	assert.True(t, req.Fee.IsEip1559())
	assert.Equal(t, big.NewInt(21_000_000_000), req.Fee.MaxFee)
}

func TestTxBuilderBuildDegradesToFallbackGasLimitOnEstimateError(t *testing.T) {
	estimator := &stubGasEstimator{err: errors.New("execution reverted")}
	builder, _ := newTestBuilder(t, estimator, 1, 10)

	req, err := builder.Build(context.Background(), common.HexToAddress("0xdef"), []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, fallbackGasLimit, req.GasLimit)
}

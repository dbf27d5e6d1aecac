package chainadapter

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBlockSource struct {
	header       *types.Header
	headerErr    error
	gasPrice     *big.Int
	gasPriceErr  error
}

func (s *stubBlockSource) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if s.headerErr != nil {
		return nil, s.headerErr
	}
	return s.header, nil
}

func (s *stubBlockSource) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if s.gasPriceErr != nil {
		return nil, s.gasPriceErr
	}
	return s.gasPrice, nil
}

func TestFeeOracleEip1559(t *testing.T) {
	baseFee := big.NewInt(10_000_000_000) // 10 gwei
	source := &stubBlockSource{header: &types.Header{BaseFee: baseFee}}
	oracle := NewFeeOracle(source, testLogger())

	fees, err := oracle.Fees(context.Background())
	require.NoError(t, err)

	assert.Equal(t, FeeEip1559, fees.Kind)
	assert.True(t, fees.IsEip1559())
	assert.Equal(t, baseFee, fees.BaseFee)
	assert.Equal(t, big.NewInt(1_000_000_000), fees.MaxPriorityFee)
	// maxFee = 2*baseFee + 1 gwei priority = 21 gwei
	assert.Equal(t, big.NewInt(21_000_000_000), fees.MaxFee)
}

func TestFeeOracleFallsBackToLegacyWhenNoBaseFee(t *testing.T) {
	source := &stubBlockSource{
		header:   &types.Header{BaseFee: nil},
		gasPrice: big.NewInt(5_000_000_000),
	}
	oracle := NewFeeOracle(source, testLogger())

	fees, err := oracle.Fees(context.Background())
	require.NoError(t, err)

	assert.Equal(t, FeeLegacy, fees.Kind)
	assert.False(t, fees.IsEip1559())
	assert.Equal(t, big.NewInt(5_000_000_000), fees.GasPrice)
}

func TestFeeOracleFallsBackToLegacyOnHeaderError(t *testing.T) {
	source := &stubBlockSource{
		headerErr: errors.New("rpc unavailable"),
		gasPrice:  big.NewInt(3_000_000_000),
	}
	oracle := NewFeeOracle(source, testLogger())

	fees, err := oracle.Fees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FeeLegacy, fees.Kind)
	assert.Equal(t, big.NewInt(3_000_000_000), fees.GasPrice)
}

func TestFeeOracleLegacyGasPriceError(t *testing.T) {
	source := &stubBlockSource{
		header:      &types.Header{BaseFee: nil},
		gasPriceErr: errors.New("rpc unavailable"),
	}
	oracle := NewFeeOracle(source, testLogger())

	_, err := oracle.Fees(context.Background())
	require.Error(t, err)
	ce, ok := err.(*ChainError)
	require.True(t, ok)
	assert.Equal(t, ErrNetworkTimeout, ce.Kind)
}

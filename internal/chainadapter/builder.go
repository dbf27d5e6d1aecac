package chainadapter

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// fallbackGasLimit is used when estimation fails outright, per §3's "else a
// conservative constant (≤300,000)" rule.
const fallbackGasLimit uint64 = 300_000

// gasBuffer is the multiplier applied to a successful estimateGas result.
const gasBufferNumerator, gasBufferDenominator = 6, 5 // 1.2 = 6/5, integer-exact

// GasEstimator estimates gas for a call without mutating chain state.
type GasEstimator interface {
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
}

// TxBuilder assembles an unsigned TxRequest from a contract call, applying
// the gas-limit buffer and attaching nonce/fee data from the serializer and
// oracle.
type TxBuilder struct {
	chainID    *big.Int
	from       common.Address
	estimator  GasEstimator
	nonces     *NonceSerializer
	fees       *FeeOracle
	log        *zap.SugaredLogger
}

func NewTxBuilder(chainID *big.Int, from common.Address, estimator GasEstimator, nonces *NonceSerializer, fees *FeeOracle, log *zap.SugaredLogger) *TxBuilder {
	return &TxBuilder{chainID: chainID, from: from, estimator: estimator, nonces: nonces, fees: fees, log: log}
}

// bufferedGasLimit applies ceil(1.2 * estimate) using pure integer math:
// ceil(6e/5) == (6e + 4) / 5.
func bufferedGasLimit(estimate uint64) uint64 {
	return (estimate*gasBufferNumerator + (gasBufferDenominator - 1)) / gasBufferDenominator
}

// Build estimates gas for (to, data), computes the buffered gas limit,
// pulls the current fee profile and next nonce, and returns an unsigned
// TxRequest. Estimation failure degrades to fallbackGasLimit rather than
// failing the build, matching §4.4's "never fails terminally" contract for
// this stage.
func (b *TxBuilder) Build(ctx context.Context, to common.Address, data []byte) (TxRequest, error) {
	gasLimit := fallbackGasLimit
	estimate, err := b.estimator.EstimateGas(ctx, ethereum.CallMsg{From: b.from, To: &to, Data: data})
	if err != nil {
		b.log.Warnw("gas estimation failed, using fallback gas limit", "fallback", fallbackGasLimit, "error", err)
	} else {
		gasLimit = bufferedGasLimit(estimate)
	}

	feeProfile, err := b.fees.Fees(ctx)
	if err != nil {
		return TxRequest{}, err
	}

	nonce, err := b.nonces.Next(ctx)
	if err != nil {
		return TxRequest{}, err
	}

	return TxRequest{
		ChainID:  b.chainID,
		From:     b.from,
		To:       to,
		Data:     data,
		GasLimit: gasLimit,
		Fee:      feeProfile,
		Nonce:    nonce,
		Value:    big.NewInt(0),
	}, nil
}

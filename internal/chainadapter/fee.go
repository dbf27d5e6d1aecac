package chainadapter

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// oneGwei is the fixed priority fee used for every EIP-1559 transaction this
// orchestrator submits.
var oneGwei = big.NewInt(1_000_000_000)

// BlockSource supplies the latest block header so FeeOracle can read
// BaseFee.
type BlockSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// FeeOracle computes a FeeProfile per submission, preferring EIP-1559 when
// the chain's latest header carries a base fee and falling back to legacy
// gasPrice otherwise.
type FeeOracle struct {
	source BlockSource
	log    *zap.SugaredLogger
}

func NewFeeOracle(source BlockSource, log *zap.SugaredLogger) *FeeOracle {
	return &FeeOracle{source: source, log: log}
}

// Fees returns the FeeProfile to use for the next transaction. When the
// latest block has a non-nil BaseFee, maxFee = 2*baseFee + 1 gwei priority
// fee, matching the original calculation exactly. Otherwise it degrades to
// a legacy gasPrice profile from eth_gasPrice.
func (o *FeeOracle) Fees(ctx context.Context) (FeeProfile, error) {
	header, err := o.source.HeaderByNumber(ctx, nil)
	if err != nil {
		o.log.Warnw("error fetching latest block for fee calculation, falling back to legacy", "error", err)
		return o.legacyFees(ctx)
	}

	if header.BaseFee == nil {
		o.log.Infow("network does not support EIP-1559, using legacy transaction type")
		return o.legacyFees(ctx)
	}

	baseFee, overflow := uint256.FromBig(header.BaseFee)
	if overflow {
		return FeeProfile{}, newChainError(ErrValidationError, "base fee overflows uint256", nil)
	}
	priorityFee, _ := uint256.FromBig(oneGwei)

	maxFee := new(uint256.Int).Mul(baseFee, uint256.NewInt(2))
	maxFee.Add(maxFee, priorityFee)

	o.log.Infow("eip-1559 fees calculated",
		"base_fee_gwei", weiToGwei(header.BaseFee),
		"priority_fee_gwei", weiToGwei(oneGwei),
		"max_fee_gwei", weiToGwei(maxFee.ToBig()),
	)

	return FeeProfile{
		Kind:           FeeEip1559,
		BaseFee:        header.BaseFee,
		MaxPriorityFee: new(big.Int).Set(oneGwei),
		MaxFee:         maxFee.ToBig(),
	}, nil
}

func (o *FeeOracle) legacyFees(ctx context.Context) (FeeProfile, error) {
	gasPrice, err := o.source.SuggestGasPrice(ctx)
	if err != nil {
		return FeeProfile{}, newChainError(ErrNetworkTimeout, "failed to fetch legacy gas price", err)
	}
	return FeeProfile{Kind: FeeLegacy, GasPrice: gasPrice}, nil
}

func weiToGwei(wei *big.Int) *big.Float {
	f := new(big.Float).SetInt(wei)
	return f.Quo(f, big.NewFloat(1_000_000_000))
}

package chainadapter

import (
	"context"
	"math/big"
	"time"

	"github.com/ce20480/reward-orchestrator/internal/chainadapter/metrics"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ChainClient is the subset of ethclient.Client the submission pipeline
// needs: gas estimation, simulation, broadcast and receipt polling.
type ChainClient interface {
	GasEstimator
	BlockSource
	NonceSource
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// SubmissionPipeline drives one transaction through EstimateGas → BuildTx →
// Simulate → Sign → Send → AwaitReceipt, producing a TxRecord.
type SubmissionPipeline struct {
	client         ChainClient
	builder        *TxBuilder
	signer         *EthereumSigner
	rateLimiter    *RateLimiter
	nonces         *NonceSerializer
	contract       *ContractHandle
	receiptTimeout time.Duration
	chainID        string
	metrics        metrics.ChainMetrics
	log            *zap.SugaredLogger
}

// NewSubmissionPipeline wires a pipeline for one chain. metricsCollector may
// be nil, in which case stage timings are discarded via a no-op collector.
func NewSubmissionPipeline(client ChainClient, builder *TxBuilder, signer *EthereumSigner, rateLimiter *RateLimiter, nonces *NonceSerializer, contract *ContractHandle, chainID string, metricsCollector metrics.ChainMetrics, log *zap.SugaredLogger) *SubmissionPipeline {
	if metricsCollector == nil {
		metricsCollector = &metrics.NoOpMetrics{}
	}
	return &SubmissionPipeline{
		client:         client,
		builder:        builder,
		signer:         signer,
		rateLimiter:    rateLimiter,
		nonces:         nonces,
		contract:       contract,
		receiptTimeout: 120 * time.Second,
		chainID:        chainID,
		metrics:        metricsCollector,
		log:            log,
	}
}

// Submit runs the full pipeline for a call to the contract's `function`
// with ABI-packed `data`, returning the resulting TxRecord. The record is
// populated for every failure from Simulate onward; a BuildTx failure
// happens before any record exists, so it returns (nil, err).
func (p *SubmissionPipeline) Submit(ctx context.Context, to common.Address, address common.Address, function string, data []byte) (*TxRecord, error) {
	// BuildTx (internally runs EstimateGas, Fee Oracle, and Nonce Serializer)
	buildStart := time.Now()
	req, err := p.builder.Build(ctx, to, data)
	p.metrics.RecordTransactionBuild(p.chainID, time.Since(buildStart), err == nil)
	if err != nil {
		return nil, err
	}

	record := &TxRecord{
		Address:     address,
		Function:    function,
		State:       TxStatePending,
		SubmittedAt: nowUnix(),
		GasLimit:    req.GasLimit,
		Fee:         req.Fee,
		Nonce:       req.Nonce,
	}

	// Simulate
	if err := p.simulate(ctx, req); err != nil {
		ce := ClassifyError(err)
		record.State = TxStateFailed
		record.ErrorKind = ce.Kind
		record.MinedAt = nowUnix()
		return record, err
	}

	// Sign
	signStart := time.Now()
	signedTx, err := p.signer.SignTx(req)
	p.metrics.RecordTransactionSign(p.chainID, time.Since(signStart), err == nil)
	if err != nil {
		ce := ClassifyError(err)
		record.State = TxStateFailed
		record.ErrorKind = ce.Kind
		record.MinedAt = nowUnix()
		return record, err
	}
	record.Hash = signedTx.Hash()

	// Send
	sendStart := time.Now()
	hash, err := p.send(ctx, signedTx)
	p.metrics.RecordTransactionSend(p.chainID, time.Since(sendStart), err == nil)
	if err != nil {
		ce := ClassifyError(err)
		record.State = TxStateFailed
		record.ErrorKind = ce.Kind
		record.MinedAt = nowUnix()
		return record, err
	}
	record.Hash = hash

	// AwaitReceipt
	receipt, err := p.awaitReceipt(ctx, hash)
	if err != nil {
		ce := ClassifyError(err)
		if ce.Kind == ErrReceiptTimeout {
			record.ErrorKind = ErrReceiptTimeout
			return record, nil // remains Pending, not terminal
		}
		record.State = TxStateFailed
		record.ErrorKind = ce.Kind
		record.MinedAt = nowUnix()
		return record, err
	}

	record.MinedAt = nowUnix()
	record.BlockNumber = receipt.BlockNumber.Uint64()
	record.GasUsed = receipt.GasUsed

	if receipt.Status == types.ReceiptStatusSuccessful {
		record.State = TxStateConfirmed
		record.DecodedLogs = p.contract.DecodeLogs(receipt.Logs)
		return record, nil
	}

	record.State = TxStateFailed
	if float64(receipt.GasUsed) >= 0.95*float64(req.GasLimit) {
		record.ErrorKind = ErrOutOfGasOrRevert
	} else {
		record.ErrorKind = ErrContractRevert
	}
	return record, newChainError(record.ErrorKind, "transaction failed on-chain", nil)
}

func (p *SubmissionPipeline) simulate(ctx context.Context, req TxRequest) error {
	_, err := p.client.CallContract(ctx, ethereum.CallMsg{
		From: req.From,
		To:   &req.To,
		Data: req.Data,
	}, nil)
	if err != nil {
		return ClassifyError(err)
	}
	return nil
}

func (p *SubmissionPipeline) send(ctx context.Context, signedTx *types.Transaction) (common.Hash, error) {
	var hash common.Hash
	err := p.rateLimiter.Execute(ctx, 3, 2.0, func(ctx context.Context) error {
		sendErr := p.client.SendTransaction(ctx, signedTx)
		if sendErr == nil {
			hash = signedTx.Hash()
			return nil
		}

		ce := ClassifyError(sendErr)
		if ce.Kind == ErrAlreadyKnown {
			if existing, ok := ExtractTxHash(sendErr.Error()); ok {
				hash = common.HexToHash(existing)
				p.log.Infow("transaction already in mempool, continuing with existing hash", "hash", hash.Hex())
				return nil
			}
		}
		if ce.Kind == ErrNonceTooLow {
			if _, resetErr := p.nonces.HandleError(ctx, sendErr.Error()); resetErr != nil {
				p.log.Warnw("failed to recover nonce after NonceTooLow", "error", resetErr)
			}
		}
		return ce
	})
	return hash, err
}

func (p *SubmissionPipeline) awaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(p.receiptTimeout)
	var receipt *types.Receipt

	err := p.rateLimiter.Execute(ctx, 3, 2.0, func(ctx context.Context) error {
		for time.Now().Before(deadline) {
			r, err := p.client.TransactionReceipt(ctx, hash)
			if err == nil {
				receipt = r
				return nil
			}
			if ClassifyError(err).Kind == ErrRateLimited {
				return err
			}
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return newChainError(ErrReceiptTimeout, "receipt wait cancelled", ctx.Err())
			}
		}
		return newChainError(ErrReceiptTimeout, "receipt not available within timeout", nil)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

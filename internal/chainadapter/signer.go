package chainadapter

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthereumSigner holds the orchestrator's single static ECDSA secp256k1 key
// and signs every transaction with it. There is exactly one signing
// identity per process; callers never select among multiple keys.
type EthereumSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewEthereumSigner builds a signer from a hex-encoded private key
// (with or without a leading "0x").
func NewEthereumSigner(privateKeyHex string, chainID *big.Int) (*EthereumSigner, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")

	keyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}

	privKey, err := crypto.ToECDSA(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	pubKey, ok := privKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &EthereumSigner{
		privateKey: privKey,
		address:    crypto.PubkeyToAddress(*pubKey),
		chainID:    new(big.Int).Set(chainID),
	}, nil
}

// Address returns the address this signer controls.
func (s *EthereumSigner) Address() common.Address { return s.address }

// SignTx converts req into a go-ethereum types.Transaction (dynamic-fee or
// legacy, matching req.Fee.Kind) and signs it with a Cancun-era signer,
// which covers EIP-155 replay protection and EIP-1559 dynamic fees.
func (s *EthereumSigner) SignTx(req TxRequest) (*types.Transaction, error) {
	if req.From != s.address {
		return nil, newChainError(ErrValidationError, fmt.Sprintf("signer controls %s, request is from %s", s.address.Hex(), req.From.Hex()), nil)
	}

	var unsigned *types.Transaction
	if req.Fee.IsEip1559() {
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID:   req.ChainID,
			Nonce:     req.Nonce,
			GasTipCap: req.Fee.MaxPriorityFee,
			GasFeeCap: req.Fee.MaxFee,
			Gas:       req.GasLimit,
			To:        &req.To,
			Value:     req.Value,
			Data:      req.Data,
		})
	} else {
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce:    req.Nonce,
			GasPrice: req.Fee.GasPrice,
			Gas:      req.GasLimit,
			To:       &req.To,
			Value:    req.Value,
			Data:     req.Data,
		})
	}

	signer := types.NewCancunSigner(s.chainID)
	signed, err := types.SignTx(unsigned, signer, s.privateKey)
	if err != nil {
		return nil, newChainError(ErrUnexpectedError, "transaction signing failed", err)
	}
	return signed, nil
}

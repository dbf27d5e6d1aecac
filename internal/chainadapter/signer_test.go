package chainadapter

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeyHex(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey)
	return common.Bytes2Hex(crypto.FromECDSA(key)), address
}

func TestNewEthereumSignerDerivesAddress(t *testing.T) {
	keyHex, expectedAddr := generateTestKeyHex(t)

	signer, err := NewEthereumSigner(keyHex, big.NewInt(314159))
	require.NoError(t, err)
	assert.Equal(t, expectedAddr, signer.Address())
}

func TestNewEthereumSignerAcceptsHexPrefix(t *testing.T) {
	keyHex, expectedAddr := generateTestKeyHex(t)

	signer, err := NewEthereumSigner("0x"+keyHex, big.NewInt(314159))
	require.NoError(t, err)
	assert.Equal(t, expectedAddr, signer.Address())
}

func TestNewEthereumSignerRejectsInvalidHex(t *testing.T) {
	_, err := NewEthereumSigner("not-hex", big.NewInt(314159))
	assert.Error(t, err)
}

func TestEthereumSignerSignTxEip1559(t *testing.T) {
	keyHex, addr := generateTestKeyHex(t)
	signer, err := NewEthereumSigner(keyHex, big.NewInt(314159))
	require.NoError(t, err)

	req := TxRequest{
		ChainID:  big.NewInt(314159),
		From:     addr,
		To:       common.HexToAddress("0xdef"),
		GasLimit: 120000,
		Fee: FeeProfile{
			Kind:           FeeEip1559,
			MaxPriorityFee: big.NewInt(1_000_000_000),
			MaxFee:         big.NewInt(21_000_000_000),
		},
		Nonce: 0,
		Value: big.NewInt(0),
	}

	signed, err := signer.SignTx(req)
	require.NoError(t, err)
	assert.NotNil(t, signed)

	sender, err := types.Sender(types.NewCancunSigner(big.NewInt(314159)), signed)
	require.NoError(t, err)
	assert.Equal(t, addr, sender)
}

func TestEthereumSignerSignTxRejectsMismatchedFrom(t *testing.T) {
	keyHex, _ := generateTestKeyHex(t)
	signer, err := NewEthereumSigner(keyHex, big.NewInt(314159))
	require.NoError(t, err)

	req := TxRequest{
		ChainID: big.NewInt(314159),
		From:    common.HexToAddress("0xnotthesigner"),
		To:      common.HexToAddress("0xdef"),
		Fee:     FeeProfile{Kind: FeeLegacy, GasPrice: big.NewInt(1)},
		Value:   big.NewInt(0),
	}

	_, err = signer.SignTx(req)
	require.Error(t, err)
	ce, ok := err.(*ChainError)
	require.True(t, ok)
	assert.Equal(t, ErrValidationError, ce.Kind)
}

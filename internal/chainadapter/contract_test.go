package chainadapter

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadContractHandleFallsBackToStubABI(t *testing.T) {
	handle, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, "")
	require.NoError(t, err)
	for _, name := range requiredMethodsByKind[XPContract] {
		_, ok := handle.ABI.Methods[name]
		assert.True(t, ok, "expected stub ABI to contain method %s", name)
	}
}

func TestLoadContractHandleReadsBareArrayFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abi.json")
	require.NoError(t, os.WriteFile(path, []byte(stubABIJSON), 0o644))

	handle, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, path)
	require.NoError(t, err)
	assert.Contains(t, handle.ABI.Methods, "awardXP")
}

func TestLoadContractHandleReadsEnvelopeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abi.json")
	wrapped := `{"abi":` + stubABIJSON + `}`
	require.NoError(t, os.WriteFile(path, []byte(wrapped), 0o644))

	handle, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, path)
	require.NoError(t, err)
	assert.Contains(t, handle.ABI.Methods, "awardXP")
}

func TestLoadContractHandleMissingMethodFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abi.json")
	incomplete := `[{"type":"function","name":"awardXP","inputs":[{"name":"recipient","type":"address"},{"name":"activity","type":"uint8"}],"outputs":[]}]`
	require.NoError(t, os.WriteFile(path, []byte(incomplete), 0o644))

	_, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, path)
	require.Error(t, err)
}

func TestContractHandlePack(t *testing.T) {
	handle, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, "")
	require.NoError(t, err)

	data, err := handle.Pack("awardXP", common.HexToAddress("0x2"), uint8(1))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestContractHandlePackUnknownMethod(t *testing.T) {
	handle, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, "")
	require.NoError(t, err)

	_, err = handle.Pack("noSuchMethod")
	require.Error(t, err)
	ce, ok := err.(*ChainError)
	require.True(t, ok)
	assert.Equal(t, ErrValidationError, ce.Kind)
}

func TestContractHandleDecodeLogsMatchesKnownEvent(t *testing.T) {
	handle, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, "")
	require.NoError(t, err)

	transferSig := handle.ABI.Events["Transfer"].ID
	from := common.HexToHash("0x000000000000000000000000000000000000000000000000000000000000aa")
	to := common.HexToHash("0x000000000000000000000000000000000000000000000000000000000000bb")
	tokenID := common.BigToHash(big.NewInt(7))

	log := &types.Log{
		Topics: []common.Hash{transferSig, from, to, tokenID},
	}

	decoded := handle.DecodeLogs([]*types.Log{log})
	require.Len(t, decoded, 1)
	assert.Equal(t, "Transfer", decoded[0].Event)
}

func TestContractHandleDecodeLogsDropsUnknownEvent(t *testing.T) {
	handle, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, "")
	require.NoError(t, err)

	unknownSig := crypto.Keccak256Hash([]byte("SomeOtherEvent(address)"))
	log := &types.Log{Topics: []common.Hash{unknownSig}}

	decoded := handle.DecodeLogs([]*types.Log{log})
	assert.Empty(t, decoded)
}

func TestContractHandleDecodeLogsSkipsEmptyTopics(t *testing.T) {
	handle, err := LoadContractHandle(common.HexToAddress("0x1"), XPContract, "")
	require.NoError(t, err)

	decoded := handle.DecodeLogs([]*types.Log{{Topics: nil}})
	assert.Empty(t, decoded)
}

// Package chainadapter implements the transaction submission core for the
// reward orchestrator: nonce serialization, rate limiting, fee selection,
// gas estimation, simulation, signing, broadcast and receipt polling against
// a single EVM-compatible chain.
package chainadapter

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxState is the lifecycle state of a submitted transaction.
type TxState string

const (
	TxStatePending   TxState = "Pending"
	TxStateConfirmed TxState = "Confirmed"
	TxStateFailed    TxState = "Failed"
	TxStateNotFound  TxState = "NotFound"
)

// ErrorKind classifies why a submission did not reach a clean Confirmed
// outcome. Values are exclusive and stable; see the error taxonomy.
type ErrorKind string

const (
	ErrNonceTooLow            ErrorKind = "NonceTooLow"
	ErrUnderpricedReplacement ErrorKind = "UnderpricedReplacement"
	ErrAlreadyKnown           ErrorKind = "AlreadyKnown"
	ErrRateLimited            ErrorKind = "RateLimited"
	ErrInsufficientFunds      ErrorKind = "InsufficientFunds"
	ErrGasLimitExceeded       ErrorKind = "GasLimitExceeded"
	ErrContractRevert         ErrorKind = "ContractRevert"
	ErrOutOfGasOrRevert       ErrorKind = "OutOfGasOrRevert"
	ErrReceiptTimeout         ErrorKind = "ReceiptTimeout"
	ErrPermissionError        ErrorKind = "PermissionError"
	ErrValidationError        ErrorKind = "ValidationError"
	ErrNetworkTimeout         ErrorKind = "NetworkTimeout"
	ErrConnectionError        ErrorKind = "ConnectionError"
	ErrUnexpectedError        ErrorKind = "UnexpectedError"
)

// Retryable reports whether the façade may retry an operation that failed
// with this ErrorKind, per the §7 retry table.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrNonceTooLow, ErrRateLimited, ErrNetworkTimeout, ErrConnectionError:
		return true
	default:
		return false
	}
}

// FeeKind distinguishes the two fee-market shapes a FeeProfile can carry.
type FeeKind int

const (
	FeeLegacy FeeKind = iota
	FeeEip1559
)

// FeeProfile is a tagged value: either a Legacy gasPrice or an EIP-1559
// baseFee/priorityFee/maxFee triple. Only the fields matching Kind are
// meaningful.
type FeeProfile struct {
	Kind           FeeKind
	GasPrice       *big.Int // Legacy
	BaseFee        *big.Int // Eip1559
	MaxPriorityFee *big.Int // Eip1559
	MaxFee         *big.Int // Eip1559
}

func (f FeeProfile) IsEip1559() bool { return f.Kind == FeeEip1559 }

// TxRequest is a built, unsigned transaction ready for signing.
type TxRequest struct {
	ChainID  *big.Int
	From     common.Address
	To       common.Address
	Data     []byte
	GasLimit uint64
	Fee      FeeProfile
	Nonce    uint64
	Value    *big.Int // always zero for this orchestrator's contract calls
}

// DecodedLog is one successfully-matched contract event from a receipt.
type DecodedLog struct {
	Event string
	Args  map[string]interface{}
}

// TxRecord is the durable (in-process) ledger entry for one transaction,
// keyed by hash.
type TxRecord struct {
	Hash         common.Hash
	Address      common.Address // logical subject: reward recipient, or signer for admin calls
	Function     string
	State        TxState
	ErrorKind    ErrorKind // empty when none
	SubmittedAt  int64     // unix seconds
	MinedAt      int64     // unix seconds, zero until mined
	BlockNumber  uint64
	GasUsed      uint64
	GasLimit     uint64
	Fee          FeeProfile
	Nonce        uint64
	DecodedLogs  []DecodedLog
}

// DurationMs returns (MinedAt-SubmittedAt)*1000, or zero if not yet mined.
func (r *TxRecord) DurationMs() int64 {
	if r.MinedAt == 0 || r.SubmittedAt == 0 {
		return 0
	}
	return (r.MinedAt - r.SubmittedAt) * 1000
}

// GasEfficiency returns GasUsed/GasLimit, or zero if GasLimit is unset.
func (r *TxRecord) GasEfficiency() float64 {
	if r.GasLimit == 0 {
		return 0
	}
	return float64(r.GasUsed) / float64(r.GasLimit)
}

// IsTerminal reports whether the record is in a state that §3 forbids
// re-mutating (aside from DecodedLogs on re-read).
func (r *TxRecord) IsTerminal() bool {
	return r.State == TxStateConfirmed || r.State == TxStateFailed
}

// nowUnix exists so call sites read naturally; kept as a var for testability.
var nowUnix = func() int64 { return time.Now().Unix() }

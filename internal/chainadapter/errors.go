package chainadapter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorClassification is the retry-policy axis kept from the teacher's
// ChainError design; ErrorKind (adapter.go) is the diagnostic axis attached
// to TxRecord and façade responses.
type ErrorClassification int

const (
	Retryable ErrorClassification = iota
	NonRetryable
	UserIntervention
)

func (ec ErrorClassification) String() string {
	switch ec {
	case Retryable:
		return "Retryable"
	case NonRetryable:
		return "NonRetryable"
	case UserIntervention:
		return "UserIntervention"
	default:
		return "Unknown"
	}
}

// ChainError wraps every error this package returns so callers can recover
// both a machine-stable Kind and a retry classification without re-parsing
// message text.
type ChainError struct {
	Kind           ErrorKind
	Message        string
	Classification ErrorClassification
	RetryAfter     *time.Duration
	Cause          error
}

func (e *ChainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ChainError) Unwrap() error { return e.Cause }

func newChainError(kind ErrorKind, message string, cause error) *ChainError {
	class := NonRetryable
	if kind.Retryable() {
		class = Retryable
	}
	if kind == ErrPermissionError {
		class = UserIntervention
	}
	return &ChainError{Kind: kind, Message: message, Classification: class, Cause: cause}
}

// NewValidationError builds a NonRetryable ChainError with Kind
// ErrValidationError, for callers outside this package that need to reject
// malformed input (e.g. the ledger's terminal-record invariant).
func NewValidationError(message string) *ChainError {
	return newChainError(ErrValidationError, message, nil)
}

var hashPattern = regexp.MustCompile(`0x[a-fA-F0-9]{64}`)
var minExpectedNoncePattern = regexp.MustCompile(`minimum expected nonce is (\d+)`)

// ExtractNonceHint parses "minimum expected nonce is K" out of an error
// string, per §4.1's handleError contract. ok is false if no such substring
// is present.
func ExtractNonceHint(errText string) (k uint64, ok bool) {
	m := minExpectedNoncePattern.FindStringSubmatch(errText)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractTxHash pulls a 64-hex-digit transaction hash out of an "already
// known"-style error message. Absence of such a substring means the caller
// must demote to ErrUnexpectedError (§9).
func ExtractTxHash(errText string) (string, bool) {
	m := hashPattern.FindString(errText)
	if m == "" {
		return "", false
	}
	return m, true
}

// ClassifyError converts a raw RPC/contract error into a ChainError by
// substring scanning the message, per §7. The substring table here is the
// authoritative classifier mirrored from the original implementation's
// string-matched error handling (re-architected as a single table-driven
// function instead of scattered exception catches).
func ClassifyError(err error) *ChainError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ChainError); ok {
		return ce
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "nonce too low"):
		return newChainError(ErrNonceTooLow, msg, err)
	case strings.Contains(lower, "replacement transaction underpriced"):
		return newChainError(ErrUnderpricedReplacement, msg, err)
	case strings.Contains(lower, "already known"):
		if _, ok := ExtractTxHash(msg); ok {
			return newChainError(ErrAlreadyKnown, msg, err)
		}
		return newChainError(ErrUnexpectedError, msg, err)
	case strings.Contains(lower, "429") || strings.Contains(lower, "too many requests"):
		return newChainError(ErrRateLimited, msg, err)
	case strings.Contains(lower, "insufficient funds"):
		return newChainError(ErrInsufficientFunds, msg, err)
	case strings.Contains(lower, "gas required exceeds allowance") || strings.Contains(lower, "intrinsic gas too low"):
		return newChainError(ErrGasLimitExceeded, msg, err)
	case strings.Contains(lower, "execution reverted") || strings.Contains(lower, "revert"):
		return newChainError(ErrContractRevert, msg, err)
	case strings.Contains(lower, "missing minter_role") || strings.Contains(lower, "missing default_admin_role") || strings.Contains(lower, "permission"):
		return newChainError(ErrPermissionError, msg, err)
	case strings.Contains(lower, "invalid address") || strings.Contains(lower, "non-positive") || strings.Contains(lower, "validation"):
		return newChainError(ErrValidationError, msg, err)
	case strings.Contains(lower, "timeout"):
		return newChainError(ErrNetworkTimeout, msg, err)
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") || strings.Contains(lower, "eof"):
		return newChainError(ErrConnectionError, msg, err)
	default:
		return newChainError(ErrUnexpectedError, msg, err)
	}
}

// IsRetryable reports whether err (any error, possibly a *ChainError) should
// be retried by the façade.
func IsRetryable(err error) bool {
	ce := ClassifyError(err)
	return ce != nil && ce.Classification == Retryable
}

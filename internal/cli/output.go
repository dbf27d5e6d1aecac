// Package cli is rewardctl's output discipline: every command writes
// exactly one line of JSON to stdout and routes logs to stderr, so the
// process is safe to wrap behind another service without stdout parsing
// breaking on stray log lines. The help and version commands, and a run
// with no command, print plain text instead.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
)

// Response is the JSON envelope every rewardctl command prints to stdout.
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      *Error      `json:"error,omitempty"`
	RequestID  string      `json:"request_id"`
	CliVersion string      `json:"cli_version"`
	DurationMs int64       `json:"duration_ms"`
}

// Error carries a machine-readable code and a human-readable message. Code
// is either one of chainadapter's ErrorKind values or one of the CLI-local
// codes below for problems that never reach the chain adapter.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an Error from a code and message.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CLI-local error codes, for failures before a façade call is even
// attempted (bad arguments, missing env vars, unreachable RPC endpoints).
const (
	ErrUsage         = "USAGE_ERROR"
	ErrConfiguration = "CONFIGURATION_ERROR"
	ErrDial          = "DIAL_ERROR"
)

// WriteJSON serializes v to single-line JSON and writes it to stdout.
//
// Output format:
//   - Single-line JSON written to stdout with trailing newline
//   - No indentation or pretty-printing
func WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	_, err = fmt.Fprintf(os.Stdout, "%s\n", data)
	if err != nil {
		return fmt.Errorf("failed to write JSON to stdout: %w", err)
	}

	return nil
}

// WriteLog writes a human-readable log message to stderr, keeping stdout
// reserved for the single JSON response.
func WriteLog(message string) error {
	_, err := fmt.Fprintf(os.Stderr, "%s\n", message)
	if err != nil {
		return fmt.Errorf("failed to write log to stderr: %w", err)
	}

	return nil
}

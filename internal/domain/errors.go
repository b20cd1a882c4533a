package domain

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

var (
	// ErrAccountNotFound is returned when an address holds no on-chain data. Not retriable.
	ErrAccountNotFound = errors.New("account not found")

	// ErrMalformedAccountData is returned when account bytes fail the size, padding or flag checks of a layout.
	ErrMalformedAccountData = errors.New("malformed account data")

	// ErrTransportFailure is returned when a fetch could not complete (network, timeout, RPC error).
	ErrTransportFailure = errors.New("transport failure")

	// ErrMarketMismatch is returned when on-chain market mints differ from the configured tokens.
	ErrMarketMismatch = errors.New("market mismatch")

	// ErrUnknownMarket is returned when a symbol is not configured.
	ErrUnknownMarket = errors.New("unknown market")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)

// NetworkError represents a transport-level failure that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "getAccountInfo", "dial", "read")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes every NetworkError match ErrTransportFailure.
func (e *NetworkError) Is(target error) bool {
	return target == ErrTransportFailure
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// AccountNotFoundError reports an address without on-chain data.
type AccountNotFoundError struct {
	Address solana.PublicKey
}

func (e *AccountNotFoundError) Error() string {
	return "account not found: " + e.Address.String()
}

func (e *AccountNotFoundError) Unwrap() error {
	return ErrAccountNotFound
}

func (e *AccountNotFoundError) IsRetriable() bool {
	return false
}

// MalformedDataError reports account bytes that do not match the expected layout.
// Address is zero when the error comes straight from a decoder; callers that
// know the account attach it with AtAccount.
type MalformedDataError struct {
	Address  solana.PublicKey
	Layout   string
	Expected int
	Actual   int
	Reason   string
}

func (e *MalformedDataError) Error() string {
	msg := "malformed " + e.Layout + " account"
	if !e.Address.IsZero() {
		msg += " " + e.Address.String()
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Expected != e.Actual {
		msg += fmt.Sprintf(" (expected %d bytes, got %d)", e.Expected, e.Actual)
	}
	return msg
}

func (e *MalformedDataError) Unwrap() error {
	return ErrMalformedAccountData
}

func (e *MalformedDataError) IsRetriable() bool {
	return false
}

// AtAccount attaches an account address to a MalformedDataError inside err.
// Other errors are returned unchanged.
func AtAccount(err error, address solana.PublicKey) error {
	var me *MalformedDataError
	if errors.As(err, &me) && me.Address.IsZero() {
		annotated := *me
		annotated.Address = address
		return &annotated
	}
	return err
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

package adapter

import (
	"github.com/team-renaissance/neo-wallet-adapter/pkg/errors"
)

// ErrorCode discriminates the failure kinds raised by the adapter.
type ErrorCode string

const (
	// CodeConnectFailed marks a failed session initiation or handshake.
	CodeConnectFailed ErrorCode = "connect_failed"
	// CodeAccountRetrieval marks a session without a derivable account.
	CodeAccountRetrieval ErrorCode = "account_retrieval_failed"
	// CodeDisconnectFailed marks a failed remote teardown. Non fatal,
	// surfaced through the error event only.
	CodeDisconnectFailed ErrorCode = "disconnect_failed"
	// CodeUnexpectedDisconnect marks a remote initiated teardown.
	CodeUnexpectedDisconnect ErrorCode = "unexpected_disconnect"
	// CodeNotConnected marks an invocation attempted without a session.
	CodeNotConnected ErrorCode = "not_connected"
)

// WalletError is a failure of one of the adapter's own kinds.
type WalletError struct {
	Code  ErrorCode
	msg   string
	cause error
}

func (e *WalletError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *WalletError) Unwrap() error {
	return e.cause
}

// NewWalletError builds a wallet error without an underlying cause.
func NewWalletError(code ErrorCode, msg string) *WalletError {
	return &WalletError{Code: code, msg: msg}
}

// wrapWalletError classifies a failure under the given code. A failure
// that already carries one of the adapter's own kinds is returned
// unchanged so it is never wrapped twice.
func wrapWalletError(code ErrorCode, msg string, cause error) error {
	var werr *WalletError
	if errors.As(cause, &werr) {
		return cause
	}
	return &WalletError{Code: code, msg: msg, cause: cause}
}

// IsWalletError reports whether err carries the given failure kind.
func IsWalletError(err error, code ErrorCode) bool {
	var werr *WalletError
	if !errors.As(err, &werr) {
		return false
	}
	return werr.Code == code
}

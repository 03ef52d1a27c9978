package transfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"syscall"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

// ErrorCategory represents the category of an error for handling purposes.
// No category is fatal: every error stays inside the task or handler that
// produced it.
type ErrorCategory int

const (
	// ErrorCategoryNone is returned for a nil error
	ErrorCategoryNone ErrorCategory = iota
	// ErrorCategoryDecode indicates a malformed or mistyped message
	ErrorCategoryDecode
	// ErrorCategoryTimeout indicates an expired deadline; for discovery and
	// datagram transfers this is a normal control-flow signal
	ErrorCategoryTimeout
	// ErrorCategoryConnection indicates a connect, read or write failure
	ErrorCategoryConnection
	// ErrorCategoryCancelled indicates the owning context was cancelled
	ErrorCategoryCancelled
	// ErrorCategoryUnknown covers everything else
	ErrorCategoryUnknown
)

// String returns a string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryNone:
		return "none"
	case ErrorCategoryDecode:
		return "decode"
	case ErrorCategoryTimeout:
		return "timeout"
	case ErrorCategoryConnection:
		return "connection"
	case ErrorCategoryCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// CategorizeError determines the category of an error
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	// Cancellation first: context.DeadlineExceeded also reports Timeout().
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryCancelled
	}

	if protocol.IsDecodeError(err) {
		return ErrorCategoryDecode
	}

	if IsTimeout(err) {
		return ErrorCategoryTimeout
	}

	switch {
	case errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return ErrorCategoryConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorCategoryConnection
	}

	return ErrorCategoryUnknown
}

// IsTimeout reports whether err is an expired I/O deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// LogError logs an error with its category at a level matching how
// unusual it is. Decode failures, timeouts and cancellations are expected
// and only show up at debug level.
func LogError(msg string, err error, args ...any) {
	category := CategorizeError(err)
	fields := append([]any{"error", err, "category", category.String()}, args...)

	switch category {
	case ErrorCategoryNone:
		return
	case ErrorCategoryDecode, ErrorCategoryTimeout, ErrorCategoryCancelled:
		slog.Debug(msg, fields...)
	case ErrorCategoryConnection:
		slog.Warn(msg, fields...)
	default:
		slog.Error(msg, fields...)
	}
}

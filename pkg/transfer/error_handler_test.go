package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCategory
	}{
		{"nil", nil, ErrorCategoryNone},
		{"bad magic", protocol.ErrBadMagicCookie, ErrorCategoryDecode},
		{"wrapped truncated", fmt.Errorf("offer: %w", protocol.ErrTruncatedBuffer), ErrorCategoryDecode},
		{"malformed stream request", protocol.ErrMalformedStreamRequest, ErrorCategoryDecode},
		{"deadline", os.ErrDeadlineExceeded, ErrorCategoryTimeout},
		{"net timeout", &net.OpError{Op: "read", Net: "udp", Err: os.ErrDeadlineExceeded}, ErrorCategoryTimeout},
		{"context cancelled", context.Canceled, ErrorCategoryCancelled},
		{"context deadline", context.DeadlineExceeded, ErrorCategoryCancelled},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, ErrorCategoryConnection},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), ErrorCategoryConnection},
		{"closed", net.ErrClosed, ErrorCategoryConnection},
		{"unexpected eof", io.ErrUnexpectedEOF, ErrorCategoryConnection},
		{"other", errors.New("something odd"), ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrorCategoryNone, "none"},
		{ErrorCategoryDecode, "decode"},
		{ErrorCategoryTimeout, "timeout"},
		{ErrorCategoryConnection, "connection"},
		{ErrorCategoryCancelled, "cancelled"},
		{ErrorCategoryUnknown, "unknown"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.category.String())
	}
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(os.ErrDeadlineExceeded))
	assert.True(t, IsTimeout(fmt.Errorf("wrapped: %w", os.ErrDeadlineExceeded)))
	assert.False(t, IsTimeout(errors.New("nope")))
	assert.False(t, IsTimeout(nil))
}

func TestLogError_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		LogError("nil error", nil)
		LogError("decode", protocol.ErrBadMagicCookie, "remote", "127.0.0.1:1")
		LogError("unknown", errors.New("boom"))
	})
}

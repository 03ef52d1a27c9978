package protocol

import "errors"

// Decode failures. None of them is fatal: callers drop the packet or
// connection and keep listening.
var (
	ErrTruncatedBuffer        = errors.New("protocol: truncated buffer")
	ErrBadMagicCookie         = errors.New("protocol: bad magic cookie")
	ErrUnexpectedMessageType  = errors.New("protocol: unexpected message type")
	ErrSegmentOutOfRange      = errors.New("protocol: segment index out of range")
	ErrMalformedStreamRequest = errors.New("protocol: malformed stream request")
)

// IsDecodeError reports whether err is one of the codec's decode failures.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrTruncatedBuffer) ||
		errors.Is(err, ErrBadMagicCookie) ||
		errors.Is(err, ErrUnexpectedMessageType) ||
		errors.Is(err, ErrSegmentOutOfRange) ||
		errors.Is(err, ErrMalformedStreamRequest)
}

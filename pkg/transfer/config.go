package transfer

import (
	"errors"
	"time"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

// TransferConfig holds the tunables shared by the transfer servers and the
// client-side transfer tasks.
type TransferConfig struct {
	// Datagram segmentation
	SegmentSize int `yaml:"segment_size"` // filler bytes per payload message

	// Quiet period after which a datagram transfer is considered finished.
	// This is a heuristic: a slow server looks the same as a finished one.
	QuietPeriod time.Duration `yaml:"quiet_period"`

	// Timeouts
	RequestTimeout time.Duration `yaml:"request_timeout"` // server wait for the stream request line
	DialTimeout    time.Duration `yaml:"dial_timeout"`    // client stream connect

	// Buffers
	ReadBufferSize int `yaml:"read_buffer_size"`

	// Handler admission limit per server channel, 0 means unbounded.
	MaxHandlers int `yaml:"max_handlers"`

	FillerByte byte `yaml:"filler_byte"`
}

// Segment size bounds. The maximum keeps a payload message inside one UDP
// datagram.
const (
	DefaultSegmentSize = 1024
	MinSegmentSize     = 1
	MaxSegmentSize     = 65507 - protocol.PayloadHeaderSize
)

const (
	DefaultQuietPeriod    = time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultDialTimeout    = 5 * time.Second
	DefaultReadBufferSize = 64 * 1024
	DefaultFillerByte     = 'a'
)

// DefaultTransferConfig returns a configuration with sensible defaults
func DefaultTransferConfig() *TransferConfig {
	return &TransferConfig{
		SegmentSize:    DefaultSegmentSize,
		QuietPeriod:    DefaultQuietPeriod,
		RequestTimeout: DefaultRequestTimeout,
		DialTimeout:    DefaultDialTimeout,
		ReadBufferSize: DefaultReadBufferSize,
		MaxHandlers:    0,
		FillerByte:     DefaultFillerByte,
	}
}

// Validate checks if the configuration values are valid
func (tc *TransferConfig) Validate() error {
	if tc.SegmentSize < MinSegmentSize {
		return errors.New("segment_size must be positive")
	}
	if tc.SegmentSize > MaxSegmentSize {
		return errors.New("segment_size does not fit in a single datagram")
	}
	if tc.QuietPeriod <= 0 {
		return errors.New("quiet_period must be positive")
	}
	if tc.RequestTimeout < 0 {
		return errors.New("request_timeout cannot be negative")
	}
	if tc.DialTimeout < 0 {
		return errors.New("dial_timeout cannot be negative")
	}
	if tc.ReadBufferSize <= 0 {
		return errors.New("read_buffer_size must be positive")
	}
	if tc.MaxHandlers < 0 {
		return errors.New("max_handlers cannot be negative")
	}
	return nil
}

package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTransferConfig(t *testing.T) {
	config := DefaultTransferConfig()

	if config == nil {
		t.Fatal("DefaultTransferConfig() returned nil")
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid, but got error: %v", err)
	}

	if config.SegmentSize != DefaultSegmentSize {
		t.Errorf("Expected SegmentSize to be %d, got %d", DefaultSegmentSize, config.SegmentSize)
	}

	if config.QuietPeriod != time.Second {
		t.Errorf("Expected QuietPeriod to be 1s, got %v", config.QuietPeriod)
	}

	if config.MaxHandlers != 0 {
		t.Errorf("Expected handlers to be unbounded by default, got %d", config.MaxHandlers)
	}
}

func TestTransferConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*TransferConfig)
		errorMsg string
	}{
		{"valid config", func(*TransferConfig) {}, ""},
		{"zero segment size", func(c *TransferConfig) { c.SegmentSize = 0 }, "segment_size must be positive"},
		{"segment larger than a datagram", func(c *TransferConfig) { c.SegmentSize = MaxSegmentSize + 1 }, "segment_size does not fit in a single datagram"},
		{"zero quiet period", func(c *TransferConfig) { c.QuietPeriod = 0 }, "quiet_period must be positive"},
		{"negative request timeout", func(c *TransferConfig) { c.RequestTimeout = -time.Second }, "request_timeout cannot be negative"},
		{"negative dial timeout", func(c *TransferConfig) { c.DialTimeout = -time.Second }, "dial_timeout cannot be negative"},
		{"zero read buffer", func(c *TransferConfig) { c.ReadBufferSize = 0 }, "read_buffer_size must be positive"},
		{"negative max handlers", func(c *TransferConfig) { c.MaxHandlers = -1 }, "max_handlers cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultTransferConfig()
			tt.mutate(config)
			err := config.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.errorMsg)
		})
	}
}

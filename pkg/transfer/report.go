package transfer

import (
	"time"
)

// Report is the client-side outcome of one transfer task. Failed tasks
// still produce a report, carrying whatever was received before the error.
type Report struct {
	RoundID    string
	Kind       Kind
	Index      int
	Elapsed    time.Duration
	Bytes      uint64
	Throughput float64 // bits per second

	// Datagram only. Active runs from the request to the last accepted
	// payload; Elapsed also includes the closing quiet period.
	Active           time.Duration
	SegmentsExpected uint64
	SegmentsReceived uint64
	PercentReceived  float64
	// NoData marks a datagram task that saw no payload at all. Its
	// PercentReceived is still 100.
	NoData bool

	Err error
}

// Throughput returns bytes*8 over elapsed seconds, or 0 when no time passed.
func Throughput(bytes uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) * 8 / elapsed.Seconds()
}

// PercentReceived returns the share of expected segments that arrived. If
// nothing was expected the transfer counts as complete.
func PercentReceived(received, expected uint64) float64 {
	if expected == 0 {
		return 100
	}
	return 100 * float64(received) / float64(expected)
}

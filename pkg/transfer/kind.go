package transfer

import (
	"net"
	"time"
)

// Kind identifies the transport a transfer runs over.
type Kind int

const (
	KindStream Kind = iota
	KindDatagram
)

func (k Kind) String() string {
	switch k {
	case KindStream:
		return "TCP"
	case KindDatagram:
		return "UDP"
	default:
		return "unknown"
	}
}

// ServedEvent describes one request handled by a transfer server.
type ServedEvent struct {
	Kind     Kind
	Remote   net.Addr
	FileSize uint64
	Bytes    uint64 // filler bytes written
	Segments uint64 // payload messages sent, datagram only
	Duration time.Duration
	Err      error
}

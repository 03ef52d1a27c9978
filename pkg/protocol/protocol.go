// Package protocol implements the speed test wire format: the binary Offer,
// Request and Payload messages that share a magic-cookie header, and the
// newline-terminated decimal request used on stream connections.
package protocol

import "fmt"

// MagicCookie prefixes every binary message.
const MagicCookie uint32 = 0xabcddcba

type MessageType uint8

const (
	TypeOffer   MessageType = 0x02
	TypeRequest MessageType = 0x03
	TypePayload MessageType = 0x04
)

// Fixed sizes, in bytes, of each binary message without its variable part.
const (
	HeaderSize        = 5
	OfferSize         = HeaderSize + 2 + 2
	RequestSize       = HeaderSize + 8
	PayloadHeaderSize = HeaderSize + 8 + 8
)

func (t MessageType) String() string {
	switch t {
	case TypeOffer:
		return "offer"
	case TypeRequest:
		return "request"
	case TypePayload:
		return "payload"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(t))
	}
}

// Offer is broadcast by a server to advertise where it accepts transfers.
type Offer struct {
	UDPPort uint16
	TCPPort uint16
}

// Request declares how many filler bytes a datagram transfer wants.
type Request struct {
	FileSize uint64
}

// Payload carries one segment of a datagram transfer.
type Payload struct {
	TotalSegments  uint64
	CurrentSegment uint64
	Data           []byte
}

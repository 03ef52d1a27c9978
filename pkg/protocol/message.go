package protocol

import (
	"encoding/binary"
	"fmt"
)

// Message layouts (big-endian):
//
//	offer:   [magic:4][type:1][udp_port:2][tcp_port:2]
//	request: [magic:4][type:1][file_size:8]
//	payload: [magic:4][type:1][total:8][current:8][data:N]

func appendHeader(dst []byte, t MessageType) []byte {
	dst = binary.BigEndian.AppendUint32(dst, MagicCookie)
	return append(dst, byte(t))
}

// checkHeader validates length first, so a short buffer is always reported
// as truncated no matter what its first bytes look like.
func checkHeader(b []byte, want MessageType, minSize int) error {
	if len(b) < minSize {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncatedBuffer, want, minSize, len(b))
	}
	if magic := binary.BigEndian.Uint32(b[0:4]); magic != MagicCookie {
		return fmt.Errorf("%w: 0x%08x", ErrBadMagicCookie, magic)
	}
	if got := MessageType(b[4]); got != want {
		return fmt.Errorf("%w: want %s, got %s", ErrUnexpectedMessageType, want, got)
	}
	return nil
}

// PeekType returns the message type of a buffer with a valid header.
func PeekType(b []byte) (MessageType, error) {
	if len(b) < HeaderSize {
		return 0, ErrTruncatedBuffer
	}
	if binary.BigEndian.Uint32(b[0:4]) != MagicCookie {
		return 0, ErrBadMagicCookie
	}
	return MessageType(b[4]), nil
}

func (o Offer) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypeOffer)
	dst = binary.BigEndian.AppendUint16(dst, o.UDPPort)
	return binary.BigEndian.AppendUint16(dst, o.TCPPort)
}

func (o Offer) Encode() []byte {
	return o.AppendTo(make([]byte, 0, OfferSize))
}

func DecodeOffer(b []byte) (Offer, error) {
	if err := checkHeader(b, TypeOffer, OfferSize); err != nil {
		return Offer{}, err
	}
	return Offer{
		UDPPort: binary.BigEndian.Uint16(b[5:7]),
		TCPPort: binary.BigEndian.Uint16(b[7:9]),
	}, nil
}

func (r Request) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypeRequest)
	return binary.BigEndian.AppendUint64(dst, r.FileSize)
}

func (r Request) Encode() []byte {
	return r.AppendTo(make([]byte, 0, RequestSize))
}

func DecodeRequest(b []byte) (Request, error) {
	if err := checkHeader(b, TypeRequest, RequestSize); err != nil {
		return Request{}, err
	}
	return Request{FileSize: binary.BigEndian.Uint64(b[5:13])}, nil
}

// EncodedLen is the size of the encoded payload message.
func (p Payload) EncodedLen() int {
	return PayloadHeaderSize + len(p.Data)
}

func (p Payload) AppendTo(dst []byte) []byte {
	dst = appendHeader(dst, TypePayload)
	dst = binary.BigEndian.AppendUint64(dst, p.TotalSegments)
	dst = binary.BigEndian.AppendUint64(dst, p.CurrentSegment)
	return append(dst, p.Data...)
}

func (p Payload) Encode() []byte {
	return p.AppendTo(make([]byte, 0, p.EncodedLen()))
}

// DecodePayload decodes a payload message. The returned Data aliases b.
func DecodePayload(b []byte) (Payload, error) {
	if err := checkHeader(b, TypePayload, PayloadHeaderSize); err != nil {
		return Payload{}, err
	}
	p := Payload{
		TotalSegments:  binary.BigEndian.Uint64(b[5:13]),
		CurrentSegment: binary.BigEndian.Uint64(b[13:21]),
		Data:           b[PayloadHeaderSize:],
	}
	if p.CurrentSegment >= p.TotalSegments {
		return Payload{}, fmt.Errorf("%w: segment %d of %d", ErrSegmentOutOfRange, p.CurrentSegment, p.TotalSegments)
	}
	return p, nil
}

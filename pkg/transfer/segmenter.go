package transfer

import (
	"fmt"
	"io"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

// SegmentCount returns ceil(fileSize / segmentSize).
func SegmentCount(fileSize uint64, segmentSize int) uint64 {
	if fileSize == 0 {
		return 0
	}
	return (fileSize-1)/uint64(segmentSize) + 1
}

// Segmenter splits a filler payload of a given size into payload messages,
// in increasing segment order. The last segment carries the remainder.
type Segmenter struct {
	fileSize    uint64
	segmentSize uint64
	total       uint64
	current     uint64
	sent        uint64
	filler      []byte
}

func NewSegmenter(fileSize uint64, segmentSize int, fill byte) (*Segmenter, error) {
	if segmentSize < MinSegmentSize || segmentSize > MaxSegmentSize {
		return nil, fmt.Errorf("segment size must be between %d and %d", MinSegmentSize, MaxSegmentSize)
	}

	block := uint64(segmentSize)
	if fileSize < block {
		block = fileSize
	}

	return &Segmenter{
		fileSize:    fileSize,
		segmentSize: uint64(segmentSize),
		total:       SegmentCount(fileSize, segmentSize),
		filler:      FillerBlock(fill, int(block)),
	}, nil
}

// Total is the number of payload messages the segmenter produces.
func (s *Segmenter) Total() uint64 {
	return s.total
}

// Next returns the next payload message, or io.EOF once every segment has
// been produced. The returned Data is shared between calls and must not be
// modified.
func (s *Segmenter) Next() (protocol.Payload, error) {
	if s.current >= s.total {
		return protocol.Payload{}, io.EOF
	}

	n := min(s.segmentSize, s.fileSize-s.sent)
	p := protocol.Payload{
		TotalSegments:  s.total,
		CurrentSegment: s.current,
		Data:           s.filler[:n],
	}
	s.current++
	s.sent += n
	return p, nil
}

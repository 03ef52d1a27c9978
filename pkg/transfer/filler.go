package transfer

import (
	"bytes"
	"io"
)

// FillerBlock returns n copies of fill.
func FillerBlock(fill byte, n int) []byte {
	return bytes.Repeat([]byte{fill}, n)
}

// WriteFiller writes exactly n filler bytes to w in blocks of at most
// blockSize bytes. It returns the number of bytes written.
func WriteFiller(w io.Writer, n uint64, fill byte, blockSize int) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	if uint64(blockSize) > n {
		blockSize = int(n)
	}
	block := FillerBlock(fill, blockSize)

	var written uint64
	for written < n {
		chunk := block
		if remaining := n - written; remaining < uint64(len(chunk)) {
			chunk = chunk[:remaining]
		}
		m, err := w.Write(chunk)
		written += uint64(m)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

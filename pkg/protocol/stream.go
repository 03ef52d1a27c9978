package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// maxStreamRequestLen bounds the textual request: 20 digits for a uint64,
// a newline, and room for stray whitespace.
const maxStreamRequestLen = 32

// WriteStreamRequest sends the stream-channel request: the size in decimal
// ASCII followed by a single newline.
func WriteStreamRequest(w io.Writer, fileSize uint64) error {
	buf := strconv.AppendUint(make([]byte, 0, 21), fileSize, 10)
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write stream request: %w", err)
	}
	return nil
}

// ReadStreamRequest reads bytes up to the first newline and parses them as a
// decimal file size. Nothing past the newline is consumed from r.
func ReadStreamRequest(r *bufio.Reader) (uint64, error) {
	line := make([]byte, 0, maxStreamRequestLen)
	for {
		c, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: connection closed before newline", ErrMalformedStreamRequest)
			}
			return 0, fmt.Errorf("read stream request: %w", err)
		}
		if c == '\n' {
			break
		}
		if len(line) == maxStreamRequestLen {
			return 0, fmt.Errorf("%w: request longer than %d bytes", ErrMalformedStreamRequest, maxStreamRequestLen)
		}
		line = append(line, c)
	}

	text := string(bytes.TrimSpace(line))
	size, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedStreamRequest, text)
	}
	return size, nil
}

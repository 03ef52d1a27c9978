package transfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/rescp17/lanSpeedTest/pkg/concurrency"
	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

// requestBufferSize leaves room for oversized junk so it is read whole and
// rejected instead of being split across reads.
const requestBufferSize = 2048

// DatagramServer answers binary Request messages with a burst of Payload
// messages. Sends are fire-and-forget: no pacing, no acknowledgement, no
// retransmission.
type DatagramServer struct {
	config   *TransferConfig
	limiter  *concurrency.Limiter
	OnServed func(ServedEvent) // optional, called once per request
}

func NewDatagramServer(config *TransferConfig) *DatagramServer {
	return &DatagramServer{
		config:  config,
		limiter: concurrency.NewLimiter(config.MaxHandlers),
	}
}

// Serve reads requests from conn until ctx is cancelled. Each valid request
// is answered from its own goroutine through the same socket.
func (s *DatagramServer) Serve(ctx context.Context, conn net.PacketConn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer s.limiter.Wait()

	buf := make([]byte, requestBufferSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			LogError("Datagram read failed", err)
			continue
		}

		req, err := protocol.DecodeRequest(buf[:n])
		if err != nil {
			LogError("Discarding datagram", err, "remote", addr, "size", n)
			continue
		}

		if err := s.limiter.TryGo(func() { s.sendSegments(ctx, conn, addr, req.FileSize) }); err != nil {
			slog.Warn("Dropping datagram request", "remote", addr, "file_size", req.FileSize, "error", err)
		}
	}
}

func (s *DatagramServer) sendSegments(ctx context.Context, conn net.PacketConn, addr net.Addr, fileSize uint64) {
	start := time.Now()
	event := ServedEvent{Kind: KindDatagram, Remote: addr, FileSize: fileSize}
	defer func() {
		event.Duration = time.Since(start)
		if s.OnServed != nil {
			s.OnServed(event)
		}
	}()

	segmenter, err := NewSegmenter(fileSize, s.config.SegmentSize, s.config.FillerByte)
	if err != nil {
		event.Err = err
		slog.Error("Cannot segment datagram transfer", "error", err)
		return
	}

	out := make([]byte, 0, protocol.PayloadHeaderSize+s.config.SegmentSize)
	var failed uint64
	var lastErr error
	for ctx.Err() == nil {
		payload, err := segmenter.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		out = payload.AppendTo(out[:0])
		if _, err := conn.WriteTo(out, addr); err != nil {
			if errors.Is(err, net.ErrClosed) {
				event.Err = err
				break
			}
			// Best effort: a dropped segment is just loss seen by the client.
			failed++
			lastErr = err
			continue
		}
		event.Segments++
		event.Bytes += uint64(len(payload.Data))
	}

	if failed > 0 {
		slog.Warn("Some segments could not be sent", "remote", addr, "failed", failed, "error", lastErr)
	}
	slog.Debug("Datagram transfer served", "remote", addr, "segments", event.Segments,
		"total_segments", segmenter.Total(), "bytes", event.Bytes, "duration", time.Since(start))
}

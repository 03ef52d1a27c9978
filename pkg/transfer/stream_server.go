package transfer

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/rescp17/lanSpeedTest/pkg/concurrency"
	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

const maxAcceptBackoff = time.Second

// StreamServer answers stream requests: it reads a newline-terminated
// decimal size from each accepted connection, writes that many filler bytes
// and closes the connection.
type StreamServer struct {
	config   *TransferConfig
	limiter  *concurrency.Limiter
	OnServed func(ServedEvent) // optional, called once per connection
}

func NewStreamServer(config *TransferConfig) *StreamServer {
	return &StreamServer{
		config:  config,
		limiter: concurrency.NewLimiter(config.MaxHandlers),
	}
}

// Serve accepts connections on ln until ctx is cancelled, handling each one
// in its own goroutine. It closes ln and waits for in-flight handlers before
// returning.
func (s *StreamServer) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.limiter.Wait()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			backoff = min(max(2*backoff, 5*time.Millisecond), maxAcceptBackoff)
			slog.Warn("Stream accept failed, retrying", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if err := s.limiter.Go(ctx, func() { s.handleConn(ctx, conn) }); err != nil {
			_ = conn.Close()
		}
	}
}

func (s *StreamServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	start := time.Now()
	event := ServedEvent{Kind: KindStream, Remote: conn.RemoteAddr()}
	defer func() {
		event.Duration = time.Since(start)
		if s.OnServed != nil {
			s.OnServed(event)
		}
	}()

	if s.config.RequestTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.config.RequestTimeout))
	}
	size, err := protocol.ReadStreamRequest(bufio.NewReaderSize(conn, 64))
	if err != nil {
		event.Err = err
		LogError("Failed to read stream request", err, "remote", event.Remote)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	event.FileSize = size

	written, err := WriteFiller(conn, size, s.config.FillerByte, s.config.ReadBufferSize)
	event.Bytes = written
	if err != nil {
		event.Err = err
		LogError("Stream transfer aborted", err, "remote", event.Remote, "written", written, "requested", size)
		return
	}

	slog.Debug("Stream transfer served", "remote", event.Remote, "bytes", written, "duration", time.Since(start))
}

package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// StreamTask downloads FileSize filler bytes over one TCP connection.
type StreamTask struct {
	Index    int
	Addr     string
	FileSize uint64
	Config   *transfer.TransferConfig
}

// Run never fails: connect and read errors end the task early and are
// recorded on the report next to whatever arrived before them.
func (t StreamTask) Run(ctx context.Context) transfer.Report {
	report := transfer.Report{Kind: transfer.KindStream, Index: t.Index}

	dialer := net.Dialer{Timeout: t.Config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		report.Err = err
		transfer.LogError("Stream task could not connect", err, "index", t.Index, "addr", t.Addr)
		return report
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := protocol.WriteStreamRequest(conn, t.FileSize); err != nil {
		report.Err = err
		transfer.LogError("Stream task could not send request", err, "index", t.Index)
		return report
	}

	start := time.Now()
	buf := make([]byte, t.Config.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		report.Bytes += uint64(n)
		if err != nil {
			if ctx.Err() != nil {
				report.Err = ctx.Err()
			} else if !errors.Is(err, io.EOF) {
				report.Err = err
				transfer.LogError("Stream task read ended with error", err, "index", t.Index, "bytes", report.Bytes)
			}
			break
		}
	}
	report.Elapsed = time.Since(start)
	report.Throughput = transfer.Throughput(report.Bytes, report.Elapsed)

	if report.Bytes != t.FileSize {
		slog.Warn("Stream transfer incomplete", "index", t.Index, "bytes", report.Bytes, "requested", t.FileSize)
	}
	return report
}

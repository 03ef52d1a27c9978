package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// socketBufferSize asks for a receive buffer large enough to absorb an
// unpaced burst. The kernel caps it at its configured maximum.
const socketBufferSize = 4 << 20

// DatagramTask requests FileSize filler bytes over UDP and counts the
// segments that arrive before the quiet period expires.
type DatagramTask struct {
	Index    int
	Addr     *net.UDPAddr
	FileSize uint64
	Config   *transfer.TransferConfig
}

// Run never fails. The transfer is considered over once no valid payload
// has arrived for QuietPeriod; malformed packets do not extend that window.
// Elapsed and Throughput cover the whole wait, quiet period included.
func (t DatagramTask) Run(ctx context.Context) transfer.Report {
	report := transfer.Report{Kind: transfer.KindDatagram, Index: t.Index}

	conn, err := net.ListenUDP(udpNetwork(t.Addr), nil)
	if err != nil {
		report.Err = fmt.Errorf("failed to open datagram socket: %w", err)
		report.NoData = true
		report.PercentReceived = transfer.PercentReceived(0, 0)
		slog.Error("Datagram task could not open socket", "index", t.Index, "error", err)
		return report
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.SetReadBuffer(socketBufferSize); err != nil {
		slog.Debug("Could not grow datagram receive buffer", "error", err)
	}

	if _, err := conn.WriteToUDP(protocol.Request{FileSize: t.FileSize}.Encode(), t.Addr); err != nil {
		report.Err = err
		transfer.LogError("Datagram task could not send request", err, "index", t.Index, "addr", t.Addr)
	}
	start := time.Now()

	var (
		seen       = make(map[uint64]struct{})
		lastValid  = start
		haveTotal  bool
		mismatched int
		discarded  int
	)
	buf := make([]byte, protocol.PayloadHeaderSize+transfer.MaxSegmentSize)
	if report.Err == nil {
		_ = conn.SetReadDeadline(lastValid.Add(t.Config.QuietPeriod))
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				if ctx.Err() != nil {
					report.Err = ctx.Err()
				} else if !transfer.IsTimeout(err) {
					report.Err = err
					transfer.LogError("Datagram task read ended with error", err, "index", t.Index)
				}
				break
			}

			payload, err := protocol.DecodePayload(buf[:n])
			if err != nil {
				discarded++
				continue
			}
			if !haveTotal {
				report.SegmentsExpected = payload.TotalSegments
				haveTotal = true
			} else if payload.TotalSegments != report.SegmentsExpected {
				mismatched++
				continue
			}

			lastValid = time.Now()
			_ = conn.SetReadDeadline(lastValid.Add(t.Config.QuietPeriod))

			if _, dup := seen[payload.CurrentSegment]; dup {
				continue
			}
			seen[payload.CurrentSegment] = struct{}{}
			report.Bytes += uint64(len(payload.Data))
		}
	}

	report.SegmentsReceived = uint64(len(seen))
	report.NoData = report.SegmentsReceived == 0
	report.Elapsed = time.Since(start)
	if !report.NoData {
		report.Active = lastValid.Sub(start)
	}
	report.Throughput = transfer.Throughput(report.Bytes, report.Elapsed)
	report.PercentReceived = transfer.PercentReceived(report.SegmentsReceived, report.SegmentsExpected)

	if discarded > 0 || mismatched > 0 {
		slog.Debug("Datagram task skipped packets", "index", t.Index, "malformed", discarded, "foreign_total", mismatched)
	}
	return report
}

// udpNetwork matches the local socket family to the server's address.
func udpNetwork(addr *net.UDPAddr) string {
	if addr != nil && addr.IP.To4() == nil {
		return "udp6"
	}
	return "udp4"
}

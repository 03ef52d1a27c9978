package client

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

func testTransferConfig() *transfer.TransferConfig {
	cfg := transfer.DefaultTransferConfig()
	cfg.QuietPeriod = 200 * time.Millisecond
	cfg.DialTimeout = time.Second
	return cfg
}

// fakeDatagramServer answers the first request it receives with the
// packets produced by script.
func fakeDatagramServer(t *testing.T, script func(req protocol.Request) [][]byte) *net.UDPAddr {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	return serveScript(t, conn, script)
}

func serveScript(t *testing.T, conn *net.UDPConn, script func(req protocol.Request) [][]byte) *net.UDPAddr {
	t.Helper()
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		req, err := protocol.DecodeRequest(buf[:n])
		if err != nil {
			return
		}
		for _, pkt := range script(req) {
			_, _ = conn.WriteToUDP(pkt, addr)
			// Loopback never drops, but keep the burst gentle for small buffers.
			time.Sleep(time.Millisecond)
		}
	}()
	return conn.LocalAddr().(*net.UDPAddr)
}

func payload(total, current uint64, size int) []byte {
	return protocol.Payload{TotalSegments: total, CurrentSegment: current, Data: make([]byte, size)}.Encode()
}

func TestDatagramTask_ToleratesReorderDuplicatesAndJunk(t *testing.T) {
	addr := fakeDatagramServer(t, func(req protocol.Request) [][]byte {
		assert.Equal(t, uint64(10_000), req.FileSize)
		return [][]byte{
			payload(10, 3, 1024),
			[]byte("garbage"),
			payload(10, 0, 1024),
			payload(10, 3, 1024), // duplicate
			protocol.Offer{UDPPort: 1, TCPPort: 2}.Encode(),
			payload(99, 5, 1024), // different transfer
			payload(10, 9, 784),
			payload(10, 1, 1024),
			payload(10, 2, 1024),
			payload(10, 4, 1024),
			payload(10, 5, 1024),
		}
	})

	task := DatagramTask{Index: 2, Addr: addr, FileSize: 10_000, Config: testTransferConfig()}
	report := task.Run(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, transfer.KindDatagram, report.Kind)
	assert.Equal(t, 2, report.Index)
	assert.Equal(t, uint64(10), report.SegmentsExpected)
	assert.Equal(t, uint64(7), report.SegmentsReceived)
	assert.InDelta(t, 70.0, report.PercentReceived, 1e-9)
	assert.Equal(t, uint64(6*1024+784), report.Bytes)
	assert.False(t, report.NoData)
	assert.Greater(t, report.Throughput, 0.0)
	assert.Greater(t, report.Active, time.Duration(0))
	assert.Less(t, report.Active, report.Elapsed)
}

func TestDatagramTask_ElapsedIncludesQuietPeriod(t *testing.T) {
	addr := fakeDatagramServer(t, func(protocol.Request) [][]byte {
		var pkts [][]byte
		for _, seg := range []uint64{4, 0, 8, 2, 6, 1, 9, 3, 7} {
			pkts = append(pkts, payload(10, seg, 100))
		}
		return pkts
	})

	cfg := testTransferConfig()
	cfg.QuietPeriod = 300 * time.Millisecond
	report := DatagramTask{Index: 1, Addr: addr, FileSize: 1000, Config: cfg}.Run(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, uint64(900), report.Bytes)
	assert.Equal(t, uint64(9), report.SegmentsReceived)
	assert.InDelta(t, 90.0, report.PercentReceived, 1e-9)
	assert.GreaterOrEqual(t, report.Elapsed, cfg.QuietPeriod)
	assert.InDelta(t, transfer.Throughput(report.Bytes, report.Elapsed), report.Throughput, 1e-6)
	// 900 bytes over at least 300ms stays under 24,000 bit/s.
	assert.LessOrEqual(t, report.Throughput, 24_000.0)
}

func TestDatagramTask_IPv6Server(t *testing.T) {
	conn, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.IPv6loopback})
	if err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	addr := serveScript(t, conn, func(protocol.Request) [][]byte {
		return [][]byte{payload(2, 0, 100), payload(2, 1, 50)}
	})

	report := DatagramTask{Index: 1, Addr: addr, FileSize: 150, Config: testTransferConfig()}.Run(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, uint64(150), report.Bytes)
	assert.InDelta(t, 100.0, report.PercentReceived, 1e-9)
}

func TestUDPNetwork(t *testing.T) {
	assert.Equal(t, "udp4", udpNetwork(&net.UDPAddr{IP: net.IPv4(192, 168, 1, 5)}))
	assert.Equal(t, "udp6", udpNetwork(&net.UDPAddr{IP: net.ParseIP("fe80::1")}))
}

func TestDatagramTask_NothingArrives(t *testing.T) {
	addr := fakeDatagramServer(t, func(protocol.Request) [][]byte { return nil })

	cfg := testTransferConfig()
	task := DatagramTask{Index: 1, Addr: addr, FileSize: 0, Config: cfg}
	report := task.Run(context.Background())

	require.NoError(t, report.Err)
	assert.True(t, report.NoData)
	assert.Equal(t, uint64(0), report.SegmentsExpected)
	assert.InDelta(t, 100.0, report.PercentReceived, 1e-9)
	assert.Zero(t, report.Throughput)
	assert.GreaterOrEqual(t, report.Elapsed, cfg.QuietPeriod)
}

func TestDatagramTask_JunkDoesNotExtendQuietPeriod(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		buf := make([]byte, 2048)
		_, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = conn.WriteToUDP([]byte("noise"), addr)
			}
		}
	}()

	cfg := testTransferConfig()
	task := DatagramTask{Index: 1, Addr: conn.LocalAddr().(*net.UDPAddr), FileSize: 100, Config: cfg}

	start := time.Now()
	report := task.Run(context.Background())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, report.NoData)
}

func TestDatagramTask_Cancelled(t *testing.T) {
	addr := fakeDatagramServer(t, func(protocol.Request) [][]byte { return nil })

	cfg := testTransferConfig()
	cfg.QuietPeriod = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	report := DatagramTask{Index: 1, Addr: addr, FileSize: 10, Config: cfg}.Run(ctx)
	assert.ErrorIs(t, report.Err, context.DeadlineExceeded)
	assert.True(t, report.NoData)
}

func TestStreamTask_ReceivesEverything(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server := transfer.NewStreamServer(transfer.DefaultTransferConfig())
	go func() { _ = server.Serve(ctx, ln) }()

	task := StreamTask{Index: 1, Addr: ln.Addr().String(), FileSize: 1_000_000, Config: testTransferConfig()}
	report := task.Run(context.Background())

	require.NoError(t, report.Err)
	assert.Equal(t, transfer.KindStream, report.Kind)
	assert.Equal(t, uint64(1_000_000), report.Bytes)
	assert.Greater(t, report.Elapsed, time.Duration(0))
	assert.InDelta(t, transfer.Throughput(report.Bytes, report.Elapsed), report.Throughput, 1e-6)
}

func TestStreamTask_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	report := StreamTask{Index: 3, Addr: addr, FileSize: 1000, Config: testTransferConfig()}.Run(context.Background())

	assert.Error(t, report.Err)
	assert.Equal(t, 3, report.Index)
	assert.Zero(t, report.Bytes)
	assert.Zero(t, report.Throughput)
}

func TestStreamTask_PeerClosesEarly(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		// Consume the request so closing sends FIN rather than RST.
		if _, err := protocol.ReadStreamRequest(bufio.NewReader(conn)); err != nil {
			return
		}
		_, _ = conn.Write(make([]byte, 500))
	}()

	report := StreamTask{Index: 1, Addr: ln.Addr().String(), FileSize: 1000, Config: testTransferConfig()}.Run(context.Background())

	assert.NoError(t, report.Err)
	assert.Equal(t, uint64(500), report.Bytes)
}

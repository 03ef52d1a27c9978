package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/lanSpeedTest/internal/app"
	clientevents "github.com/rescp17/lanSpeedTest/internal/app_events/client"
	"github.com/rescp17/lanSpeedTest/pkg/discovery"
	"github.com/rescp17/lanSpeedTest/pkg/server"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// MockDiscoverer hands out a fixed server, or blocks until cancelled when
// none is set.
type MockDiscoverer struct {
	Server *discovery.ServerInfo
	Err    error
	calls  int
}

func (m *MockDiscoverer) Discover(ctx context.Context) (discovery.ServerInfo, error) {
	m.calls++
	if m.Err != nil {
		return discovery.ServerInfo{}, m.Err
	}
	if m.Server == nil {
		<-ctx.Done()
		return discovery.ServerInfo{}, ctx.Err()
	}
	return *m.Server, nil
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, conn.Close())
	return port
}

// drain collects every UI message until the app closes the channel.
func drain(ch <-chan tea.Msg) <-chan []tea.Msg {
	out := make(chan []tea.Msg, 1)
	go func() {
		var msgs []tea.Msg
		for msg := range ch {
			msgs = append(msgs, msg)
		}
		out <- msgs
	}()
	return out
}

func TestApp_EndToEnd(t *testing.T) {
	discoveryPort := freeUDPPort(t)
	cfg := testTransferConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	srv := server.NewApp(server.Options{
		ListenHost:    "127.0.0.1",
		DiscoveryPort: discoveryPort,
		BroadcastAddr: "127.0.0.1",
		Interval:      50 * time.Millisecond,
	}, transfer.DefaultTransferConfig())
	serverCtx, stopServer := context.WithCancel(ctx)
	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Run(serverCtx) }()
	go func() {
		for range srv.UIMessages() {
		}
	}()

	client := NewApp(discovery.NewListener(discoveryPort, 200*time.Millisecond), cfg, &Options{
		FileSize:    100_000,
		NumStream:   1,
		NumDatagram: 1,
		Rounds:      1,
	})
	msgsCh := drain(client.UIMessages())

	require.NoError(t, client.Run(ctx))
	assert.Equal(t, app.LookingForServer, client.State())

	msgs := <-msgsCh
	var (
		states  []app.SessionState
		reports []transfer.Report
		round   *clientevents.RoundCompleteMsg
	)
	for _, msg := range msgs {
		switch m := msg.(type) {
		case clientevents.StateChangedMsg:
			states = append(states, m.State)
		case clientevents.ReportMsg:
			reports = append(reports, m.Report)
		case clientevents.RoundCompleteMsg:
			round = &m
		}
	}

	assert.Equal(t, []app.SessionState{app.Startup, app.LookingForServer, app.SpeedTest, app.LookingForServer}, states)
	require.Len(t, reports, 2)
	require.NotNil(t, round)
	require.Len(t, round.Reports, 2)
	assert.NotEmpty(t, round.RoundID)

	for _, r := range round.Reports {
		assert.Equal(t, round.RoundID, r.RoundID)
		assert.NoError(t, r.Err)
		switch r.Kind {
		case transfer.KindStream:
			assert.Equal(t, uint64(100_000), r.Bytes)
		case transfer.KindDatagram:
			assert.Equal(t, uint64(98), r.SegmentsExpected)
			assert.LessOrEqual(t, r.Bytes, uint64(100_000))
			assert.False(t, r.NoData)
		}
	}

	stopServer()
	select {
	case err := <-serverDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestApp_WaitsForConfiguration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	disc := &MockDiscoverer{}
	client := NewApp(disc, testTransferConfig(), nil)
	msgsCh := drain(client.UIMessages())

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, app.Startup, client.State())

	client.AppEvents() <- clientevents.ConfigureMsg{FileSize: 10, NumStream: 1}
	assert.Eventually(t, func() bool {
		return client.State() == app.LookingForServer
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("App did not shut down within 3 seconds")
	}
	<-msgsCh
}

func TestApp_ConfiguredRoundLimitStopsRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tcpPort := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	disc := &MockDiscoverer{Server: &discovery.ServerInfo{Addr: net.IPv4(127, 0, 0, 1)}}
	disc.Server.Offer.TCPPort = uint16(tcpPort)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewApp(disc, testTransferConfig(), nil)
	msgsCh := drain(client.UIMessages())

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	client.AppEvents() <- clientevents.ConfigureMsg{FileSize: 10, NumStream: 1, Rounds: 1}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("App kept running past its round limit")
	}
	require.NoError(t, ctx.Err())
	assert.Equal(t, app.LookingForServer, client.State())

	var rounds int
	for _, msg := range <-msgsCh {
		if _, ok := msg.(clientevents.RoundCompleteMsg); ok {
			rounds++
		}
	}
	assert.Equal(t, 1, rounds)
}

func TestApp_RejectsInvalidConfiguration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := NewApp(&MockDiscoverer{}, testTransferConfig(), nil)
	msgsCh := drain(client.UIMessages())

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	client.AppEvents() <- clientevents.ConfigureMsg{FileSize: 10, NumStream: -1}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, app.Startup, client.State())

	cancel()
	require.NoError(t, <-done)
	assert.NotEmpty(t, <-msgsCh)
}

func TestApp_UnreachableServerStillReports(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	tcpPort := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	disc := &MockDiscoverer{Server: &discovery.ServerInfo{
		Addr: net.IPv4(127, 0, 0, 1),
	}}
	disc.Server.Offer.TCPPort = uint16(tcpPort)
	disc.Server.Offer.UDPPort = uint16(freeUDPPort(t))

	client := NewApp(disc, testTransferConfig(), &Options{FileSize: 1000, NumStream: 2, NumDatagram: 1, Rounds: 2})
	msgsCh := drain(client.UIMessages())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.Run(ctx))

	var rounds int
	for _, msg := range <-msgsCh {
		if m, ok := msg.(clientevents.RoundCompleteMsg); ok {
			rounds++
			require.Len(t, m.Reports, 3)
			for _, r := range m.Reports {
				assert.Zero(t, r.Bytes)
			}
		}
	}
	assert.Equal(t, 2, rounds)
	assert.Equal(t, 2, disc.calls)
}

func TestApp_DiscoveryErrorIsRetried(t *testing.T) {
	disc := &MockDiscoverer{Err: errors.New("address in use")}
	client := NewApp(disc, testTransferConfig(), &Options{NumStream: 1})
	msgsCh := drain(client.UIMessages())

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	require.NoError(t, client.Run(ctx))

	assert.GreaterOrEqual(t, disc.calls, 2)
	assert.Equal(t, app.LookingForServer, client.State())
	<-msgsCh
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, Options{}.Validate())
	assert.NoError(t, Options{FileSize: 1, NumStream: 3, NumDatagram: 2, Rounds: 1}.Validate())
	assert.Error(t, Options{NumStream: -1}.Validate())
	assert.Error(t, Options{NumDatagram: -1}.Validate())
	assert.Error(t, Options{Rounds: -1}.Validate())
}

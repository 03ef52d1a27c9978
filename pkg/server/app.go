package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	appevents "github.com/rescp17/lanSpeedTest/internal/app_events"
	serverevents "github.com/rescp17/lanSpeedTest/internal/app_events/server"
	"github.com/rescp17/lanSpeedTest/pkg/discovery"
	"github.com/rescp17/lanSpeedTest/pkg/protocol"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// Options locate the server's sockets. Port 0 binds an ephemeral port; the
// offer always advertises the ports actually bound.
type Options struct {
	ListenHost    string
	TCPPort       int
	UDPPort       int
	DiscoveryPort int
	BroadcastAddr string
	Interval      time.Duration
	MDNS          bool
	MDNSName      string
}

// App runs the broadcaster, the stream acceptor and the datagram listener
// side by side.
type App struct {
	options    Options
	transfer   *transfer.TransferConfig
	announcers []discovery.Announcer
	uiMessages chan tea.Msg
}

// NewApp creates a new server application instance.
func NewApp(options Options, cfg *transfer.TransferConfig) *App {
	announcers := []discovery.Announcer{
		discovery.NewBroadcaster(options.BroadcastAddr, options.DiscoveryPort, options.Interval),
	}
	if options.MDNS {
		announcers = append(announcers, discovery.NewMDNSAdapter(options.MDNSName))
	}

	return &App{
		options:    options,
		transfer:   cfg,
		announcers: announcers,
		uiMessages: make(chan tea.Msg, 64),
	}
}

// UIMessages returns the channel for the UI to listen on for updates. It is
// closed when Run returns.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// Run binds both transfer sockets and serves until ctx is cancelled. A
// failure of one long-lived unit stops the others.
func (a *App) Run(ctx context.Context) error {
	defer close(a.uiMessages)

	ln, err := net.Listen("tcp4", net.JoinHostPort(a.options.ListenHost, strconv.Itoa(a.options.TCPPort)))
	if err != nil {
		return fmt.Errorf("failed to listen for streams: %w", err)
	}
	pc, err := net.ListenPacket("udp4", net.JoinHostPort(a.options.ListenHost, strconv.Itoa(a.options.UDPPort)))
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to listen for datagrams: %w", err)
	}

	offer := protocol.Offer{
		TCPPort: uint16(ln.Addr().(*net.TCPAddr).Port),
		UDPPort: uint16(pc.LocalAddr().(*net.UDPAddr).Port),
	}
	slog.Info("Server started", "tcp", ln.Addr(), "udp", pc.LocalAddr())
	a.notify(serverevents.ListeningMsg{
		Offer:           offer,
		StreamAddr:      ln.Addr().String(),
		DatagramAddr:    pc.LocalAddr().String(),
		BroadcastTarget: net.JoinHostPort(a.options.BroadcastAddr, strconv.Itoa(a.options.DiscoveryPort)),
		MDNS:            a.options.MDNS,
	})

	streams := transfer.NewStreamServer(a.transfer)
	streams.OnServed = a.served
	datagrams := transfer.NewDatagramServer(a.transfer)
	datagrams.OnServed = a.served

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return streams.Serve(ctx, ln)
	})
	g.Go(func() error {
		return datagrams.Serve(ctx, pc)
	})
	for _, announcer := range a.announcers {
		g.Go(func() error {
			return announcer.Announce(ctx, offer)
		})
	}

	if err := g.Wait(); err != nil {
		a.notify(appevents.ErrorMsg{Err: err})
		return err
	}
	slog.Info("Server stopped")
	return nil
}

func (a *App) served(event transfer.ServedEvent) {
	if event.Err != nil {
		slog.Info("Request ended early", "kind", event.Kind, "remote", event.Remote,
			"bytes", event.Bytes, "error", event.Err)
	} else {
		slog.Info("Request served", "kind", event.Kind, "remote", event.Remote,
			"bytes", event.Bytes, "segments", event.Segments, "duration", event.Duration)
	}
	a.notify(serverevents.ServedMsg{Event: event})
}

// notify never blocks: handlers must not wait on a slow UI.
func (a *App) notify(msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	default:
		slog.Debug("UI message dropped", "msg", fmt.Sprintf("%T", msg))
	}
}

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/lanSpeedTest/internal/app"
	appevents "github.com/rescp17/lanSpeedTest/internal/app_events"
	clientevents "github.com/rescp17/lanSpeedTest/internal/app_events/client"
	"github.com/rescp17/lanSpeedTest/pkg/discovery"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// discoveryRetryDelay is how long the client waits after a discovery
// failure other than a timeout, e.g. the port being taken.
const discoveryRetryDelay = time.Second

// Options are the speed test parameters.
type Options struct {
	FileSize    uint64
	NumStream   int
	NumDatagram int
	// Rounds stops Run after that many speed tests. Zero runs forever.
	Rounds int
}

func (o Options) Validate() error {
	if o.NumStream < 0 {
		return errors.New("number of stream connections cannot be negative")
	}
	if o.NumDatagram < 0 {
		return errors.New("number of datagram connections cannot be negative")
	}
	if o.Rounds < 0 {
		return errors.New("rounds cannot be negative")
	}
	return nil
}

// App is the speed test orchestrator. It cycles between looking for a
// server and testing against it until its context is cancelled.
type App struct {
	discoverer discovery.Discoverer
	transfer   *transfer.TransferConfig
	options    *Options
	state      *app.StateManager
	uiMessages chan tea.Msg            // App -> TUI
	appEvents  chan appevents.AppEvent // TUI -> App
}

// NewApp creates a client. When options is nil the app stays in Startup
// until a ConfigureMsg arrives on AppEvents.
func NewApp(discoverer discovery.Discoverer, cfg *transfer.TransferConfig, options *Options) *App {
	return &App{
		discoverer: discoverer,
		transfer:   cfg,
		options:    options,
		state:      app.NewStateManager(),
		uiMessages: make(chan tea.Msg, 32),
		appEvents:  make(chan appevents.AppEvent),
	}
}

// UIMessages returns the channel for the UI to listen on for updates. It is
// closed when Run returns.
func (a *App) UIMessages() <-chan tea.Msg {
	return a.uiMessages
}

// AppEvents returns a write-only channel for the TUI to send events to the app.
func (a *App) AppEvents() chan<- appevents.AppEvent {
	return a.appEvents
}

// State returns the current session state.
func (a *App) State() app.SessionState {
	return a.state.Current()
}

// Run drives the session state machine. It returns nil on cancellation or
// after the configured number of rounds.
func (a *App) Run(ctx context.Context) error {
	defer close(a.uiMessages)

	a.send(ctx, clientevents.StateChangedMsg{State: app.Startup})
	if a.options == nil {
		opts, err := a.waitForConfig(ctx)
		if err != nil {
			return nil
		}
		a.options = opts
	}
	if err := a.options.Validate(); err != nil {
		return fmt.Errorf("invalid speed test options: %w", err)
	}

	completed := 0
	for {
		if err := a.setState(ctx, app.LookingForServer); err != nil {
			return err
		}
		if a.options.Rounds > 0 && completed >= a.options.Rounds {
			slog.Info("All rounds completed", "rounds", completed)
			return nil
		}

		server, err := a.discover(ctx)
		if err != nil {
			return nil
		}
		a.send(ctx, clientevents.ServerFoundMsg{Server: server})
		slog.Info("Received offer", "server", server.Addr, "udp_port", server.Offer.UDPPort,
			"tcp_port", server.Offer.TCPPort, "source", server.Source, "interface", server.Interface)

		if err := a.setState(ctx, app.SpeedTest); err != nil {
			return err
		}
		a.runRound(ctx, server)
		completed++

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (a *App) waitForConfig(ctx context.Context) (*Options, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case event := <-a.appEvents:
			switch e := event.(type) {
			case clientevents.ConfigureMsg:
				opts := &Options{FileSize: e.FileSize, NumStream: e.NumStream, NumDatagram: e.NumDatagram, Rounds: e.Rounds}
				if err := opts.Validate(); err != nil {
					a.sendAndLogError(ctx, "Rejected configuration", err)
					continue
				}
				return opts, nil
			default:
				slog.Warn("Received unhandled app event", "event", event)
			}
		}
	}
}

// discover blocks until an offer arrives. Failures other than cancellation
// are reported and retried.
func (a *App) discover(ctx context.Context) (discovery.ServerInfo, error) {
	slog.Info("Client started, listening for offer requests...")
	for {
		server, err := a.discoverer.Discover(ctx)
		if err == nil {
			return server, nil
		}
		if ctx.Err() != nil {
			return discovery.ServerInfo{}, ctx.Err()
		}
		a.sendAndLogError(ctx, "Discovery failed", err)

		select {
		case <-ctx.Done():
			return discovery.ServerInfo{}, ctx.Err()
		case <-time.After(discoveryRetryDelay):
		}
	}
}

// runRound fans out every task and waits for all of them.
func (a *App) runRound(ctx context.Context, server discovery.ServerInfo) {
	roundID := uuid.New().String()
	opts := a.options
	start := time.Now()

	slog.Info("Starting speed test", "round", roundID, "server", server.Addr,
		"file_size", opts.FileSize, "tcp", opts.NumStream, "udp", opts.NumDatagram)
	a.send(ctx, clientevents.RoundStartedMsg{
		RoundID:     roundID,
		Server:      server,
		FileSize:    opts.FileSize,
		NumStream:   opts.NumStream,
		NumDatagram: opts.NumDatagram,
	})

	reports := make([]transfer.Report, opts.NumStream+opts.NumDatagram)
	var g errgroup.Group

	for i := range opts.NumStream {
		task := StreamTask{Index: i + 1, Addr: server.StreamAddr(), FileSize: opts.FileSize, Config: a.transfer}
		g.Go(func() error {
			reports[i] = a.finish(ctx, roundID, task.Run(ctx))
			return nil
		})
	}
	for i := range opts.NumDatagram {
		task := DatagramTask{Index: i + 1, Addr: server.DatagramAddr(), FileSize: opts.FileSize, Config: a.transfer}
		g.Go(func() error {
			reports[opts.NumStream+i] = a.finish(ctx, roundID, task.Run(ctx))
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	slog.Info("All transfers complete", "round", roundID, "duration", elapsed)
	a.send(ctx, clientevents.RoundCompleteMsg{RoundID: roundID, Reports: reports, Duration: elapsed})
}

func (a *App) finish(ctx context.Context, roundID string, report transfer.Report) transfer.Report {
	report.RoundID = roundID
	args := []any{"round", roundID, "kind", report.Kind, "index", report.Index,
		"elapsed", report.Elapsed, "bytes", report.Bytes, "bits_per_second", report.Throughput}
	if report.Kind == transfer.KindDatagram {
		args = append(args, "segments", report.SegmentsReceived, "expected", report.SegmentsExpected,
			"percent_received", report.PercentReceived, "no_data", report.NoData)
	}
	if report.Err != nil {
		args = append(args, "error", report.Err)
	}
	slog.Info("Transfer finished", args...)
	a.send(ctx, clientevents.ReportMsg{Report: report})
	return report
}

func (a *App) setState(ctx context.Context, next app.SessionState) error {
	if err := a.state.Transition(next); err != nil {
		return err
	}
	a.send(ctx, clientevents.StateChangedMsg{State: next})
	return nil
}

// send delivers msg unless ctx is cancelled first.
func (a *App) send(ctx context.Context, msg tea.Msg) {
	select {
	case a.uiMessages <- msg:
	case <-ctx.Done():
	}
}

// sendAndLogError is a helper function to both log an error and send it to the UI.
func (a *App) sendAndLogError(ctx context.Context, baseMessage string, err error) {
	slog.Error(baseMessage, "error", err)
	a.send(ctx, appevents.ErrorMsg{Err: fmt.Errorf("%s: %w", baseMessage, err)})
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rescp17/lanSpeedTest/internal/config"
	"github.com/rescp17/lanSpeedTest/pkg/client"
	"github.com/rescp17/lanSpeedTest/pkg/discovery"
	"github.com/rescp17/lanSpeedTest/pkg/server"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
	"github.com/rescp17/lanSpeedTest/pkg/ui"
)

const logFile = "debug.log"

type rootFlags struct {
	configPath    string
	logLevel      string
	noTUI         bool
	discoveryPort int
	broadcastAddr string
	segmentSize   int
	maxHandlers   int
	mdns          bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, newRootCmd()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags rootFlags
	cmd := &cobra.Command{
		Use:   "speedtest",
		Short: "A throughput tester for local networks",
		Long: "speedtest measures TCP and UDP throughput between two machines on the same LAN.\n" +
			"Run `speedtest server` on one machine and `speedtest client` on another; the client\n" +
			"finds the server through broadcast offers and tests against it repeatedly.",
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultPath(), "Path to the YAML config file")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVar(&flags.noTUI, "no-tui", false, "Print plain lines instead of the terminal UI")
	pf.IntVar(&flags.discoveryPort, "discovery-port", discovery.DefaultPort, "UDP port offers are broadcast to")
	pf.StringVar(&flags.broadcastAddr, "broadcast-addr", discovery.DefaultBroadcastAddr, "Address offers are sent to")
	pf.IntVar(&flags.segmentSize, "segment-size", 0, "Filler bytes per UDP payload message")
	pf.IntVar(&flags.maxHandlers, "max-handlers", 0, "Concurrent requests per channel, 0 for no limit")
	pf.BoolVar(&flags.mdns, "mdns", false, "Also use mDNS for announcing or finding the server")

	cmd.AddCommand(newServerCmd(&flags), newClientCmd(&flags))
	return cmd
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("discovery-port") {
		cfg.Discovery.Port = flags.discoveryPort
	}
	if changed("broadcast-addr") {
		cfg.Discovery.BroadcastAddr = flags.broadcastAddr
	}
	if changed("segment-size") {
		cfg.Transfer.SegmentSize = flags.segmentSize
	}
	if changed("max-handlers") {
		cfg.Transfer.MaxHandlers = flags.maxHandlers
	}
	if changed("mdns") {
		cfg.Discovery.MDNS = flags.mdns
	}
	return cfg, nil
}

// setupLogging sends slog output to stderr in headless mode and to
// debug.log when the terminal UI owns the screen.
func setupLogging(level string, tui bool) (io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if tui {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: lvl})))
	return closer, nil
}

// runTUI runs model until it quits and returns the app's error, if any.
func runTUI(model tea.Model) error {
	p := tea.NewProgram(model)
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("alas, there's been an error: %w", err)
	}
	return ui.Err(final)
}

// runHeadless prints the app's messages as plain lines until it stops.
func runHeadless(ctx context.Context, cmd *cobra.Command, app ui.AppController) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ui.Console(cmd.OutOrStdout(), app.UIMessages())
	}()
	err := app.Run(ctx)
	<-done
	return err
}

func newServerCmd(flags *rootFlags) *cobra.Command {
	var (
		listenHost string
		tcpPort    int
		udpPort    int
		name       string
		interval   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve filler data and broadcast offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			if changed("listen") {
				cfg.Server.ListenHost = listenHost
			}
			if changed("tcp-port") {
				cfg.Server.TCPPort = tcpPort
			}
			if changed("udp-port") {
				cfg.Server.UDPPort = udpPort
			}
			if changed("name") {
				cfg.Server.Name = name
			}
			if changed("interval") {
				cfg.Discovery.Interval = interval
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logs, err := setupLogging(cfg.LogLevel, !flags.noTUI)
			if err != nil {
				return err
			}
			defer logs.Close()

			app := server.NewApp(server.Options{
				ListenHost:    cfg.Server.ListenHost,
				TCPPort:       cfg.Server.TCPPort,
				UDPPort:       cfg.Server.UDPPort,
				DiscoveryPort: cfg.Discovery.Port,
				BroadcastAddr: cfg.Discovery.BroadcastAddr,
				Interval:      cfg.Discovery.Interval,
				MDNS:          cfg.Discovery.MDNS,
				MDNSName:      cfg.Server.Name,
			}, &cfg.Transfer)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if flags.noTUI {
				return runHeadless(ctx, cmd, app)
			}
			return runTUI(ui.NewServerModel(ctx, app))
		},
	}

	f := cmd.Flags()
	f.StringVar(&listenHost, "listen", "", "Local address to bind, empty for all interfaces")
	f.IntVar(&tcpPort, "tcp-port", config.DefaultTCPPort, "TCP port for stream transfers, 0 for any")
	f.IntVar(&udpPort, "udp-port", config.DefaultUDPPort, "UDP port for datagram transfers, 0 for any")
	f.StringVar(&name, "name", "", "mDNS instance name, defaults to the hostname")
	f.DurationVar(&interval, "interval", discovery.DefaultInterval, "Time between offers")
	return cmd
}

func newClientCmd(flags *rootFlags) *cobra.Command {
	var (
		size        uint64
		numStream   int
		numDatagram int
		rounds      int
		quietPeriod time.Duration
		pollTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Find a server and measure throughput against it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			changed := cmd.Flags().Changed
			if changed("size") {
				cfg.Client.FileSize = size
			}
			if changed("tcp") {
				cfg.Client.NumStream = numStream
			}
			if changed("udp") {
				cfg.Client.NumDatagram = numDatagram
			}
			if changed("rounds") {
				cfg.Client.Rounds = rounds
			}
			if changed("quiet-period") {
				cfg.Transfer.QuietPeriod = quietPeriod
			}
			if changed("poll-timeout") {
				cfg.Discovery.PollTimeout = pollTimeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logs, err := setupLogging(cfg.LogLevel, !flags.noTUI)
			if err != nil {
				return err
			}
			defer logs.Close()

			var discoverer discovery.Discoverer = discovery.NewListener(cfg.Discovery.Port, cfg.Discovery.PollTimeout)
			if cfg.Discovery.MDNS {
				discoverer = discovery.NewMDNSAdapter("")
			}

			// The form is shown unless the parameters came from the command line.
			askForParams := !flags.noTUI && !changed("size") && !changed("tcp") && !changed("udp")
			var opts *client.Options
			if !askForParams {
				opts = &client.Options{
					FileSize:    cfg.Client.FileSize,
					NumStream:   cfg.Client.NumStream,
					NumDatagram: cfg.Client.NumDatagram,
					Rounds:      cfg.Client.Rounds,
				}
			}
			app := client.NewApp(discoverer, &cfg.Transfer, opts)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if flags.noTUI {
				return runHeadless(ctx, cmd, app)
			}
			return runTUI(ui.NewClientModel(ctx, app, askForParams, ui.FormDefaults{
				FileSize:    cfg.Client.FileSize,
				NumStream:   cfg.Client.NumStream,
				NumDatagram: cfg.Client.NumDatagram,
				Rounds:      cfg.Client.Rounds,
			}))
		},
	}

	f := cmd.Flags()
	f.Uint64Var(&size, "size", config.DefaultFileSize, "Bytes to request per connection")
	f.IntVar(&numStream, "tcp", 1, "Number of TCP connections")
	f.IntVar(&numDatagram, "udp", 1, "Number of UDP connections")
	f.IntVar(&rounds, "rounds", 0, "Stop after this many speed tests, 0 to run until interrupted")
	f.DurationVar(&quietPeriod, "quiet-period", transfer.DefaultQuietPeriod, "UDP silence that ends a datagram transfer")
	f.DurationVar(&pollTimeout, "poll-timeout", discovery.DefaultPollTimeout, "Wait per discovery read before retrying")
	return cmd
}

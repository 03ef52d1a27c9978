package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/brutella/dnssd"
	dnssdlog "github.com/brutella/dnssd/log"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

const (
	txtUDPPort = "udp"
	txtTCPPort = "tcp"
)

var errIncompleteEntry = errors.New("mDNS entry does not carry both transfer ports")

// MDNSAdapter advertises and browses speed test servers over multicast DNS.
// The offer's ports travel in TXT records, so a browse result carries the
// same information as a broadcast offer.
type MDNSAdapter struct {
	Name   string // instance name, hostname when empty
	Type   string
	Domain string
}

// NewMDNSAdapter also silences dnssd's own loggers, which would otherwise
// write to stderr underneath the UI.
func NewMDNSAdapter(name string) *MDNSAdapter {
	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)

	return &MDNSAdapter{
		Name:   name,
		Type:   DefaultServiceType,
		Domain: DefaultDomain,
	}
}

func (m *MDNSAdapter) instanceName() string {
	if m.Name != "" {
		return m.Name
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "speedtest"
}

func (m *MDNSAdapter) Announce(ctx context.Context, offer protocol.Offer) error {
	cfg := dnssd.Config{
		Name:   m.instanceName(),
		Type:   m.Type,
		Domain: m.Domain,
		// mdns will multicast to ip address, so we can leave it nil
		IPs: nil,
		Text: map[string]string{
			txtUDPPort: strconv.Itoa(int(offer.UDPPort)),
			txtTCPPort: strconv.Itoa(int(offer.TCPPort)),
		},
		Port: int(offer.TCPPort),
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	slog.Info("Announcing over mDNS", "name", cfg.Name, "type", cfg.Type)
	if err = rp.Respond(ctx); err != nil {
		// Context cancellation is not an error in normal operation
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS service: %w", err)
	}
	return nil
}

// Discover browses until the first complete entry shows up.
func (m *MDNSAdapter) Discover(ctx context.Context) (ServerInfo, error) {
	lookupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan ServerInfo, 1)
	addFn := func(e dnssd.BrowseEntry) {
		info, err := entryToServerInfo(e)
		if err != nil {
			slog.Debug("Ignoring mDNS entry", "name", e.Name, "error", err)
			return
		}
		select {
		case found <- info:
			cancel()
		default:
		}
	}
	rmvFn := func(dnssd.BrowseEntry) {}

	service := fmt.Sprintf("%s.%s.", m.Type, m.Domain)
	err := dnssd.LookupType(lookupCtx, service, addFn, rmvFn)

	select {
	case info := <-found:
		return info, nil
	default:
	}
	if ctx.Err() != nil {
		return ServerInfo{}, ctx.Err()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return ServerInfo{}, fmt.Errorf("mDNS lookup failed: %w", err)
	}
	return ServerInfo{}, errors.New("mDNS lookup ended without a result")
}

func entryToServerInfo(e dnssd.BrowseEntry) (ServerInfo, error) {
	if len(e.IPs) == 0 {
		return ServerInfo{}, errors.New("mDNS entry has no address")
	}
	udpPort, errUDP := parsePort(e.Text[txtUDPPort])
	tcpPort, errTCP := parsePort(e.Text[txtTCPPort])
	if errUDP != nil || errTCP != nil {
		return ServerInfo{}, errIncompleteEntry
	}

	addr := e.IPs[0]
	for _, ip := range e.IPs {
		if ip.To4() != nil {
			addr = ip
			break
		}
	}
	return ServerInfo{
		Addr:      addr,
		Offer:     protocol.Offer{UDPPort: udpPort, TCPPort: tcpPort},
		Source:    SourceMDNS,
		Interface: e.IfaceName,
		Name:      e.Name,
	}, nil
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

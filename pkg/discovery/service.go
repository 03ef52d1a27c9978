package discovery

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

const (
	DefaultPort          = 13117
	DefaultBroadcastAddr = "255.255.255.255"
	DefaultInterval      = time.Second
	DefaultPollTimeout   = 2 * time.Second

	DefaultServiceType = "_speedtest._udp"
	DefaultDomain      = "local"
)

// Source tells how a server was found.
type Source string

const (
	SourceBroadcast Source = "broadcast"
	SourceMDNS      Source = "mdns"
)

// ServerInfo is what a client learns from one offer.
type ServerInfo struct {
	Addr      net.IP
	Offer     protocol.Offer
	Source    Source
	Interface string // receiving interface, when known
	Name      string // mDNS instance name
}

// StreamAddr is the host:port of the server's stream channel.
func (s ServerInfo) StreamAddr() string {
	return net.JoinHostPort(s.Addr.String(), strconv.Itoa(int(s.Offer.TCPPort)))
}

// DatagramAddr is the address of the server's datagram channel.
func (s ServerInfo) DatagramAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: s.Addr, Port: int(s.Offer.UDPPort)}
}

// Announcer advertises a server's offer until ctx is cancelled.
type Announcer interface {
	Announce(ctx context.Context, offer protocol.Offer) error
}

// Discoverer blocks until a server offer is received or ctx is cancelled.
type Discoverer interface {
	Discover(ctx context.Context) (ServerInfo, error)
}

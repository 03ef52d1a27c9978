package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

// offerBufferSize is larger than an offer so oversized junk is read whole
// and rejected.
const offerBufferSize = 1024

// Listener waits for broadcast offers on the discovery port.
type Listener struct {
	// ListenAddr is the local address the socket binds to, usually ":13117".
	ListenAddr  string
	PollTimeout time.Duration
}

func NewListener(port int, pollTimeout time.Duration) *Listener {
	return &Listener{
		ListenAddr:  net.JoinHostPort("", strconv.Itoa(port)),
		PollTimeout: pollTimeout,
	}
}

// Discover binds a fresh socket, returns the first valid offer and closes
// the socket again. Malformed datagrams are dropped silently and an expired
// poll timeout simply starts another read.
func (l *Listener) Discover(ctx context.Context) (ServerInfo, error) {
	conn, err := net.ListenPacket("udp4", l.ListenAddr)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("failed to bind discovery socket %s: %w", l.ListenAddr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagDst|ipv4.FlagInterface, true); err != nil {
		// Not supported on every platform; offers still arrive without it.
		slog.Debug("Control messages unavailable on discovery socket", "error", err)
	}

	slog.Debug("Listening for offers", "addr", conn.LocalAddr())

	buf := make([]byte, offerBufferSize)
	for {
		if l.PollTimeout > 0 {
			_ = pc.SetReadDeadline(time.Now().Add(l.PollTimeout))
		}
		n, cm, src, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ServerInfo{}, ctx.Err()
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			return ServerInfo{}, fmt.Errorf("failed to read offer: %w", err)
		}

		offer, err := protocol.DecodeOffer(buf[:n])
		if err != nil {
			continue
		}

		udpAddr, ok := src.(*net.UDPAddr)
		if !ok {
			continue
		}

		info := ServerInfo{
			Addr:   udpAddr.IP,
			Offer:  offer,
			Source: SourceBroadcast,
		}
		if cm != nil && cm.IfIndex > 0 {
			if ifi, err := net.InterfaceByIndex(cm.IfIndex); err == nil {
				info.Interface = ifi.Name
			}
		}
		return info, nil
	}
}

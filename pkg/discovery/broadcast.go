package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/rescp17/lanSpeedTest/pkg/protocol"
)

// Broadcaster sends the server's offer to the discovery port once per
// interval. It runs independently of transfer handling.
type Broadcaster struct {
	// Target is the host:port offers are sent to.
	Target   string
	Interval time.Duration
}

func NewBroadcaster(broadcastAddr string, port int, interval time.Duration) *Broadcaster {
	return &Broadcaster{
		Target:   net.JoinHostPort(broadcastAddr, strconv.Itoa(port)),
		Interval: interval,
	}
}

// Announce sends the first offer immediately and then one per interval
// until ctx is cancelled. Failed sends are logged and do not stop the loop.
func (b *Broadcaster) Announce(ctx context.Context, offer protocol.Offer) error {
	target, err := net.ResolveUDPAddr("udp4", b.Target)
	if err != nil {
		return fmt.Errorf("failed to resolve broadcast target %q: %w", b.Target, err)
	}

	// Go enables SO_BROADCAST on UDP sockets, so a plain socket can reach
	// the limited broadcast address.
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("failed to open broadcast socket: %w", err)
	}
	defer conn.Close()

	packet := offer.Encode()
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	slog.Info("Broadcasting offers", "target", target, "interval", b.Interval,
		"udp_port", offer.UDPPort, "tcp_port", offer.TCPPort)

	for {
		if _, err := conn.WriteToUDP(packet, target); err != nil {
			slog.Warn("Failed to send offer", "target", target, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

package ui

import (
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescp17/lanSpeedTest/internal/app"
	appevents "github.com/rescp17/lanSpeedTest/internal/app_events"
	clientEvent "github.com/rescp17/lanSpeedTest/internal/app_events/client"
	serverEvent "github.com/rescp17/lanSpeedTest/internal/app_events/server"
	"github.com/rescp17/lanSpeedTest/internal/util"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// Column widths of the round summary.
const (
	colTask       = 10
	colTime       = 10
	colThroughput = 16
	colBytes      = 12
	colDelivered  = 10
)

// Console prints app messages as plain lines, for runs without a terminal
// UI. It returns once msgs is closed.
func Console(w io.Writer, msgs <-chan tea.Msg) {
	for msg := range msgs {
		if line := consoleLine(msg); line != "" {
			fmt.Fprintln(w, line)
		}
	}
}

func consoleLine(msg tea.Msg) string {
	switch msg := msg.(type) {
	case clientEvent.StateChangedMsg:
		if msg.State == app.LookingForServer {
			return "Client started, listening for offer requests..."
		}
	case clientEvent.ServerFoundMsg:
		return fmt.Sprintf("Received offer from %s (tcp %d, udp %d)",
			msg.Server.Addr, msg.Server.Offer.TCPPort, msg.Server.Offer.UDPPort)
	case clientEvent.ReportMsg:
		return ReportLine(msg.Report)
	case clientEvent.RoundCompleteMsg:
		return Summary(msg.Reports) + "All transfers complete, listening to offer requests again..."
	case serverEvent.ListeningMsg:
		return fmt.Sprintf("Server started, listening on TCP %s and UDP %s, broadcasting to %s",
			msg.StreamAddr, msg.DatagramAddr, msg.BroadcastTarget)
	case serverEvent.ServedMsg:
		e := msg.Event
		if e.Err != nil {
			return fmt.Sprintf("%s request from %s ended after %s: %v", e.Kind, e.Remote, util.FormatSize(e.Bytes), e.Err)
		}
		return fmt.Sprintf("%s request from %s served: %s in %s", e.Kind, e.Remote, util.FormatSize(e.Bytes), util.FormatDuration(e.Duration))
	case appevents.ErrorMsg:
		return "Error: " + msg.Err.Error()
	}
	return ""
}

// ReportLine renders one task result the way the client prints it.
func ReportLine(r transfer.Report) string {
	line := fmt.Sprintf("%s transfer #%d finished, total time: %.2f seconds, total speed: %.2f bits/second",
		r.Kind, r.Index, r.Elapsed.Seconds(), r.Throughput)
	if r.Kind == transfer.KindDatagram {
		line += fmt.Sprintf(", percentage of packets received successfully: %.0f%%", r.PercentReceived)
		if r.NoData {
			line += " (no packets arrived)"
		}
	}
	if r.Err != nil {
		line += fmt.Sprintf(" [error: %v]", r.Err)
	}
	return line
}

// Summary renders a round as an aligned table.
func Summary(reports []transfer.Report) string {
	var b strings.Builder
	b.WriteString(util.PadRight("Task", colTask))
	b.WriteString(util.PadLeft("Time", colTime))
	b.WriteString(util.PadLeft("Throughput", colThroughput))
	b.WriteString(util.PadLeft("Received", colBytes))
	b.WriteString(util.PadLeft("Delivered", colDelivered))
	b.WriteString("\n")

	for _, r := range reports {
		delivered := "-"
		if r.Kind == transfer.KindDatagram {
			delivered = util.FormatPercent(r.PercentReceived)
		}
		b.WriteString(util.PadRight(fmt.Sprintf("%s #%d", r.Kind, r.Index), colTask))
		b.WriteString(util.PadLeft(util.FormatDuration(r.Elapsed), colTime))
		b.WriteString(util.PadLeft(util.FormatBitRate(r.Throughput), colThroughput))
		b.WriteString(util.PadLeft(util.FormatSize(r.Bytes), colBytes))
		b.WriteString(util.PadLeft(delivered, colDelivered))
		b.WriteString("\n")
	}
	return b.String()
}

package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/lanSpeedTest/internal/app_events"
	serverEvent "github.com/rescp17/lanSpeedTest/internal/app_events/server"
	"github.com/rescp17/lanSpeedTest/internal/style"
	"github.com/rescp17/lanSpeedTest/internal/util"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

const (
	// maxServedRows bounds the served-requests table.
	maxServedRows = 10
	// tableHeaderHeight is the header line plus its bottom border.
	tableHeaderHeight = 2
)

type serverModel struct {
	spinner   spinner.Model
	table     table.Model
	listening *serverEvent.ListeningMsg
	served    []transfer.ServedEvent
	total     int
	lastError error
}

var servedColumns = []table.Column{
	{Title: "Kind", Width: 6},
	{Title: "Client", Width: 22},
	{Title: "Sent", Width: 12},
	{Title: "Time", Width: 10},
	{Title: "Result", Width: 20},
}

func initServerModel() serverModel {
	t := table.New(
		table.WithColumns(servedColumns),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(0),
	)
	t.SetStyles(style.NewTableStyles())

	return serverModel{
		spinner: style.NewSpinner(),
		table:   t,
	}
}

func (m *model) initServer() tea.Cmd {
	return tea.Batch(m.server.spinner.Tick, m.listenForAppMessages())
}

func (s *serverModel) addServed(e transfer.ServedEvent) {
	s.total++
	s.served = append(s.served, e)
	if len(s.served) > maxServedRows {
		s.served = s.served[len(s.served)-maxServedRows:]
	}

	rows := make([]table.Row, 0, len(s.served))
	for i := len(s.served) - 1; i >= 0; i-- {
		e := s.served[i]
		result := "ok"
		if e.Err != nil {
			result = e.Err.Error()
		}
		remote := "-"
		if e.Remote != nil {
			remote = e.Remote.String()
		}
		rows = append(rows, table.Row{
			e.Kind.String(),
			remote,
			util.FormatSize(e.Bytes),
			util.FormatDuration(e.Duration),
			result,
		})
	}
	s.table.SetRows(rows)
	s.table.SetHeight(len(rows) + tableHeaderHeight)
}

func (m model) updateServer(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case serverEvent.ListeningMsg:
		m.server.listening = &msg
		return m, m.listenForAppMessages()
	case serverEvent.ServedMsg:
		m.server.addServed(msg.Event)
		return m, m.listenForAppMessages()
	case appevents.ErrorMsg:
		m.server.lastError = msg.Err
		return m, m.listenForAppMessages()
	}

	var cmd tea.Cmd
	m.server.spinner, cmd = m.server.spinner.Update(msg)
	return m, cmd
}

func (m model) serverView() string {
	s := m.server
	if s.listening == nil {
		return fmt.Sprintf("\n%s Starting server...", s.spinner.View())
	}

	out := fmt.Sprintf("\n%s Server started, broadcasting offers to %s\n",
		s.spinner.View(), style.HighlightFontStyle.Render(s.listening.BroadcastTarget))
	out += fmt.Sprintf("  TCP %s   UDP %s", s.listening.StreamAddr, s.listening.DatagramAddr)
	if s.listening.MDNS {
		out += "   (mDNS on)"
	}
	out += "\n"

	if s.total > 0 {
		out += fmt.Sprintf("\nServed %d request(s), most recent first:\n", s.total)
		out += style.BaseStyle.Render(s.table.View()) + "\n"
	}
	if s.lastError != nil {
		out += "\n" + style.ErrorStyle.Render(s.lastError.Error()) + "\n"
	}
	return out
}

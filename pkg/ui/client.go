package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescp17/lanSpeedTest/internal/app"
	appevents "github.com/rescp17/lanSpeedTest/internal/app_events"
	clientEvent "github.com/rescp17/lanSpeedTest/internal/app_events/client"
	"github.com/rescp17/lanSpeedTest/internal/style"
	"github.com/rescp17/lanSpeedTest/internal/util"
	"github.com/rescp17/lanSpeedTest/pkg/discovery"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// clientState defines the different states of the client UI.
type clientState int

const (
	configuring clientState = iota
	startingUp
	lookingForServer
	runningTest
)

// FormDefaults pre-fill the parameter form.
type FormDefaults struct {
	FileSize    uint64
	NumStream   int
	NumDatagram int
	// Rounds is not on the form; it is passed through with the submission.
	Rounds int
}

const (
	fieldFileSize = iota
	fieldStream
	fieldDatagram
	fieldCount
)

var fieldLabels = [fieldCount]string{"File size (bytes)", "TCP connections", "UDP connections"}

type clientModel struct {
	state   clientState
	events  chan<- appevents.AppEvent
	inputs  []textinput.Model
	focus   int
	formErr error
	// roundLimit comes from the config and travels with the form values.
	roundLimit int

	spinner spinner.Model
	table   table.Model

	server   discovery.ServerInfo
	roundID  string
	reports  []transfer.Report
	rounds   int
	lastTook time.Duration
	lastErr  error
}

var reportColumns = []table.Column{
	{Title: "Task", Width: 8},
	{Title: "Time", Width: 10},
	{Title: "Throughput", Width: 16},
	{Title: "Received", Width: 12},
	{Title: "Delivered", Width: 10},
}

func initClientModel(app ClientController, needsConfig bool, defaults FormDefaults) clientModel {
	inputs := make([]textinput.Model, fieldCount)
	values := [fieldCount]string{
		strconv.FormatUint(defaults.FileSize, 10),
		strconv.Itoa(defaults.NumStream),
		strconv.Itoa(defaults.NumDatagram),
	}
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 20
		ti.Width = 20
		ti.SetValue(values[i])
		ti.Validate = digitsOnly
		inputs[i] = ti
	}
	inputs[0].Focus()
	inputs[0].PromptStyle = style.FocusedInputStyle
	inputs[0].TextStyle = style.FocusedInputStyle

	t := table.New(
		table.WithColumns(reportColumns),
		table.WithRows([]table.Row{}),
		table.WithFocused(false),
		table.WithHeight(0),
	)
	t.SetStyles(style.NewTableStyles())

	state := startingUp
	if needsConfig {
		state = configuring
	}
	return clientModel{
		state:      state,
		roundLimit: defaults.Rounds,
		events:     app.AppEvents(),
		inputs:     inputs,
		spinner:    style.NewSpinner(),
		table:      t,
	}
}

func digitsOnly(s string) error {
	for _, r := range s {
		if r < '0' || r > '9' {
			return errors.New("digits only")
		}
	}
	return nil
}

func (m *model) initClient() tea.Cmd {
	cmds := []tea.Cmd{m.client.spinner.Tick, m.listenForAppMessages()}
	if m.client.state == configuring {
		cmds = append(cmds, textinput.Blink)
	}
	return tea.Batch(cmds...)
}

// parseForm turns the form into a configuration event.
func (c *clientModel) parseForm() (clientEvent.ConfigureMsg, error) {
	size, err := strconv.ParseUint(strings.TrimSpace(c.inputs[fieldFileSize].Value()), 10, 64)
	if err != nil {
		return clientEvent.ConfigureMsg{}, fmt.Errorf("file size: %w", err)
	}
	numStream, err := strconv.Atoi(strings.TrimSpace(c.inputs[fieldStream].Value()))
	if err != nil {
		return clientEvent.ConfigureMsg{}, fmt.Errorf("TCP connections: %w", err)
	}
	numDatagram, err := strconv.Atoi(strings.TrimSpace(c.inputs[fieldDatagram].Value()))
	if err != nil {
		return clientEvent.ConfigureMsg{}, fmt.Errorf("UDP connections: %w", err)
	}
	return clientEvent.ConfigureMsg{
		FileSize:    size,
		NumStream:   numStream,
		NumDatagram: numDatagram,
		Rounds:      c.roundLimit,
	}, nil
}

func (c *clientModel) setFocus(i int) tea.Cmd {
	c.inputs[c.focus].Blur()
	c.inputs[c.focus].PromptStyle = style.HelpStyle
	c.inputs[c.focus].TextStyle = style.HelpStyle
	c.focus = (i + fieldCount) % fieldCount
	c.inputs[c.focus].PromptStyle = style.FocusedInputStyle
	c.inputs[c.focus].TextStyle = style.FocusedInputStyle
	return c.inputs[c.focus].Focus()
}

func (c *clientModel) updateReportTable() {
	rows := make([]table.Row, 0, len(c.reports))
	for _, r := range c.reports {
		delivered := "-"
		if r.Kind == transfer.KindDatagram {
			delivered = util.FormatPercent(r.PercentReceived)
			if r.NoData {
				delivered += "*"
			}
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%s #%d", r.Kind, r.Index),
			util.FormatDuration(r.Elapsed),
			util.FormatBitRate(r.Throughput),
			util.FormatSize(r.Bytes),
			delivered,
		})
	}
	c.table.SetRows(rows)
	c.table.SetHeight(len(rows) + tableHeaderHeight)
}

func (m model) updateClient(msg tea.Msg) (tea.Model, tea.Cmd) {
	if cmd, processed := m.handleClientAppEvent(msg); processed {
		return m, cmd
	}

	var cmds []tea.Cmd
	if m.client.state == configuring {
		cmds = append(cmds, m.updateConfiguring(msg))
	}

	var spinCmd tea.Cmd
	m.client.spinner, spinCmd = m.client.spinner.Update(msg)
	cmds = append(cmds, spinCmd)

	return m, tea.Batch(cmds...)
}

func (m *model) handleClientAppEvent(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case clientEvent.StateChangedMsg:
		switch msg.State {
		case app.LookingForServer:
			m.client.state = lookingForServer
		case app.SpeedTest:
			m.client.state = runningTest
		}
		return m.listenForAppMessages(), true
	case clientEvent.ServerFoundMsg:
		m.client.server = msg.Server
		return m.listenForAppMessages(), true
	case clientEvent.RoundStartedMsg:
		m.client.roundID = msg.RoundID
		m.client.reports = nil
		m.client.lastErr = nil
		m.client.updateReportTable()
		return m.listenForAppMessages(), true
	case clientEvent.ReportMsg:
		m.client.reports = append(m.client.reports, msg.Report)
		m.client.updateReportTable()
		return m.listenForAppMessages(), true
	case clientEvent.RoundCompleteMsg:
		m.client.rounds++
		m.client.lastTook = msg.Duration
		m.client.reports = msg.Reports
		m.client.updateReportTable()
		return m.listenForAppMessages(), true
	case appevents.ErrorMsg:
		// Errors before discovery starts can only be a rejected form.
		if m.client.state == configuring || m.client.state == startingUp {
			m.client.state = configuring
			m.client.formErr = msg.Err
		} else {
			m.client.lastErr = msg.Err
		}
		return m.listenForAppMessages(), true
	}
	return nil, false
}

func (m *model) updateConfiguring(msg tea.Msg) tea.Cmd {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, DefaultKeyMap.Next):
			return m.client.setFocus(m.client.focus + 1)
		case key.Matches(keyMsg, DefaultKeyMap.Prev):
			return m.client.setFocus(m.client.focus - 1)
		case key.Matches(keyMsg, DefaultKeyMap.Submit):
			if m.client.focus < fieldCount-1 {
				return m.client.setFocus(m.client.focus + 1)
			}
			event, err := m.client.parseForm()
			if err != nil {
				m.client.formErr = err
				return nil
			}
			m.client.formErr = nil
			m.client.state = startingUp
			events := m.client.events
			// The app reads this while in Startup; send off the UI goroutine.
			return func() tea.Msg {
				events <- event
				return nil
			}
		}
	}

	var cmd tea.Cmd
	m.client.inputs[m.client.focus], cmd = m.client.inputs[m.client.focus].Update(msg)
	return cmd
}

func (m model) clientView() string {
	c := m.client
	switch c.state {
	case configuring:
		var b strings.Builder
		b.WriteString(style.TitleStyle.Render("Please configure your download parameters.") + "\n\n")
		for i, input := range c.inputs {
			b.WriteString(style.LabelStyle.Render(fieldLabels[i]) + " " + input.View() + "\n")
		}
		if c.formErr != nil {
			b.WriteString("\n" + style.ErrorStyle.Render(c.formErr.Error()) + "\n")
		}
		b.WriteString("\n" + style.HelpStyle.Render(DefaultKeyMap.formHelp()))
		return style.DocStyle.Render(b.String())
	case startingUp:
		return fmt.Sprintf("\n%s Starting...", c.spinner.View())
	case lookingForServer:
		s := fmt.Sprintf("\n%s Listening for offer requests...\n", c.spinner.View())
		if c.rounds > 0 {
			s += fmt.Sprintf("\nLast round (%s) took %s\n", shortID(c.roundID), util.FormatDuration(c.lastTook))
			s += c.resultsView()
		}
		return s + c.errorView()
	case runningTest:
		s := fmt.Sprintf("\n%s Testing against %s (tcp %d, udp %d), round %s\n",
			c.spinner.View(),
			style.HighlightFontStyle.Render(c.server.Addr.String()),
			c.server.Offer.TCPPort, c.server.Offer.UDPPort, shortID(c.roundID))
		return s + c.resultsView() + c.errorView()
	default:
		return "Internal error: unknown client state"
	}
}

func (c clientModel) resultsView() string {
	if len(c.reports) == 0 {
		return ""
	}
	s := style.BaseStyle.Render(c.table.View()) + "\n"
	for _, r := range c.reports {
		if r.NoData {
			s += style.HelpStyle.Render("* no payload arrived, counted as fully delivered") + "\n"
			break
		}
	}
	return s
}

func (c clientModel) errorView() string {
	if c.lastErr == nil {
		return ""
	}
	return "\n" + style.ErrorStyle.Render(c.lastErr.Error()) + "\n"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

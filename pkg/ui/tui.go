package ui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/lanSpeedTest/internal/app_events"
)

type mode int

const (
	None mode = iota
	Client
	Server
)

// AppController is the logic side of a TUI: it runs until its context ends
// and streams updates for the UI.
type AppController interface {
	Run(ctx context.Context) error
	UIMessages() <-chan tea.Msg
}

// ClientController also accepts events from the UI.
type ClientController interface {
	AppController
	AppEvents() chan<- appevents.AppEvent
}

// appStoppedMsg is delivered once the controller closed its message channel.
type appStoppedMsg struct{}

// appDoneMsg carries what Run returned.
type appDoneMsg struct {
	err error
}

type model struct {
	mode          mode
	ctx           context.Context
	appController AppController
	client        clientModel
	server        serverModel
	runErr        error
}

// NewClientModel builds the client TUI. With needsConfig the parameter form
// is shown first and its values are sent to the app.
func NewClientModel(ctx context.Context, app ClientController, needsConfig bool, defaults FormDefaults) tea.Model {
	return model{
		mode:          Client,
		ctx:           ctx,
		appController: app,
		client:        initClientModel(app, needsConfig, defaults),
	}
}

// NewServerModel builds the server TUI.
func NewServerModel(ctx context.Context, app AppController) tea.Model {
	return model{
		mode:          Server,
		ctx:           ctx,
		appController: app,
		server:        initServerModel(),
	}
}

// Err returns the error the app stopped with, if any.
func Err(m tea.Model) error {
	if mm, ok := m.(model); ok {
		return mm.runErr
	}
	return nil
}

func (m model) Init() tea.Cmd {
	runCmd := func() tea.Msg {
		err := m.appController.Run(m.ctx)
		if err != nil {
			slog.Error("App stopped with error", "error", err)
		}
		return appDoneMsg{err: err}
	}

	switch m.mode {
	case Client:
		return tea.Batch(runCmd, m.initClient())
	case Server:
		return tea.Batch(runCmd, m.initServer())
	default:
		return nil
	}
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m *model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.appController.UIMessages()
		if !ok {
			return appStoppedMsg{}
		}
		return msg
	}
}

func (m model) View() string {
	var s string
	switch m.mode {
	case Client:
		s += m.clientView()
	case Server:
		s += m.serverView()
	default:
		return ""
	}
	s += "\nPress ctrl + c to quit"
	return s
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, DefaultKeyMap.Quit) {
			return m, tea.Quit
		}
	case appDoneMsg:
		m.runErr = msg.err
		return m, tea.Quit
	case appStoppedMsg:
		// Nothing more to listen for; appDoneMsg follows.
		return m, nil
	}

	switch m.mode {
	case Client:
		return m.updateClient(msg)
	case Server:
		return m.updateServer(msg)
	}

	return m, nil
}

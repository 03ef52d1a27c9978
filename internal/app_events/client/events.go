package client

import (
	"time"

	"github.com/rescp17/lanSpeedTest/internal/app"
	appevents "github.com/rescp17/lanSpeedTest/internal/app_events"
	"github.com/rescp17/lanSpeedTest/pkg/discovery"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// --- App Events (from TUI to App) ---

// ConfigureMsg supplies the speed test parameters and lets the client leave Startup.
type ConfigureMsg struct {
	appevents.Event
	FileSize    uint64
	NumStream   int
	NumDatagram int
	Rounds      int // zero runs until cancelled
}

var _ appevents.AppEvent = ConfigureMsg{}

// --- UI Messages (from App to TUI) ---

type StateChangedMsg struct {
	appevents.UIMessage
	State app.SessionState
}

type ServerFoundMsg struct {
	appevents.UIMessage
	Server discovery.ServerInfo
}

type RoundStartedMsg struct {
	appevents.UIMessage
	RoundID     string
	Server      discovery.ServerInfo
	FileSize    uint64
	NumStream   int
	NumDatagram int
}

// ReportMsg carries one task's result as soon as the task ends.
type ReportMsg struct {
	appevents.UIMessage
	Report transfer.Report
}

// RoundCompleteMsg follows the last ReportMsg of a round.
type RoundCompleteMsg struct {
	appevents.UIMessage
	RoundID  string
	Reports  []transfer.Report
	Duration time.Duration
}

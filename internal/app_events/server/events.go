package server

import (
	appevents "github.com/rescp17/lanSpeedTest/internal/app_events"
	"github.com/rescp17/lanSpeedTest/pkg/protocol"
	"github.com/rescp17/lanSpeedTest/pkg/transfer"
)

// --- App to UI Messages ---

// ListeningMsg is sent once both transfer sockets are bound.
type ListeningMsg struct {
	appevents.UIMessage
	Offer           protocol.Offer
	StreamAddr      string
	DatagramAddr    string
	BroadcastTarget string
	MDNS            bool
}

// ServedMsg is sent after every finished stream connection or datagram burst.
type ServedMsg struct {
	appevents.UIMessage
	Event transfer.ServedEvent
}

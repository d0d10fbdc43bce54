package events

import "context"

// Channels
const (
	ChannelCheckIn = "events:checkin"
	ChannelLedger  = "events:ledger"
)

// Event types
const (
	EventTicketAdmitted    = "ticket_admitted"
	EventTicketDenied      = "ticket_denied"
	EventTicketUsed        = "ticket_used"
	EventTicketTransferred = "ticket_transferred"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(Event)) error
}

package escrow

// Event kinds.
const (
	EventCreated  = "created"
	EventClaimed  = "claimed"
	EventRefunded = "refunded"
	EventPaused   = "paused"
	EventResumed  = "resumed"
)

// CreatedEvent is emitted once per successful Create.
type CreatedEvent struct {
	ID        uint64 `json:"id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    uint64 `json:"amount"`
	Timelock  uint64 `json:"timelock"`
}

// ClaimedEvent is emitted once per successful Claim.
type ClaimedEvent struct {
	ID      uint64 `json:"id"`
	Claimer string `json:"claimer"`
	Amount  uint64 `json:"amount"`
}

// RefundedEvent is emitted once per successful Refund.
type RefundedEvent struct {
	ID     uint64 `json:"id"`
	Sender string `json:"sender"`
	Amount uint64 `json:"amount"`
}

// GateEvent is emitted on pause and resume.
type GateEvent struct {
	Caller string `json:"caller"`
}

// EventSink receives events after the corresponding state change has
// committed. htlcID is nil for gate events.
type EventSink func(kind string, htlcID *uint64, payload interface{})

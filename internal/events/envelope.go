package events

// Envelope is the outer payload of a back office webhook delivery.
type Envelope struct {
	Action        string `json:"action"`
	EventID       string `json:"event_id"`
	OccurredAt    string `json:"occurred_at"`
	IntegrationID string `json:"connected_integration_id"`
	Data          Event  `json:"data"`
}

// Event is the inner event: what happened and to which entity.
type Event struct {
	Action string    `json:"action"`
	Data   EventData `json:"data"`
}

// EventData identifies the entity the event refers to.
type EventData struct {
	ID int64 `json:"id"`
}

package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a ledger event. It doubles as the routing key suffix.
type EventType string

const (
	TransactionCreated EventType = "transaction.created"
	ReportDrafted      EventType = "report.drafted"
	ReportSubmitted    EventType = "report.submitted"
	RatesRefreshed     EventType = "rates.refreshed"
	ImportCompleted    EventType = "import.completed"
)

// Event is the envelope published for every ledger change.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	UserID     int64           `json:"userId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent wraps payload in an envelope with a fresh id.
func NewEvent(typ EventType, userID int64, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}, nil
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event published by Client.Publish.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event without type")
	}
	return e, nil
}

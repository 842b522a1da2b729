package amqp

import (
	"encoding/json"
	"time"
)

// Entity and operation names carried by ledger events.
const (
	EntitySource      = "source"
	EntityCategory    = "category"
	EntitySubCategory = "subcategory"
	EntityTransaction = "transaction"
	EntityTransfer    = "transfer"

	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// LedgerEvent is a lightweight notification that a committed mutation
// touched the ledger. Consumers re-read whatever they need from storage;
// the event intentionally carries no amounts.
type LedgerEvent struct {
	Entity    string    `json:"entity"`
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Op        string    `json:"op"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent builds an event stamped with the current time.
func NewLedgerEvent(entity, id, owner, op string) LedgerEvent {
	return LedgerEvent{
		Entity:    entity,
		ID:        id,
		Owner:     owner,
		Op:        op,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON parses an event from JSON bytes.
func LedgerEventFromJSON(data []byte) (LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return LedgerEvent{}, err
	}
	return e, nil
}

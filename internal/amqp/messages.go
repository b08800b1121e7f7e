package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"billrecords/internal/ledger"
)

// LedgerChangeMessage announces that the stored ledger snapshot changed.
// It carries no bill data; consumers read the snapshot from storage.
type LedgerChangeMessage struct {
	MessageID string    `json:"message_id"`
	Op        string    `json:"op"`
	BillID    int64     `json:"bill_id"`
	Matched   bool      `json:"matched"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangeMessage builds a message for c with a fresh message id.
func NewLedgerChangeMessage(c ledger.Change) *LedgerChangeMessage {
	ts := c.At
	if ts.IsZero() {
		ts = time.Now()
	}
	return &LedgerChangeMessage{
		MessageID: uuid.NewString(),
		Op:        string(c.Op),
		BillID:    c.BillID,
		Matched:   c.Matched,
		Count:     c.Count,
		Timestamp: ts.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON creates a message from JSON bytes
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"billrecords/internal/core"
)

// DefaultKey is the storage key the ledger snapshot lives under.
const DefaultKey = "billRecords"

var errNullRecord = errors.New("null record")

// SkippedRecord describes an element of a stored snapshot that could not be
// read as a bill.
type SkippedRecord struct {
	Index int
	Err   error
}

// EncodeSnapshot serializes the whole ledger as a JSON array of bills.
// An empty ledger encodes as "[]".
func EncodeSnapshot(bills []core.Bill) (string, error) {
	if bills == nil {
		bills = []core.Bill{}
	}
	b, err := json.Marshal(bills)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}

// DecodeSnapshot parses a stored snapshot. The error is set only when the
// value is not a JSON array. Elements are decoded one by one; an element
// that does not decode as a bill is left out and reported in skipped, so
// one bad record does not hide the rest. Unknown fields are ignored.
func DecodeSnapshot(s string) (bills []core.Bill, skipped []SkippedRecord, err error) {
	var records []json.RawMessage
	if err := json.Unmarshal([]byte(s), &records); err != nil {
		return nil, nil, fmt.Errorf("decode snapshot: %w", err)
	}

	bills = make([]core.Bill, 0, len(records))
	for i, rec := range records {
		if bytes.Equal(bytes.TrimSpace(rec), []byte("null")) {
			skipped = append(skipped, SkippedRecord{Index: i, Err: errNullRecord})
			continue
		}
		var b core.Bill
		if err := json.Unmarshal(rec, &b); err != nil {
			skipped = append(skipped, SkippedRecord{Index: i, Err: err})
			continue
		}
		bills = append(bills, b)
	}
	return bills, skipped, nil
}

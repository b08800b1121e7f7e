package ledger

import (
	"context"
	"time"
)

type Op string

const (
	OpSave   Op = "save"
	OpDelete Op = "delete"
)

// Change describes one persisted mutation of the ledger.
type Change struct {
	Op     Op
	BillID int64
	// Matched is false for a delete whose id was not in the ledger.
	Matched bool
	// Count is the number of bills after the change.
	Count int
	At    time.Time
}

// Notifier is told about every change after it has been persisted.
// Errors are logged by the ledger and never undo the change.
type Notifier interface {
	Notify(ctx context.Context, c Change) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, c Change) error

func (f NotifierFunc) Notify(ctx context.Context, c Change) error {
	return f(ctx, c)
}

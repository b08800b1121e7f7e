// Package ledger holds the bill ledger view-model: the fixed user list, the
// current selection, the pending amount text, the recorded bills and the
// error message shown to the user.
//
// Every mutation writes the whole ledger back to storage under one key.
// Operations are serialized by a mutex, so callers may share a Ledger across
// goroutines.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"billrecords/internal/core"
	applog "billrecords/internal/log"
	"billrecords/internal/metrics"
	"billrecords/internal/storage"
)

type Options struct {
	// Key is the storage key; DefaultKey when empty.
	Key      string
	Now      func() time.Time
	Notifier Notifier
	Metrics  *metrics.Recorder
	Logger   *applog.Logger
}

type Ledger struct {
	mu       sync.Mutex
	store    storage.KeyValueStore
	users    []core.User
	key      string
	now      func() time.Time
	notifier Notifier
	metrics  *metrics.Recorder
	logger   *applog.Logger

	selected *core.User
	pending  string
	bills    []core.Bill
	errMsg   string
	lastID   int64
}

// Open loads the persisted ledger and returns a ready view-model. A missing
// or unparsable snapshot starts an empty ledger; only a failing store read is
// an error.
func Open(ctx context.Context, store storage.KeyValueStore, users []core.User, opts Options) (*Ledger, error) {
	l := &Ledger{
		store:    store,
		users:    append([]core.User(nil), users...),
		key:      opts.Key,
		now:      opts.Now,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
	if l.key == "" {
		l.key = DefaultKey
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = applog.Default(applog.ComponentLedger)
	}

	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load(ctx context.Context) error {
	raw, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		l.metrics.StorageFailed("read")
		return fmt.Errorf("load ledger: %w", err)
	}
	if !ok {
		l.logger.InfoContext(ctx, "No stored ledger, starting empty", applog.FieldStorageKey, l.key)
		l.metrics.SetLedgerSize(0)
		return nil
	}

	bills, skipped, err := DecodeSnapshot(raw)
	if err != nil {
		l.logger.WarnContext(ctx, "Stored ledger unreadable, starting empty",
			applog.FieldStorageKey, l.key,
			applog.FieldError, err)
		l.metrics.SetLedgerSize(0)
		return nil
	}
	for _, sk := range skipped {
		l.logger.WarnContext(ctx, "Skipping unreadable stored bill",
			applog.FieldStorageKey, l.key,
			"index", sk.Index,
			applog.FieldError, sk.Err)
	}

	for _, b := range bills {
		if _, known := core.FindUser(l.users, b.UserID); !known {
			l.logger.WarnContext(ctx, "Stored bill references unknown user",
				applog.FieldBillID, b.ID,
				applog.FieldUserID, b.UserID,
				applog.FieldUserName, b.UserName)
		}
		if b.ID > l.lastID {
			l.lastID = b.ID
		}
	}
	l.bills = bills
	l.metrics.SetLedgerSize(len(bills))
	l.logger.InfoContext(ctx, "Ledger loaded",
		applog.FieldStorageKey, l.key,
		applog.FieldBillCount, len(bills))
	return nil
}

// Users returns the fixed user list.
func (l *Ledger) Users() []core.User {
	return append([]core.User(nil), l.users...)
}

// SelectUser makes the user with the given id the target of the next save.
// An id outside the user list is rejected and leaves the selection as is.
func (l *Ledger) SelectUser(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := core.FindUser(l.users, id)
	if !ok {
		return l.reject(core.ErrUnknownUser)
	}
	l.selected = &u
	return nil
}

// SetPendingAmount stores the amount text exactly as typed.
func (l *Ledger) SetPendingAmount(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = text
}

// SaveBill records a bill for the selected user with the pending amount.
//
// Validation fails with a *core.ValidationError when no user is selected or
// the amount is not a number, in that order; the message is also kept as the
// ledger's error message. On success the pending amount and error message
// are cleared.
func (l *Ledger) SaveBill(ctx context.Context) (core.Bill, error) {
	bill, change, err := l.save(ctx)
	if err != nil {
		return core.Bill{}, err
	}
	l.logger.InfoContext(ctx, "Bill saved",
		applog.NewFields().
			WithBill(bill.ID, bill.UserID, bill.UserName, bill.Amount).
			WithOperation(applog.OpSave).
			ToSlice()...)
	l.notify(ctx, change)
	return bill, nil
}

func (l *Ledger) save(ctx context.Context) (core.Bill, Change, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.selected == nil {
		return core.Bill{}, Change{}, l.reject(core.ErrNoUserSelected)
	}
	amount, err := core.ParseAmount(l.pending)
	if err != nil {
		return core.Bill{}, Change{}, l.reject(core.ErrInvalidAmount)
	}

	now := l.now()
	bill := core.NewBill(*l.selected, amount, now)
	// Ids are millisecond timestamps; two saves in the same millisecond
	// would otherwise share one.
	if bill.ID <= l.lastID {
		bill.ID = l.lastID + 1
	}

	next := make([]core.Bill, len(l.bills), len(l.bills)+1)
	copy(next, l.bills)
	next = append(next, bill)
	if err := l.persist(ctx, next); err != nil {
		return core.Bill{}, Change{}, err
	}

	l.bills = next
	l.lastID = bill.ID
	l.pending = ""
	l.errMsg = ""
	l.metrics.BillSaved()
	l.metrics.SetLedgerSize(len(next))
	return bill, Change{Op: OpSave, BillID: bill.ID, Matched: true, Count: len(next), At: now}, nil
}

// DeleteBill removes the first bill with the given id and persists the
// ledger, whether or not anything matched.
func (l *Ledger) DeleteBill(ctx context.Context, id int64) error {
	change, err := l.delete(ctx, id)
	if err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "Bill deleted",
		applog.FieldBillID, id,
		applog.FieldOperation, applog.OpDelete,
		"matched", change.Matched)
	l.notify(ctx, change)
	return nil
}

func (l *Ledger) delete(ctx context.Context, id int64) (Change, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]core.Bill, 0, len(l.bills))
	matched := false
	for _, b := range l.bills {
		if !matched && b.ID == id {
			matched = true
			continue
		}
		next = append(next, b)
	}
	if err := l.persist(ctx, next); err != nil {
		return Change{}, err
	}

	l.bills = next
	l.metrics.BillDeleted()
	l.metrics.SetLedgerSize(len(next))
	return Change{Op: OpDelete, BillID: id, Matched: matched, Count: len(next), At: l.now()}, nil
}

// persist writes the full snapshot. Callers hold l.mu.
func (l *Ledger) persist(ctx context.Context, bills []core.Bill) error {
	raw, err := EncodeSnapshot(bills)
	if err != nil {
		return err
	}
	if err := l.store.Set(ctx, l.key, raw); err != nil {
		l.metrics.StorageFailed("write")
		l.logger.ErrorContext(ctx, "Failed to persist ledger",
			applog.FieldStorageKey, l.key,
			applog.FieldBillCount, len(bills),
			applog.FieldError, err)
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// reject records a validation failure. Callers hold l.mu.
func (l *Ledger) reject(kind error) error {
	verr := core.NewValidationError(kind)
	l.errMsg = verr.Message
	l.metrics.ValidationFailed(reasonFor(kind))
	return verr
}

func reasonFor(kind error) string {
	switch {
	case errors.Is(kind, core.ErrNoUserSelected):
		return "no_user_selected"
	case errors.Is(kind, core.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(kind, core.ErrUnknownUser):
		return "unknown_user"
	default:
		return "other"
	}
}

func (l *Ledger) notify(ctx context.Context, c Change) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Notify(ctx, c); err != nil {
		// Don't fail the operation - the snapshot is already stored
		l.logger.ErrorContext(ctx, "Failed to publish ledger change",
			applog.FieldOperation, string(c.Op),
			applog.FieldBillID, c.BillID,
			applog.FieldError, err)
	}
}

// Bills returns a copy of the ledger in insertion order.
func (l *Ledger) Bills() []core.Bill {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Bill(nil), l.bills...)
}

// Selected returns the selected user, if any.
func (l *Ledger) Selected() (core.User, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.selected == nil {
		return core.User{}, false
	}
	return *l.selected, true
}

func (l *Ledger) PendingAmount() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// ErrorMessage returns the last validation message, "" when there is none.
func (l *Ledger) ErrorMessage() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errMsg
}

// TotalForUser sums the user's bills, formatted with two decimals.
func (l *Ledger) TotalForUser(userID int) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.FormatAmount(userTotal(l.bills, userID))
}

// GrandTotal sums every bill, formatted with two decimals.
func (l *Ledger) GrandTotal() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return core.FormatAmount(core.Sum(l.bills, nil))
}

func userTotal(bills []core.Bill, userID int) float64 {
	return core.Sum(bills, func(b core.Bill) bool { return b.UserID == userID })
}

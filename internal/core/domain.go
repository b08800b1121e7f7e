package core

import (
	"errors"
	"time"
)

// DateLayout is the ISO-8601 layout used for Bill.Date, with millisecond
// precision and a Z suffix.
const DateLayout = "2006-01-02T15:04:05.000Z"

type (
	User struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	// Bill is one recorded payment. UserName is a copy of the user's name at
	// creation time and is never re-resolved.
	Bill struct {
		ID       int64   `json:"id"`
		UserID   int     `json:"userId"`
		UserName string  `json:"userName"`
		Amount   float64 `json:"amount"`
		Date     string  `json:"date"`
	}
)

var (
	ErrNoUserSelected = errors.New("no user selected")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrUnknownUser    = errors.New("unknown user")
)

// DefaultUsers is the user list the application ships with.
func DefaultUsers() []User {
	return []User{
		{ID: 1, Name: "Zohaib"},
		{ID: 2, Name: "Babar"},
		{ID: 3, Name: "Mustafa"},
	}
}

// FindUser returns the user with the given id.
func FindUser(users []User, id int) (User, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// NewBill builds a bill for u created at t. The id is the millisecond
// timestamp of t.
func NewBill(u User, amount float64, t time.Time) Bill {
	t = t.UTC()
	return Bill{
		ID:       t.UnixMilli(),
		UserID:   u.ID,
		UserName: u.Name,
		Amount:   amount,
		Date:     t.Format(DateLayout),
	}
}

// CreatedAt parses the bill's date. Bills loaded from older snapshots may
// carry any RFC 3339 variant.
func (b Bill) CreatedAt() (time.Time, error) {
	if t, err := time.Parse(DateLayout, b.Date); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, b.Date)
}

// ValidationError is returned by ledger operations whose input was rejected.
// Message is what the UI shows; Kind is matched with errors.Is.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewValidationError maps a validation sentinel to its user-facing message.
func NewValidationError(kind error) *ValidationError {
	msg := kind.Error()
	switch {
	case errors.Is(kind, ErrNoUserSelected):
		msg = "Please select a user"
	case errors.Is(kind, ErrInvalidAmount):
		msg = "Please enter a valid amount"
	case errors.Is(kind, ErrUnknownUser):
		msg = "Unknown user"
	}
	return &ValidationError{Kind: kind, Message: msg}
}

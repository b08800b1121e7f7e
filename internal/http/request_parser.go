package http

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

var (
	errInvalidUserID = errors.New("invalid user id")
	errInvalidBillID = errors.New("invalid bill id")
)

// parseUserID reads the user_id form field. Whether the id names a known
// user is the ledger's call.
func parseUserID(form url.Values) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(form.Get("user_id")))
	if err != nil {
		return 0, errInvalidUserID
	}
	return id, nil
}

// parseBillID reads a bill id from a path segment.
func parseBillID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errInvalidBillID
	}
	return id, nil
}

// wantsJSON reports whether the client prefers a JSON reply to the page.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

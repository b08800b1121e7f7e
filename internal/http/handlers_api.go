package http

import (
	"context"
	"net/http"
	"time"

	"billrecords/internal/core"
)

type userTotalJSON struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Total    string `json:"total"`
	Selected bool   `json:"selected"`
}

type totalsJSON struct {
	Users      []userTotalJSON `json:"users"`
	GrandTotal string          `json:"grandTotal"`
}

// handleListBills returns the ledger in its stored wire format.
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	bills := s.ledger.Bills()
	if bills == nil {
		bills = []core.Bill{}
	}
	writeJSON(w, http.StatusOK, bills)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	v := s.ledger.View()
	out := totalsJSON{
		Users:      make([]userTotalJSON, 0, len(v.Users)),
		GrandTotal: v.GrandTotal,
	}
	for _, u := range v.Users {
		out.Users = append(out.Users, userTotalJSON{
			ID:       u.User.ID,
			Name:     u.User.Name,
			Total:    u.Total,
			Selected: u.Selected,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady runs every configured dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

package http

import (
	"encoding/json"
	"net/http"

	applog "billrecords/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

// redirectHome answers a form post with 303 so a reload does not resubmit.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Default(applog.ComponentHTTP).Error("Failed to encode JSON response", applog.FieldError, err)
	}
}

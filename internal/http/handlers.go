package http

import (
	"bytes"
	"errors"
	"net/http"

	"billrecords/internal/core"
	applog "billrecords/internal/log"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK)
}

// renderPage writes the full page for the ledger's current state.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", s.ledger.View()); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
		http.Error(w, "could not render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleSelectUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, err := parseUserID(r.PostForm)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.ledger.SelectUser(id); err != nil {
		s.renderPage(w, r, http.StatusUnprocessableEntity)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleSetAmount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	s.ledger.SetPendingAmount(r.PostForm.Get("amount"))
	redirectHome(w, r)
}

// handleSaveBill applies the optional user_id and amount fields, then saves.
// Clients asking for JSON get the new bill or the validation message back
// instead of the page.
func (s *Server) handleSaveBill(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	asJSON := wantsJSON(r)

	if r.PostForm.Has("user_id") {
		id, err := parseUserID(r.PostForm)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.ledger.SelectUser(id); err != nil {
			s.validationFailed(w, r, err, asJSON)
			return
		}
	}
	if r.PostForm.Has("amount") {
		s.ledger.SetPendingAmount(r.PostForm.Get("amount"))
	}

	bill, err := s.ledger.SaveBill(r.Context())
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.validationFailed(w, r, err, asJSON)
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to save bill",
			applog.FieldOperation, applog.OpSave,
			applog.FieldError, err)
		s.serverError(w, r, "Could not save the bill", asJSON)
		return
	}

	if asJSON {
		writeJSON(w, http.StatusCreated, bill)
		return
	}
	redirectHome(w, r)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id, err := parseBillID(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	asJSON := wantsJSON(r)

	if err := s.ledger.DeleteBill(r.Context(), id); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to delete bill",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldBillID, id,
			applog.FieldError, err)
		s.serverError(w, r, "Could not delete the bill", asJSON)
		return
	}

	if asJSON {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	redirectHome(w, r)
}

func (s *Server) validationFailed(w http.ResponseWriter, r *http.Request, err error, asJSON bool) {
	if asJSON {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	s.renderPage(w, r, http.StatusUnprocessableEntity)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, asJSON bool) {
	if asJSON {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: msg})
		return
	}
	http.Error(w, msg, http.StatusInternalServerError)
}

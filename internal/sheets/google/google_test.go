package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"

	"billrecords/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing spreadsheet id" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_CredentialErrors(t *testing.T) {
	missingFile := filepath.Join(t.TempDir(), "nope.json")

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "no credentials",
			cfg:     Config{SpreadsheetID: "sid"},
			wantErr: "missing service account credentials",
		},
		{
			name:    "invalid inline json",
			cfg:     Config{SpreadsheetID: "sid", CredentialsJSON: "invalid-json"},
			wantErr: "parse service account credentials",
		},
		{
			name:    "missing file",
			cfg:     Config{SpreadsheetID: "sid", CredentialsFile: missingFile},
			wantErr: "read service account file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected %q in error, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestNew_InvalidCredentialsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := New(context.Background(), Config{SpreadsheetID: "sid", CredentialsFile: path})
	if err == nil || !strings.Contains(err.Error(), "parse service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRows(t *testing.T) {
	rows := Rows([]core.Bill{
		{ID: 10, UserID: 2, UserName: "Babar", Amount: 250.5, Date: "2025-01-01T00:00:00.000Z"},
	})
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	if rows[0][0] != "ID" || len(rows[0]) != 5 {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != int64(10) || rows[1][1] != 2 || rows[1][2] != "Babar" || rows[1][3] != 250.5 {
		t.Errorf("unexpected row: %v", rows[1])
	}

	if got := Rows(nil); len(got) != 1 {
		t.Errorf("empty ledger should export the header only, got %v", got)
	}
}

type recordedCall struct {
	method string
	path   string
	body   string
}

func newFakeSheets(t *testing.T, status int) (*httptest.Server, func() []recordedCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, recordedCall{method: r.Method, path: r.URL.Path, body: string(b)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestWriteSnapshot(t *testing.T) {
	srv, calls := newFakeSheets(t, http.StatusOK)

	c, err := New(context.Background(), Config{SpreadsheetID: "sid", SheetName: "Bills"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	bills := []core.Bill{
		{ID: 1, UserID: 1, UserName: "Zohaib", Amount: 100, Date: "2025-01-01T00:00:00.000Z"},
		{ID: 2, UserID: 2, UserName: "Babar", Amount: 50, Date: "2025-01-01T00:00:01.000Z"},
	}
	if err := c.WriteSnapshot(context.Background(), bills); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	got := calls()
	if len(got) != 2 {
		t.Fatalf("expected clear + update, got %+v", got)
	}
	if got[0].method != http.MethodPost || !strings.HasSuffix(got[0].path, ":clear") {
		t.Errorf("first call should clear the range: %+v", got[0])
	}
	if got[1].method != http.MethodPut || !strings.Contains(got[1].path, "/spreadsheets/sid/values/") {
		t.Errorf("second call should update values: %+v", got[1])
	}

	var vr struct {
		Values [][]interface{} `json:"values"`
	}
	if err := json.Unmarshal([]byte(got[1].body), &vr); err != nil {
		t.Fatalf("update body: %v", err)
	}
	if len(vr.Values) != 3 {
		t.Fatalf("expected 3 rows written, got %v", vr.Values)
	}
	if vr.Values[2][2] != "Babar" {
		t.Errorf("unexpected row: %v", vr.Values[2])
	}
}

func TestWriteSnapshot_APIError(t *testing.T) {
	srv, calls := newFakeSheets(t, http.StatusForbidden)

	c, err := New(context.Background(), Config{SpreadsheetID: "sid"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = c.WriteSnapshot(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "clear Bills!A:E") {
		t.Fatalf("expected clear error, got %v", err)
	}
	if n := len(calls()); n != 1 {
		t.Errorf("update must not run after a failed clear, got %d calls", n)
	}
}

func TestWriteSnapshot_Uninitialized(t *testing.T) {
	c := &Client{spreadsheetID: "sid", sheetName: "Bills"}
	if err := c.WriteSnapshot(context.Background(), nil); err == nil {
		t.Fatal("expected error without service")
	}
}

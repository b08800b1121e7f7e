package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"billrecords/internal/core"
	"billrecords/internal/ledger"
	applog "billrecords/internal/log"
	"billrecords/internal/metrics"
	"billrecords/internal/middleware/ratelimit"
	"billrecords/internal/storage/memory"
)

type testEnv struct {
	srv   *Server
	store *memory.Store
	led   *ledger.Ledger
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	store := memory.New()
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	led, err := ledger.Open(context.Background(), store, core.DefaultUsers(), ledger.Options{
		Now: func() time.Time {
			calls++
			return start.Add(time.Duration(calls) * time.Second)
		},
		Logger: quietLogger(),
	})
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	srv, err := NewServer(":0", led, opts)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, store: store, led: led}
}

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard})
}

func (e *testEnv) do(t *testing.T, method, path string, form url.Values, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodGet, "/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"Bill Records", "Zohaib", "Babar", "Mustafa", "No bills yet.", "0.00"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing security headers")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}

	rr = env.do(t, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"ok"`) {
		t.Fatalf("healthz status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/static/style.css", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("static status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/nope", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t, Options{Checks: map[string]ReadyCheck{
		"storage": func(context.Context) error { return nil },
	}})
	if rr := env.do(t, http.MethodGet, "/readyz", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rr.Code)
	}

	env = newTestEnv(t, Options{Checks: map[string]ReadyCheck{
		"storage": func(context.Context) error { return errors.New("disk gone") },
	}})
	rr := env.do(t, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "disk gone") {
		t.Errorf("readyz body should name the failure: %s", rr.Body.String())
	}
}

func TestSelectAndSaveFlow(t *testing.T) {
	env := newTestEnv(t, Options{})

	rr := env.do(t, http.MethodPost, "/select", url.Values{"user_id": {"2"}}, nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("select status=%d location=%q", rr.Code, rr.Header().Get("Location"))
	}

	rr = env.do(t, http.MethodPost, "/amount", url.Values{"amount": {"12.5"}}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("amount status=%d", rr.Code)
	}
	if got := env.led.PendingAmount(); got != "12.5" {
		t.Fatalf("pending amount = %q", got)
	}

	rr = env.do(t, http.MethodPost, "/bills", url.Values{}, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("save status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/bills", nil, nil)
	var bills []core.Bill
	if err := json.Unmarshal(rr.Body.Bytes(), &bills); err != nil {
		t.Fatalf("decode bills: %v", err)
	}
	if len(bills) != 1 || bills[0].UserName != "Babar" || bills[0].Amount != 12.5 {
		t.Fatalf("unexpected bills: %+v", bills)
	}

	rr = env.do(t, http.MethodGet, "/api/totals", nil, nil)
	var totals totalsJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals.GrandTotal != "12.50" {
		t.Errorf("grand total = %q", totals.GrandTotal)
	}
	for _, u := range totals.Users {
		want := "0.00"
		if u.ID == 2 {
			want = "12.50"
			if !u.Selected {
				t.Error("Babar should stay selected")
			}
		}
		if u.Total != want {
			t.Errorf("total for %s = %q, want %q", u.Name, u.Total, want)
		}
	}

	rr = env.do(t, http.MethodGet, "/", nil, nil)
	page := rr.Body.String()
	for _, want := range []string{
		`<td class="num">₹12.50</td>`,
		`<div class="card" data-user-id="2">`,
		`<span class="total">₹12.50</span>`,
		`<span class="total">₹0.00</span>`,
		`<strong>₹12.50</strong>`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSaveBillValidation(t *testing.T) {
	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantText string
	}{
		{"no user", url.Values{"amount": {"10"}}, http.StatusUnprocessableEntity, "Please select a user"},
		{"invalid amount", url.Values{"user_id": {"1"}, "amount": {"abc"}}, http.StatusUnprocessableEntity, "Please enter a valid amount"},
		{"empty amount", url.Values{"user_id": {"1"}, "amount": {""}}, http.StatusUnprocessableEntity, "Please enter a valid amount"},
		{"unknown user", url.Values{"user_id": {"99"}, "amount": {"10"}}, http.StatusUnprocessableEntity, "Unknown user"},
		{"malformed user id", url.Values{"user_id": {"x"}, "amount": {"10"}}, http.StatusBadRequest, "invalid user id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, Options{})
			rr := env.do(t, http.MethodPost, "/bills", tt.form, nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("status=%d want %d", rr.Code, tt.wantCode)
			}
			if !strings.Contains(rr.Body.String(), tt.wantText) {
				t.Errorf("body missing %q: %s", tt.wantText, rr.Body.String())
			}
			if n := len(env.led.Bills()); n != 0 {
				t.Errorf("ledger changed on rejection: %d bills", n)
			}
		})
	}
}

func TestSaveBillJSON(t *testing.T) {
	env := newTestEnv(t, Options{})
	accept := map[string]string{"Accept": "application/json"}

	rr := env.do(t, http.MethodPost, "/bills", url.Values{"user_id": {"1"}, "amount": {"5"}}, accept)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	var bill core.Bill
	if err := json.Unmarshal(rr.Body.Bytes(), &bill); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bill.UserName != "Zohaib" || bill.Amount != 5 || bill.ID == 0 {
		t.Fatalf("unexpected bill: %+v", bill)
	}

	rr = env.do(t, http.MethodPost, "/bills", url.Values{"amount": {"nope"}}, accept)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"error":"Please enter a valid amount"`) {
		t.Errorf("unexpected body: %s", rr.Body.String())
	}

	path := "/bills/" + idString(bill.ID) + "/delete"
	rr = env.do(t, http.MethodPost, path, nil, accept)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestDeleteBill(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/bills", url.Values{"user_id": {"3"}, "amount": {"40"}}, nil)
	bills := env.led.Bills()
	if len(bills) != 1 {
		t.Fatalf("setup: %d bills", len(bills))
	}

	rr := env.do(t, http.MethodPost, "/bills/abc/delete", nil, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad id status=%d", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/bills/12345/delete", nil, nil)
	if rr.Code != http.StatusSeeOther || len(env.led.Bills()) != 1 {
		t.Fatalf("unknown id: status=%d bills=%d", rr.Code, len(env.led.Bills()))
	}

	rr = env.do(t, http.MethodPost, "/bills/"+idString(bills[0].ID)+"/delete", nil, nil)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if n := len(env.led.Bills()); n != 0 {
		t.Fatalf("bill not deleted, %d left", n)
	}
}

func TestStorageFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	_ = env.store.Close()

	rr := env.do(t, http.MethodPost, "/bills", url.Values{"user_id": {"1"}, "amount": {"10"}}, nil)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if n := len(env.led.Bills()); n != 0 {
		t.Fatalf("failed write must not change the ledger, got %d bills", n)
	}
}

func TestPendingAmountIsEscaped(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.do(t, http.MethodPost, "/amount", url.Values{"amount": {`"><script>x</script>`}}, nil)

	body := env.do(t, http.MethodGet, "/", nil, nil).Body.String()
	if strings.Contains(body, "<script>x</script>") {
		t.Fatal("pending amount rendered unescaped")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, path := range []string{"/select", "/amount", "/bills"} {
		if rr := env.do(t, http.MethodGet, path, nil, nil); rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s status=%d", path, rr.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Options{RateLimit: ratelimit.Config{RequestsPerMinute: 1, Methods: []string{http.MethodPost}}})

	if rr := env.do(t, http.MethodPost, "/amount", url.Values{"amount": {"1"}}, nil); rr.Code != http.StatusSeeOther {
		t.Fatalf("first post status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodPost, "/amount", url.Values{"amount": {"2"}}, nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post status=%d", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, "/", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("page loads are not limited, status=%d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, Options{Metrics: metrics.New()})
	env.do(t, http.MethodGet, "/", nil, nil)

	rr := env.do(t, http.MethodGet, "/metrics", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `billrecords_http_request_duration_seconds_count{method="GET",route="GET /{$}",status="200"} 1`) {
		t.Errorf("request duration not recorded:\n%s", rr.Body.String())
	}

	env = newTestEnv(t, Options{})
	if rr := env.do(t, http.MethodGet, "/metrics", nil, nil); rr.Code != http.StatusNotFound {
		t.Errorf("metrics without recorder status=%d", rr.Code)
	}
}

package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"

	"carteira/internal/core"
	ports "carteira/internal/sheets"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected credentials error, got: %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	cases := []struct {
		base string
		year int
		want string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"2024 Ledger", 2025, "2024 Ledger"},
		{"  Ledger ", 2024, "2024 Ledger"},
		{"", 2024, ""},
	}
	for _, tc := range cases {
		if got := yearPrefixedName(tc.base, tc.year); got != tc.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tc.base, tc.year, got, tc.want)
		}
	}
}

type appendCall struct {
	rng    string
	values [][]any
}

func fakeSheetsServer(t *testing.T) (*httptest.Server, *[]appendCall) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []appendCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, _ := url.PathUnescape(r.URL.EscapedPath())
		if r.Method != http.MethodPost || !strings.HasSuffix(path, ":append") {
			http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
			return
		}
		if got := r.URL.Query().Get("valueInputOption"); got != "USER_ENTERED" {
			http.Error(w, "bad valueInputOption "+got, http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var vr struct {
			Values [][]any `json:"values"`
		}
		if err := json.Unmarshal(body, &vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rng := path[strings.Index(path, "/values/")+len("/values/") : len(path)-len(":append")]
		mu.Lock()
		calls = append(calls, appendCall{rng: rng, values: vr.Values})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		sheet := strings.TrimSuffix(rng, "!A:K")
		json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sid",
			"updates": map[string]any{
				"updatedRange": "'" + sheet + "'!A2:K" + strconv.Itoa(1+len(vr.Values)),
				"updatedRows":  len(vr.Values),
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestAppendTransactionsSplitsByYear(t *testing.T) {
	srv, calls := fakeSheetsServer(t)
	c, err := New(context.Background(), Config{SpreadsheetID: "sid"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first := core.NewDate(2024, 11, 30)
	var txs []core.Transaction
	for i := 0; i < 4; i++ {
		txs = append(txs, core.Transaction{
			ID: "t" + strconv.Itoa(i+1), OwnerID: "u1", Date: first.AddMonths(i),
			Description: "Sofa", Amount: core.Money{Cents: -2500}, Category: "Home",
			Type: core.Expense, PaymentMethod: core.Card, CreditCardID: "c1",
			InstallmentGroupID: "g1", InstallmentIndex: i + 1, InstallmentCount: 4,
		})
	}

	ref, err := c.AppendTransactions(context.Background(), txs)
	if err != nil {
		t.Fatalf("AppendTransactions: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected one append per year, got %d", len(*calls))
	}
	if (*calls)[0].rng != "2024 Ledger!A:K" || len((*calls)[0].values) != 2 {
		t.Errorf("first call = %+v", (*calls)[0])
	}
	if (*calls)[1].rng != "2025 Ledger!A:K" || len((*calls)[1].values) != 2 {
		t.Errorf("second call = %+v", (*calls)[1])
	}
	row := (*calls)[0].values[1]
	if row[1] != "2024-12-31" || row[3] != "-25.00" || row[9] != "2/4" {
		t.Errorf("unexpected row %v", row)
	}
	if !strings.Contains(ref, "2024 Ledger") || !strings.Contains(ref, "2025 Ledger") {
		t.Errorf("unexpected ref %q", ref)
	}
}

func TestAppendTransactionsUnknownSpreadsheet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`)
	}))
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{SpreadsheetID: "missing"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.AppendTransactions(context.Background(), []core.Transaction{
		{ID: "t1", Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: -100}, InstallmentIndex: 1, InstallmentCount: 1},
	})
	if !errors.Is(err, ports.ErrRejected) {
		t.Fatalf("err = %v, want %v", err, ports.ErrRejected)
	}
}

func TestClassifyAPIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		rejected bool
	}{
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, true},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden}, true},
		{"throttled", &googleapi.Error{Code: http.StatusTooManyRequests}, false},
		{"unavailable", &googleapi.Error{Code: http.StatusServiceUnavailable}, false},
		{"network", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(classifyAPIError(tt.err), ports.ErrRejected); got != tt.rejected {
				t.Errorf("rejected = %v, want %v", got, tt.rejected)
			}
		})
	}
}

func TestAppendTransactionsWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.AppendTransactions(context.Background(), []core.Transaction{{}}); err == nil {
		t.Fatal("expected error when the service is not initialized")
	}
}

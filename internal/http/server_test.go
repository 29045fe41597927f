package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carteira/internal/aggregate"
	"carteira/internal/cache"
	"carteira/internal/entitlement"
	"carteira/internal/ledger/memory"
	"carteira/internal/log"
	"carteira/internal/services"
)

const (
	testSecret         = "0123456789abcdef0123456789abcdef"
	testCheckoutSecret = "fedcba9876543210fedcba9876543210"
)

type testAPI struct {
	srv      *Server
	tokens   *TokenVerifier
	provider *TokenVerifier
}

func newTestAPI(t *testing.T, opts Options) *testAPI {
	t.Helper()
	store := memory.New()
	resolver := entitlement.NewResolver(store, log.Discard())
	summaries := cache.NewLRUCache[aggregate.Summary](16, time.Minute)

	tokens := NewTokenVerifier(testSecret, "carteira-test")
	provider := NewTokenVerifier(testCheckoutSecret, "")
	opts.Tokens = tokens
	opts.Checkout = provider
	opts.Logger = log.Discard()
	opts.Ledger = services.NewLedgerService(store, resolver, nil, summaries, log.Discard())
	opts.Analysis = services.NewAnalysisService(store, resolver, nil, summaries, log.Discard())
	opts.Accounts = services.NewAccountService(resolver, store, nil, log.Discard())

	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testAPI{srv: srv, tokens: tokens, provider: provider}
}

func (a *testAPI) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		tok, err := a.tokens.Issue(user, time.Hour)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) register(t *testing.T, user string) profileResponse {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/api/register", user, `{"email":"`+user+`@example.com"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register %s: status=%d body=%s", user, rr.Code, rr.Body)
	}
	var p profileResponse
	decodeBody(t, rr, &p)
	return p
}

// doRaw sends body with tok as the bearer token, bypassing user token
// issuance.
func (a *testAPI) doRaw(method, path, tok, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// confirm posts a checkout confirmation the way the payment provider does.
func (a *testAPI) confirm(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	tok, err := a.provider.Issue(CheckoutSubject, time.Hour)
	if err != nil {
		t.Fatalf("issue provider token: %v", err)
	}
	return a.doRaw(http.MethodPost, "/api/checkout/confirm", tok, body)
}

func (a *testAPI) checkout(t *testing.T, user, plan string) {
	t.Helper()
	rr := a.confirm(t, `{"userId":"`+user+`","targetPlan":"`+plan+`"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("checkout %s: status=%d body=%s", user, rr.Code, rr.Body)
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorResponse
	decodeBody(t, rr, &e)
	return e.Kind
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := api.do(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	down := newTestAPI(t, Options{Ready: func(context.Context) error { return errors.New("db down") }})
	if rr := down.do(t, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing check: status=%d", rr.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	api := newTestAPI(t, Options{})
	rr := api.do(t, http.MethodGet, "/healthz", "", "")

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s=%q want %q", header, got, want)
		}
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI(t, Options{})

	rr := api.do(t, http.MethodGet, "/api/me", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d", rr.Code)
	}
	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("missing WWW-Authenticate")
	}

	other := NewTokenVerifier("another-secret-another-secret-xx", "carteira-test")
	tok, _ := other.Issue("u1", time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	api.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("foreign token: status=%d", rr.Code)
	}

	expired, _ := api.tokens.Issue("u1", -time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	rr = httptest.NewRecorder()
	api.srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status=%d", rr.Code)
	}
}

func TestRegisterAndMe(t *testing.T) {
	api := newTestAPI(t, Options{})

	if p := api.register(t, "first"); p.Role != "admin" {
		t.Fatalf("first user role=%s, want admin", p.Role)
	}
	p := api.register(t, "second")
	if p.Role != "pending" || len(p.Features) != 0 {
		t.Fatalf("second user: %+v", p)
	}

	rr := api.do(t, http.MethodPost, "/api/register", "second", `{"email":"second@example.com"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register: status=%d", rr.Code)
	}

	api.checkout(t, "second", "basico")
	rr = api.do(t, http.MethodGet, "/api/me", "second", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("me: status=%d", rr.Code)
	}
	decodeBody(t, rr, &p)
	if p.Role != "basico" || p.CreditCardLimit == nil || *p.CreditCardLimit != 1 {
		t.Fatalf("me after checkout: %+v", p)
	}
}

func TestCheckoutConfirm(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register(t, "root")
	api.register(t, "u1")

	rr := api.confirm(t, `{"userId":"u1","targetPlan":"admin"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("checkout to admin: status=%d", rr.Code)
	}
	rr = api.confirm(t, `{"targetPlan":"completo"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("checkout without userId: status=%d", rr.Code)
	}
	rr = api.confirm(t, `{"userId":"ghost","targetPlan":"completo"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("checkout for unknown user: status=%d", rr.Code)
	}

	rr = api.confirm(t, `{"userId":"u1","targetPlan":"completo"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("checkout: status=%d body=%s", rr.Code, rr.Body)
	}
	var change roleChangeResponse
	decodeBody(t, rr, &change)
	if change.From != "pending" || change.Profile.Role != "completo" || !change.Changed {
		t.Fatalf("unexpected change %+v", change)
	}

	rr = api.confirm(t, `{"userId":"u1","targetPlan":"completo"}`)
	if rr.Code != http.StatusConflict || errorKind(t, rr) != "invalid_transition" {
		t.Fatalf("same plan checkout: status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestCheckoutConfirmRejectsUserTokens(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register(t, "root")
	api.register(t, "mallory")

	rr := api.do(t, http.MethodPost, "/api/checkout/confirm", "mallory", `{"userId":"mallory","targetPlan":"completo"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("user token: status=%d body=%s", rr.Code, rr.Body)
	}
	rr = api.do(t, http.MethodPost, "/api/checkout/confirm", "root", `{"userId":"mallory","targetPlan":"completo"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("admin token: status=%d body=%s", rr.Code, rr.Body)
	}

	// right secret, wrong subject
	tok, _ := api.provider.Issue("mallory", time.Hour)
	if rr = api.doRaw(http.MethodPost, "/api/checkout/confirm", tok, `{"userId":"mallory","targetPlan":"completo"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("provider secret with user subject: status=%d", rr.Code)
	}
	if rr = api.doRaw(http.MethodPost, "/api/checkout/confirm", "", `{"userId":"mallory","targetPlan":"completo"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status=%d", rr.Code)
	}

	rr = api.do(t, http.MethodGet, "/api/me", "mallory", "")
	var p profileResponse
	decodeBody(t, rr, &p)
	if p.Role != "pending" {
		t.Fatalf("role after rejected confirmations = %s, want pending", p.Role)
	}
	if rr = api.do(t, http.MethodPost, "/api/investments", "mallory", `{"name":"Petrobras","ticker":"petr4","quantity":"1","valuePerShare":"38.50"}`); rr.Code != http.StatusForbidden {
		t.Fatalf("investment as pending: status=%d", rr.Code)
	}
}

func TestCheckoutConfirmDisabled(t *testing.T) {
	srv := NewServer(":0", Options{Tokens: NewTokenVerifier(testSecret, ""), Logger: log.Discard()})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodPost, "/api/checkout/confirm", strings.NewReader(`{"userId":"u1","targetPlan":"basico"}`))
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register(t, "root")
	api.register(t, "u1")

	if rr := api.do(t, http.MethodGet, "/api/admin/users", "u1", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("list users as pending: status=%d", rr.Code)
	}
	rr := api.do(t, http.MethodPost, "/api/admin/roles", "u1", `{"userId":"u1","targetRole":"admin"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("self grant: status=%d", rr.Code)
	}

	rr = api.do(t, http.MethodPost, "/api/admin/roles", "root", `{"userId":"u1","targetRole":"completo"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("grant completo: status=%d body=%s", rr.Code, rr.Body)
	}
	rr = api.do(t, http.MethodPost, "/api/admin/roles", "root", `{"userId":"u1","targetRole":"admin"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("grant admin: status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := api.do(t, http.MethodGet, "/api/admin/users", "u1", ""); rr.Code != http.StatusOK {
		t.Fatalf("list users as new admin: status=%d", rr.Code)
	}

	rr = api.do(t, http.MethodGet, "/api/admin/users", "root", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list users: status=%d", rr.Code)
	}
	var users []profileResponse
	decodeBody(t, rr, &users)
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}
}

func TestCreateInstallmentTransaction(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register(t, "root")
	api.register(t, "u1")
	api.checkout(t, "u1", "basico")

	rr := api.do(t, http.MethodPost, "/api/credit-cards", "u1", `{"holderName":"Ana","numberMasked":"**** 4242","limit":"5000.00"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add card: status=%d body=%s", rr.Code, rr.Body)
	}
	var card map[string]string
	decodeBody(t, rr, &card)

	body := `{"date":"2024-01-31","description":"Notebook","amount":"100.00","category":"Electronics",` +
		`"type":"expense","paymentMethod":"card","creditCardId":"` + card["id"] + `","installments":3}`
	rr = api.do(t, http.MethodPost, "/api/transactions", "u1", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body)
	}
	var commit commitResponse
	decodeBody(t, rr, &commit)
	if commit.GroupID == "" || len(commit.IDs) != 3 {
		t.Fatalf("unexpected commit %+v", commit)
	}

	rr = api.do(t, http.MethodGet, "/api/transactions/groups/"+commit.GroupID, "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get group: status=%d body=%s", rr.Code, rr.Body)
	}
	var group groupResponse
	decodeBody(t, rr, &group)
	if group.Total != "-100.00" || len(group.Installments) != 3 {
		t.Fatalf("unexpected group %+v", group)
	}
	wantDates := []string{"2024-01-31", "2024-02-29", "2024-03-31"}
	wantCents := []int64{-3333, -3333, -3334}
	for i, inst := range group.Installments {
		if inst.Date != wantDates[i] || inst.AmountCents != wantCents[i] {
			t.Errorf("installment %d: date=%s cents=%d", i+1, inst.Date, inst.AmountCents)
		}
		if inst.InstallmentIndex != i+1 || inst.InstallmentCount != 3 {
			t.Errorf("installment %d: position %d/%d", i+1, inst.InstallmentIndex, inst.InstallmentCount)
		}
	}

	if rr := api.do(t, http.MethodGet, "/api/transactions/groups/"+commit.GroupID, "root", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("group of another owner: status=%d", rr.Code)
	}

	rr = api.do(t, http.MethodGet, "/api/transactions", "u1", "")
	var txs []transactionResponse
	decodeBody(t, rr, &txs)
	if len(txs) != 3 {
		t.Fatalf("listed %d transactions, want 3", len(txs))
	}
}

func TestCreateTransactionRejections(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register(t, "root")
	api.register(t, "pending")
	api.register(t, "u1")
	api.checkout(t, "u1", "basico")

	valid := `{"description":"Lunch","amount":"12.50","category":"Food","type":"expense","paymentMethod":"cash"}`

	tests := []struct {
		name   string
		user   string
		body   string
		status int
	}{
		{"pending user", "pending", valid, http.StatusForbidden},
		{"bad amount", "u1", `{"description":"Lunch","amount":"abc","category":"Food","type":"expense","paymentMethod":"cash"}`, http.StatusUnprocessableEntity},
		{"negative amount", "u1", `{"description":"Lunch","amount":"-5","category":"Food","type":"expense","paymentMethod":"cash"}`, http.StatusUnprocessableEntity},
		{"blank description", "u1", `{"description":"  ","amount":"5","category":"Food","type":"expense","paymentMethod":"cash"}`, http.StatusUnprocessableEntity},
		{"card without id", "u1", `{"description":"Lunch","amount":"5","category":"Food","type":"expense","paymentMethod":"card"}`, http.StatusUnprocessableEntity},
		{"unknown card", "u1", `{"description":"Lunch","amount":"5","category":"Food","type":"expense","paymentMethod":"card","creditCardId":"nope"}`, http.StatusNotFound},
		{"unknown field", "u1", `{"description":"Lunch","amount":"5","category":"Food","type":"expense","paymentMethod":"cash","tip":1}`, http.StatusUnprocessableEntity},
		{"bad date", "u1", `{"date":"31/01/2024","description":"Lunch","amount":"5","category":"Food","type":"expense","paymentMethod":"cash"}`, http.StatusUnprocessableEntity},
		{"malformed json", "u1", `{"description":`, http.StatusUnprocessableEntity},
		{"valid", "u1", valid, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodPost, "/api/transactions", tt.user, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body)
			}
		})
	}
}

func TestCreditCardQuota(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register(t, "root")
	api.register(t, "u1")
	api.checkout(t, "u1", "basico")

	card := `{"holderName":"Ana"}`
	if rr := api.do(t, http.MethodPost, "/api/credit-cards", "u1", card); rr.Code != http.StatusCreated {
		t.Fatalf("first card: status=%d body=%s", rr.Code, rr.Body)
	}
	if rr := api.do(t, http.MethodPost, "/api/credit-cards", "u1", card); rr.Code != http.StatusForbidden {
		t.Fatalf("second card on basico: status=%d", rr.Code)
	}

	rr := api.do(t, http.MethodGet, "/api/credit-cards", "u1", "")
	var cards []creditCardResponse
	decodeBody(t, rr, &cards)
	if len(cards) != 1 {
		t.Fatalf("listed %d cards, want 1", len(cards))
	}
}

func TestInvestments(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register(t, "root")
	api.register(t, "u1")
	api.checkout(t, "u1", "basico")

	inv := `{"name":"Petrobras","ticker":"petr4","type":"stock","quantity":"10","valuePerShare":"38.50","averagePrice":"30.00"}`
	if rr := api.do(t, http.MethodPost, "/api/investments", "u1", inv); rr.Code != http.StatusForbidden {
		t.Fatalf("investment on basico: status=%d", rr.Code)
	}

	if rr := api.do(t, http.MethodPost, "/api/investments", "root", inv); rr.Code != http.StatusCreated {
		t.Fatalf("investment on admin: status=%d body=%s", rr.Code, rr.Body)
	}
	rr := api.do(t, http.MethodGet, "/api/investments", "root", "")
	var invs []investmentResponse
	decodeBody(t, rr, &invs)
	if len(invs) != 1 || invs[0].Ticker != "PETR4" {
		t.Fatalf("unexpected investments %+v", invs)
	}
}

func TestDashboardAndAnalysis(t *testing.T) {
	api := newTestAPI(t, Options{})
	api.register(t, "root")
	api.register(t, "u1")
	api.checkout(t, "u1", "completo")

	add := func(n int) {
		for i := 0; i < n; i++ {
			rr := api.do(t, http.MethodPost, "/api/transactions", "u1",
				`{"date":"2025-03-10","description":"Coffee","amount":"4.00","category":"Food","type":"expense","paymentMethod":"pix"}`)
			if rr.Code != http.StatusCreated {
				t.Fatalf("create: status=%d body=%s", rr.Code, rr.Body)
			}
		}
	}

	add(9)
	rr := api.do(t, http.MethodPost, "/api/analysis", "u1", "")
	if rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("analysis with 9 transactions: status=%d body=%s", rr.Code, rr.Body)
	}

	add(1)
	rr = api.do(t, http.MethodGet, "/api/dashboard", "u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard: status=%d body=%s", rr.Code, rr.Body)
	}
	var dash dashboardResponse
	decodeBody(t, rr, &dash)
	if dash.TransactionCount != 10 || !dash.CanAnalyze {
		t.Fatalf("unexpected dashboard %+v", dash)
	}

	// no advisor configured
	rr = api.do(t, http.MethodPost, "/api/analysis", "u1", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("analysis without advisor: status=%d body=%s", rr.Code, rr.Body)
	}
}

func TestRateLimit(t *testing.T) {
	api := newTestAPI(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := api.do(t, http.MethodGet, "/healthz", "", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d: status=%d", i+1, rr.Code)
		}
	}
	rr := api.do(t, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
	if errorKind(t, rr) != "rate_limited" {
		t.Fatalf("unexpected body %s", rr.Body)
	}
}

func TestSuspiciousRequestRejected(t *testing.T) {
	api := newTestAPI(t, Options{})
	rr := api.do(t, http.MethodGet, "/api/../.env", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrMissingToken, http.StatusUnauthorized},
		{services.ErrAdviceUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got, _ := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v)=%d want %d", tt.err, got, tt.want)
		}
	}
}

package syncer_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/bankapi"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/certs/certstest"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/config"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/db"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/ledger"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/statement"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncer"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioA = `{"transactions":[{"postingDate":"2024-05-01","amount":-150.00,"description":"Bank fee","transactionId":"TX1"}]}`

// fakeBank serves the token and account endpoints behind mutual TLS.
type fakeBank struct {
	srv           *httptest.Server
	statementBody string
	balanceBody   string
	tokenStatus   int
	apiStatus     int
	tokenCalls    atomic.Int32
	apiCalls      atomic.Int32
}

// newFakeBank applies opts before the server starts serving.
func newFakeBank(t *testing.T, opts ...func(*fakeBank)) *fakeBank {
	t.Helper()

	fb := &fakeBank{
		statementBody: scenarioA,
		balanceBody:   `{"available":1200.50}`,
		tokenStatus:   http.StatusOK,
		apiStatus:     http.StatusOK,
	}
	for _, opt := range opts {
		opt(fb)
	}

	r := chi.NewRouter()
	r.Post("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		fb.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if fb.tokenStatus != http.StatusOK {
			w.WriteHeader(fb.tokenStatus)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":300}`))
	})
	r.Get("/api/banks/{bank}/accounts/{account}/balance", func(w http.ResponseWriter, r *http.Request) {
		fb.apiCalls.Add(1)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(fb.apiStatus)
		_, _ = w.Write([]byte(fb.balanceBody))
	})
	r.Get("/api/banks/{bank}/accounts/{account}/statement", func(w http.ResponseWriter, r *http.Request) {
		fb.apiCalls.Add(1)
		assert.Equal(t, "756", chi.URLParam(r, "bank"))
		assert.Equal(t, "0001.123456", chi.URLParam(r, "account"))
		w.WriteHeader(fb.apiStatus)
		_, _ = w.Write([]byte(fb.statementBody))
	})

	fb.srv = httptest.NewUnstartedServer(r)
	fb.srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert}
	fb.srv.StartTLS()
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBank) rootCAs() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(fb.srv.Certificate())
	return pool
}

func bankConfig(t *testing.T, fb *fakeBank) config.BankConfig {
	t.Helper()
	return config.BankConfig{
		ClientID:       "client-1",
		ClientSecret:   "secret-1",
		CertBundle:     certstest.NewIdentity(t, "sync-client").BundleBase64(t, "pw"),
		CertPassphrase: "pw",
		APIURL:         fb.srv.URL + "/api",
		TokenURL:       fb.srv.URL + "/oauth/token",
	}
}

func openStore(t *testing.T) *db.LedgerStore {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return db.NewLedgerStore(conn)
}

func statementRequest() syncer.Request {
	return syncer.Request{
		Action:            syncer.ActionStatement,
		TenantID:          "t1",
		BranchID:          "b1",
		InternalAccountID: "acc-1",
		BankID:            "756",
		BranchCode:        "0001",
		AccountNumber:     "123456",
		DateFrom:          "2024-05-01",
		DateTo:            "2024-05-31",
	}
}

func TestStatementSyncInsertsThenIgnores(t *testing.T) {
	fb := newFakeBank(t)
	store := openStore(t)
	svc := syncer.NewService(bankConfig(t, fb), store, syncer.WithRootCAs(fb.rootCAs()))
	ctx := context.Background()

	result, err := svc.Sync(ctx, statementRequest())
	require.NoError(t, err)
	assert.Equal(t, syncer.ActionStatement, result.Action)
	assert.Equal(t, &syncer.Summary{Received: 1, Inserted: 1, Ignored: 0}, result.Summary)

	scope := ledger.Scope{TenantID: "t1", BranchID: "b1", AccountID: "acc-1"}
	entries, err := store.ListEntries(ctx, scope)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-05-01", entries[0].Date.Format(statement.DateLayout))
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("-150.00")))
	assert.Equal(t, statement.Debit, entries[0].Direction)
	assert.Equal(t, "TX1", entries[0].ExternalDocumentID)
	assert.False(t, entries[0].Reconciled)

	result, err = svc.Sync(ctx, statementRequest())
	require.NoError(t, err)
	assert.Equal(t, &syncer.Summary{Received: 1, Inserted: 0, Ignored: 1}, result.Summary)

	entries, err = store.ListEntries(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
}

func TestStatementSyncUnrecognizedShape(t *testing.T) {
	fb := newFakeBank(t, func(fb *fakeBank) { fb.statementBody = `{"foo":"bar"}` })
	store := openStore(t)
	svc := syncer.NewService(bankConfig(t, fb), store, syncer.WithRootCAs(fb.rootCAs()))

	result, err := svc.Sync(context.Background(), statementRequest())
	assert.Nil(t, result)

	var se *syncerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, syncerr.KindShape, se.Kind)
	assert.JSONEq(t, `{"foo":"bar"}`, string(se.Raw))

	stats, err := store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
	assert.Zero(t, stats.TotalRuns)
}

func TestStatementSyncCustomAliases(t *testing.T) {
	fb := newFakeBank(t, func(fb *fakeBank) {
		fb.statementBody = `{"movements":[{"bookedOn":"2024-05-10","sum":"42.10","text":"Offering"}]}`
	})
	store := openStore(t)

	aliases := statement.DefaultAliases()
	aliases.Containers = []string{"movements"}
	aliases.Date = []string{"bookedOn"}
	aliases.Amount = []string{"sum"}
	aliases.Description = []string{"text"}

	svc := syncer.NewService(bankConfig(t, fb), store,
		syncer.WithRootCAs(fb.rootCAs()), syncer.WithAliases(aliases))

	result, err := svc.Sync(context.Background(), statementRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Summary.Inserted)
}

func TestBalanceSync(t *testing.T) {
	fb := newFakeBank(t)
	svc := syncer.NewService(bankConfig(t, fb), openStore(t), syncer.WithRootCAs(fb.rootCAs()))

	req := statementRequest()
	req.Action = syncer.ActionBalance
	req.InternalAccountID, req.DateFrom, req.DateTo = "", "", ""

	result, err := svc.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, syncer.ActionBalance, result.Action)
	assert.Nil(t, result.Summary)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Balance, &payload))
	assert.Equal(t, 1200.50, payload["available"])
}

func TestSyncRejectsInvalidRequestBeforeNetwork(t *testing.T) {
	fb := newFakeBank(t)
	svc := syncer.NewService(bankConfig(t, fb), openStore(t), syncer.WithRootCAs(fb.rootCAs()))

	req := statementRequest()
	req.DateTo = ""

	_, err := svc.Sync(context.Background(), req)
	assert.True(t, syncerr.Is(err, syncerr.KindValidation))
	assert.ErrorContains(t, err, "dateTo")
	assert.Zero(t, fb.tokenCalls.Load())
	assert.Zero(t, fb.apiCalls.Load())
}

func TestSyncMissingConfiguration(t *testing.T) {
	fb := newFakeBank(t)
	cfg := bankConfig(t, fb)
	cfg.ClientSecret = ""
	svc := syncer.NewService(cfg, openStore(t))

	_, err := svc.Sync(context.Background(), statementRequest())
	assert.True(t, syncerr.Is(err, syncerr.KindConfig))
	assert.ErrorContains(t, err, "bank.clientSecret")
	assert.Zero(t, fb.tokenCalls.Load())
}

func TestSyncWrongPassphrase(t *testing.T) {
	fb := newFakeBank(t)
	cfg := bankConfig(t, fb)
	cfg.CertPassphrase = "not-it"
	svc := syncer.NewService(cfg, openStore(t), syncer.WithRootCAs(fb.rootCAs()))

	_, err := svc.Sync(context.Background(), statementRequest())
	assert.True(t, syncerr.Is(err, syncerr.KindCertificate))
	assert.Zero(t, fb.tokenCalls.Load())
}

func TestSyncAuthRejected(t *testing.T) {
	fb := newFakeBank(t, func(fb *fakeBank) { fb.tokenStatus = http.StatusUnauthorized })
	svc := syncer.NewService(bankConfig(t, fb), openStore(t), syncer.WithRootCAs(fb.rootCAs()))

	_, err := svc.Sync(context.Background(), statementRequest())

	var se *syncerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, syncerr.KindAuth, se.Kind)
	assert.Contains(t, se.Body, "invalid_client")
	assert.Zero(t, fb.apiCalls.Load())
}

func TestRequestValidate(t *testing.T) {
	base := statementRequest()

	tests := []struct {
		name    string
		mutate  func(r *syncer.Request)
		wantErr string
	}{
		{"valid statement", func(r *syncer.Request) {}, ""},
		{"valid balance without statement fields", func(r *syncer.Request) {
			r.Action = syncer.ActionBalance
			r.InternalAccountID, r.DateFrom, r.DateTo = "", "", ""
		}, ""},
		{"missing action", func(r *syncer.Request) { r.Action = "" }, "action"},
		{"unknown action", func(r *syncer.Request) { r.Action = "transfer" }, "unsupported action"},
		{"missing account number", func(r *syncer.Request) { r.AccountNumber = " " }, "accountNumber"},
		{"missing internal account", func(r *syncer.Request) { r.InternalAccountID = "" }, "internalAccountId"},
		{"bad date", func(r *syncer.Request) { r.DateFrom = "01/05/2024" }, "invalid dateFrom"},
		{"reversed window", func(r *syncer.Request) { r.DateFrom, r.DateTo = "2024-06-01", "2024-05-01" }, "before"},
		{"negative page", func(r *syncer.Request) { r.PageLimit = -1 }, "pageLimit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)

			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, syncerr.Is(err, syncerr.KindValidation))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRequestQueryDefaults(t *testing.T) {
	req := statementRequest()
	q := req.Query()
	assert.Equal(t, 1, q.PageOffset)
	assert.Equal(t, 50, q.PageLimit)

	req.PageOffset, req.PageLimit = 2, 10
	q = req.Query()
	assert.Equal(t, 2, q.PageOffset)
	assert.Equal(t, 10, q.PageLimit)
}

func TestSyncClosesSessionOnEveryExit(t *testing.T) {
	tests := []struct {
		name         string
		opt          func(*fakeBank)
		expectedKind syncerr.Kind
	}{
		{
			name: "success",
			opt:  func(fb *fakeBank) {},
		},
		{
			name:         "token rejected",
			opt:          func(fb *fakeBank) { fb.tokenStatus = http.StatusUnauthorized },
			expectedKind: syncerr.KindAuth,
		},
		{
			name: "statement fetch fails",
			opt: func(fb *fakeBank) {
				fb.apiStatus = http.StatusServiceUnavailable
				fb.statementBody = `{"error":"maintenance"}`
			},
			expectedKind: syncerr.KindUpstream,
		},
		{
			name:         "unrecognized payload",
			opt:          func(fb *fakeBank) { fb.statementBody = `{"status":"ok"}` },
			expectedKind: syncerr.KindShape,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBank(t, tt.opt)

			var sessions []*bankapi.Session
			svc := syncer.NewService(bankConfig(t, fb), openStore(t),
				syncer.WithRootCAs(fb.rootCAs()),
				syncer.WithSessionObserver(func(s *bankapi.Session) {
					assert.False(t, s.Closed())
					sessions = append(sessions, s)
				}),
			)

			_, err := svc.Sync(context.Background(), statementRequest())

			if tt.expectedKind == "" {
				require.NoError(t, err)
			} else {
				assert.Equal(t, tt.expectedKind, syncerr.KindOf(err))
			}
			require.Len(t, sessions, 1)
			assert.True(t, sessions[0].Closed())
		})
	}
}

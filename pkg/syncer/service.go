package syncer

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/bankapi"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/certs"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/config"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/ledger"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/statement"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
)

// Summary reports the outcome of a statement sync.
// Ignored counts entries that were normalized but not inserted.
type Summary struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
	Ignored  int `json:"ignored"`
}

// Result is the outcome of a sync. Balance is set for balance requests,
// Summary for statement requests.
type Result struct {
	Action  Action
	Balance json.RawMessage
	Summary *Summary
}

// Service runs sync requests. It keeps no state between invocations.
type Service struct {
	bank       config.BankConfig
	rootCAs    *x509.CertPool
	normalizer *statement.Normalizer
	filter     *ledger.DedupeFilter
	persister  *ledger.Persister
	newRunID   func() string

	// sessionOpened observes each session right after it is opened.
	sessionOpened func(*bankapi.Session)
}

// Option configures a Service.
type Option func(*Service)

// WithAliases replaces the default field alias tables.
func WithAliases(aliases statement.Aliases) Option {
	return func(s *Service) {
		s.normalizer = statement.NewNormalizer(aliases)
	}
}

// WithRootCAs sets the pool used to verify the bank's server certificate.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(s *Service) {
		s.rootCAs = pool
	}
}

// NewService creates a new Service. bank is injected once and never mutated.
func NewService(bank config.BankConfig, store ledger.Store, opts ...Option) *Service {
	s := &Service{
		bank:       bank,
		normalizer: statement.NewNormalizer(statement.DefaultAliases()),
		filter:     ledger.NewDedupeFilter(store),
		persister:  ledger.NewPersister(store),
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync runs one request to completion. Every step is sequential; any failure
// ends the invocation without retry, and nothing is persisted unless the
// whole pipeline reaches the final write.
func (s *Service) Sync(ctx context.Context, req Request) (*Result, error) {
	window, err := req.window()
	if err != nil {
		return nil, err
	}

	if err := s.bank.Validate(); err != nil {
		return nil, syncerr.Config("bank configuration incomplete", err)
	}

	identity, err := certs.Load(s.bank.CertBundle, s.bank.CertPassphrase)
	if err != nil {
		return nil, err
	}

	session, err := bankapi.Open(identity, bankapi.SessionConfig{
		Timeout: s.bank.Timeout,
		RootCAs: s.rootCAs,
	})
	if err != nil {
		return nil, syncerr.Certificate("failed to open mutual-TLS session", err)
	}
	defer session.Close()
	if s.sessionOpened != nil {
		s.sessionOpened(session)
	}

	auth := bankapi.NewAuthClient(bankapi.AuthConfig{
		ClientID:     s.bank.ClientID,
		ClientSecret: s.bank.ClientSecret,
		TokenURL:     s.bank.TokenURL,
		Scopes:       s.bank.Scopes,
	})
	token, err := auth.Token(ctx, session)
	if err != nil {
		return nil, err
	}

	client := bankapi.NewClient(s.bank.APIURL, session, token)

	if req.Action == ActionBalance {
		return s.balance(ctx, client, req)
	}
	return s.statement(ctx, client, req, window)
}

func (s *Service) balance(ctx context.Context, client *bankapi.Client, req Request) (*Result, error) {
	raw, err := client.Balance(ctx, req.Account())
	if err != nil {
		return nil, err
	}

	slog.Info("Fetched balance", "tenant_id", req.TenantID, "bank_id", req.BankID, "account", req.Account().Key())

	return &Result{Action: ActionBalance, Balance: raw}, nil
}

func (s *Service) statement(ctx context.Context, client *bankapi.Client, req Request, window ledger.Window) (*Result, error) {
	query := req.Query()
	raw, err := client.Statement(ctx, req.Account(), query)
	if err != nil {
		return nil, err
	}

	txns, err := s.normalizer.Normalize(raw)
	if err != nil {
		return nil, err
	}

	scope := req.Scope()
	fresh, err := s.filter.Filter(ctx, scope, window, txns)
	if err != nil {
		return nil, err
	}

	run := ledger.Run{
		ID:       s.newRunID(),
		Scope:    scope,
		Window:   window,
		Received: len(txns),
	}
	inserted, err := s.persister.Persist(ctx, run, fresh)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Received: len(txns),
		Inserted: inserted,
		Ignored:  len(txns) - inserted,
	}

	slog.Info("Statement synced",
		"run_id", run.ID,
		"tenant_id", scope.TenantID,
		"account_id", scope.AccountID,
		"from", req.DateFrom,
		"to", req.DateTo,
		"page_offset", query.PageOffset,
		"received", summary.Received,
		"inserted", summary.Inserted,
		"ignored", summary.Ignored,
	)

	return &Result{Action: ActionStatement, Summary: summary}, nil
}

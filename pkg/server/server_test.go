package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncer"
	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	result *syncer.Result
	err    error
	got    *syncer.Request
}

func (f *fakeSyncer) Sync(ctx context.Context, req syncer.Request) (*syncer.Result, error) {
	f.got = &req
	return f.result, f.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSyncStatementSuccess(t *testing.T) {
	fake := &fakeSyncer{result: &syncer.Result{
		Action:  syncer.ActionStatement,
		Summary: &syncer.Summary{Received: 1, Inserted: 1, Ignored: 0},
	}}

	rec := do(t, New(fake), http.MethodPost, "/sync", `{
		"action":"statement","tenantId":"t1","branchId":"b1","internalAccountId":"acc-1",
		"bankId":"756","branchCode":"0001","accountNumber":"123456",
		"dateFrom":"2024-05-01","dateTo":"2024-05-31","pageOffset":2,"pageLimit":25}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"received":1,"inserted":1,"ignored":0}`, rec.Body.String())

	require.NotNil(t, fake.got)
	assert.Equal(t, syncer.Request{
		Action:            syncer.ActionStatement,
		TenantID:          "t1",
		BranchID:          "b1",
		InternalAccountID: "acc-1",
		BankID:            "756",
		BranchCode:        "0001",
		AccountNumber:     "123456",
		DateFrom:          "2024-05-01",
		DateTo:            "2024-05-31",
		PageOffset:        2,
		PageLimit:         25,
	}, *fake.got)
}

func TestSyncBalanceSuccess(t *testing.T) {
	fake := &fakeSyncer{result: &syncer.Result{
		Action:  syncer.ActionBalance,
		Balance: json.RawMessage(`{"available":1200.5}`),
	}}

	rec := do(t, New(fake), http.MethodPost, "/sync", `{"action":"balance"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"available":1200.5}}`, rec.Body.String())
}

func TestSyncErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedBody string
	}{
		{
			name:         "validation",
			err:          syncerr.Validation("missing required fields for statement: dateTo"),
			expectedCode: http.StatusBadRequest,
			expectedBody: `{"error":"missing required fields for statement: dateTo"}`,
		},
		{
			name:         "shape echoes raw payload",
			err:          syncerr.Shape("no transaction array", json.RawMessage(`{"status":"ok"}`)),
			expectedCode: http.StatusBadGateway,
			expectedBody: `{"error":"no transaction array","raw":{"status":"ok"}}`,
		},
		{
			name:         "shape with non-JSON payload",
			err:          syncerr.Shape("not JSON", json.RawMessage(`<html>`)),
			expectedCode: http.StatusBadGateway,
			expectedBody: `{"error":"not JSON","raw":"<html>"}`,
		},
		{
			name:         "config",
			err:          syncerr.Config("bank configuration incomplete", errors.New("missing bank.clientSecret")),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"bank configuration incomplete: missing bank.clientSecret"}`,
		},
		{
			name:         "auth carries upstream text",
			err:          syncerr.Auth("token request rejected (status 401)", `{"error":"invalid_client"}`, nil),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"token request rejected (status 401): {\"error\":\"invalid_client\"}"}`,
		},
		{
			name:         "unclassified",
			err:          errors.New("boom"),
			expectedCode: http.StatusInternalServerError,
			expectedBody: `{"error":"boom"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(&fakeSyncer{err: tt.err}), http.MethodPost, "/sync", `{"action":"statement"}`)
			assert.Equal(t, tt.expectedCode, rec.Code)
			assert.JSONEq(t, tt.expectedBody, rec.Body.String())
		})
	}
}

func TestSyncRejectsBadBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"malformed", `{"action":`},
		{"wrong type", `{"pageOffset":"one"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeSyncer{}
			rec := do(t, New(fake), http.MethodPost, "/sync", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, fake.got)
		})
	}
}

func TestSyncMethodNotAllowed(t *testing.T) {
	fake := &fakeSyncer{}
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(t, New(fake), method, "/sync", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, method)
		assert.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())
	}
	assert.Nil(t, fake.got)
}

func TestHealth(t *testing.T) {
	rec := do(t, New(&fakeSyncer{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

package bankapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
)

// Default pagination for statement requests.
const (
	DefaultPageOffset = 1
	DefaultPageLimit  = 50
)

const maxPayloadSize = 16 << 20

// AccountRef identifies an account at the bank.
type AccountRef struct {
	BankID        string
	BranchCode    string
	AccountNumber string
}

// Key returns the composite "branchCode.accountNumber" path segment.
func (a AccountRef) Key() string {
	return a.BranchCode + "." + a.AccountNumber
}

// StatementQuery represents the date window and page of a statement request.
// Dates are YYYY-MM-DD.
type StatementQuery struct {
	DateFrom   string
	DateTo     string
	PageOffset int
	PageLimit  int
}

// Client fetches balance and statement resources with a bearer token.
// It fetches exactly one page per call; callers page by re-invoking with a
// higher offset.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// NewClient creates a new Client that sends requests through session.
func NewClient(baseURL string, session *Session, accessToken string) *Client {
	return &Client{
		httpClient:  session.HTTPClient(),
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
	}
}

// Balance fetches the raw balance payload for an account.
func (c *Client) Balance(ctx context.Context, account AccountRef) (json.RawMessage, error) {
	return c.get(ctx, "balance", c.accountURL(account, "balance"), nil)
}

// Statement fetches one page of the raw statement payload for an account.
func (c *Client) Statement(ctx context.Context, account AccountRef, query StatementQuery) (json.RawMessage, error) {
	offset := query.PageOffset
	if offset <= 0 {
		offset = DefaultPageOffset
	}
	limit := query.PageLimit
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	params := url.Values{}
	params.Set("dateFrom", query.DateFrom)
	params.Set("dateTo", query.DateTo)
	params.Set("_offset", strconv.Itoa(offset))
	params.Set("_limit", strconv.Itoa(limit))

	return c.get(ctx, "statement", c.accountURL(account, "statement"), params)
}

func (c *Client) accountURL(account AccountRef, resource string) string {
	return fmt.Sprintf("%s/banks/%s/accounts/%s/%s",
		c.baseURL,
		url.PathEscape(account.BankID),
		url.PathEscape(account.Key()),
		resource,
	)
}

func (c *Client) get(ctx context.Context, resource, endpoint string, params url.Values) (json.RawMessage, error) {
	if len(params) > 0 {
		endpoint = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, syncerr.Upstream(fmt.Sprintf("failed to create %s request", resource), "", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.accessToken))
	req.Header.Set("Accept", "application/json")

	slog.Debug("Requesting bank resource", "resource", resource, "url", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, syncerr.Upstream(fmt.Sprintf("%s request failed", resource), "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, syncerr.Upstream(fmt.Sprintf("failed to read %s response", resource), "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, syncerr.Upstream(
			fmt.Sprintf("%s request failed (status %d)", resource, resp.StatusCode),
			string(body),
			nil,
		)
	}

	if !json.Valid(body) {
		return nil, syncerr.Upstream(fmt.Sprintf("%s response is not valid JSON", resource), string(body), nil)
	}

	return json.RawMessage(body), nil
}

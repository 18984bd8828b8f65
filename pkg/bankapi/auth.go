package bankapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shunichi-ikebuchi/bank-statement-sync/pkg/syncerr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxBodySize = 1 << 20

// AuthConfig represents the OAuth2 client-credentials settings.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// AuthClient exchanges application credentials for a bearer token.
type AuthClient struct {
	config clientcredentials.Config
}

// NewAuthClient creates a new AuthClient.
func NewAuthClient(config AuthConfig) *AuthClient {
	return &AuthClient{
		config: clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
			Scopes:       config.Scopes,
			// Credentials travel in the form body; the provider does not accept Basic auth.
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Token performs the client-credentials exchange over the session's mutual-TLS client.
// There is no retry: a failed exchange fails the invocation.
func (a *AuthClient) Token(ctx context.Context, session *Session) (string, error) {
	base := session.HTTPClient()
	recorder := &bodyRecorder{next: base.Transport}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Transport: recorder,
		Timeout:   base.Timeout,
	})

	tok, err := a.config.Token(ctx)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			status := 0
			if retrieveErr.Response != nil {
				status = retrieveErr.Response.StatusCode
			}
			return "", syncerr.Auth(
				fmt.Sprintf("token request rejected (status %d)", status),
				string(retrieveErr.Body),
				nil,
			)
		}
		return "", syncerr.Auth("token request failed", string(recorder.body), err)
	}

	if tok.AccessToken == "" {
		return "", syncerr.Auth("token response missing access_token", string(recorder.body), nil)
	}

	return tok.AccessToken, nil
}

// bodyRecorder keeps a copy of the last response body so a malformed token
// response can be reported with what the provider actually sent.
type bodyRecorder struct {
	next http.RoundTripper
	body []byte
}

func (r *bodyRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	next := r.next
	if next == nil {
		next = http.DefaultTransport
	}

	resp, err := next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	r.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

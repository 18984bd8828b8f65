package sandbox

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
)

const (
	dateLayout   = "2006-01-02"
	maxPageLimit = 500
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// TokenResponse represents the OAuth2 token response.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Handler serves the sandbox endpoints.
type Handler struct {
	store        *Store
	tokenManager *TokenManager
}

// NewHandler creates a new Handler.
func NewHandler(s *Store, tm *TokenManager) *Handler {
	return &Handler{store: s, tokenManager: tm}
}

// Router returns the sandbox routes.
//
//	POST /oauth/token
//	GET  /banks/{bankID}/accounts/{account}/balance
//	GET  /banks/{bankID}/accounts/{account}/statement
//	POST /admin/banks/{bankID}/accounts/{account}/entries
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequireClientCert)

	r.Post("/oauth/token", h.HandleToken)

	r.Route("/banks/{bankID}/accounts/{account}", func(r chi.Router) {
		r.Use(AuthMiddleware(h.tokenManager))

		r.Get("/balance", h.GetBalance)
		r.Get("/statement", h.GetStatement)
	})

	r.Post("/admin/banks/{bankID}/accounts/{account}/entries", h.CreateEntry)

	return r
}

// RequireClientCert rejects requests that did not present a TLS client certificate.
func RequireClientCert(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Client certificate required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware is a middleware that validates OAuth2 access tokens.
func AuthMiddleware(tokenManager *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or malformed Authorization header")
				return
			}

			valid, err := tokenManager.ValidateToken(token)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to validate token")
				return
			}
			if !valid {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// HandleToken handles the client-credentials token endpoint.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse form")
		return
	}

	if grantType := r.PostForm.Get("grant_type"); grantType != "client_credentials" {
		writeJSONError(w, http.StatusBadRequest, "unsupported_grant_type", "Only client_credentials is supported")
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID, clientSecret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if !h.tokenManager.Authenticate(clientID, clientSecret) {
		writeJSONError(w, http.StatusUnauthorized, "invalid_client", "Unknown client or wrong secret")
		return
	}

	accessToken, err := h.tokenManager.GenerateToken()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to generate access token")
		return
	}

	slog.Debug("issued sandbox token", "client_id", clientID, "subject", r.TLS.PeerCertificates[0].Subject.CommonName)

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   tokenTTL,
		Scope:       r.PostForm.Get("scope"),
	})
}

// GetBalance handles GET /banks/{bankID}/accounts/{account}/balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.accountEntries(w, r)
	if !ok {
		return
	}

	available := decimal.Zero
	for _, e := range entries {
		available = available.Add(e.Amount)
	}

	writeJSON(w, http.StatusOK, Balance{
		Available: available,
		Blocked:   decimal.Zero,
		AsOf:      time.Now().UTC().Format(time.RFC3339),
	})
}

// GetStatement handles GET /banks/{bankID}/accounts/{account}/statement.
// _offset is a 1-based page number.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, errFrom := time.Parse(dateLayout, q.Get("dateFrom"))
	to, errTo := time.Parse(dateLayout, q.Get("dateTo"))
	if errFrom != nil || errTo != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "dateFrom and dateTo must be YYYY-MM-DD")
		return
	}

	page, err := intParam(q.Get("_offset"), 1)
	if err != nil || page < 1 {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid _offset")
		return
	}
	limit, err := intParam(q.Get("_limit"), 50)
	if err != nil || limit < 1 || limit > maxPageLimit {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid _limit")
		return
	}

	entries, ok := h.accountEntries(w, r)
	if !ok {
		return
	}

	var inWindow []Entry
	for _, e := range entries {
		d, err := time.Parse(dateLayout, e.PostingDate)
		if err != nil || d.Before(from) || d.After(to) {
			continue
		}
		inWindow = append(inWindow, e)
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].PostingDate < inWindow[j].PostingDate
	})

	totalPages := (len(inWindow) + limit - 1) / limit
	start := len(inWindow)
	if page <= totalPages {
		start = (page - 1) * limit
	}
	end := min(start+limit, len(inWindow))

	writeJSON(w, http.StatusOK, StatementPage{
		Transactions: append([]Entry{}, inWindow[start:end]...),
		Page:         page,
		PageSize:     limit,
		TotalPages:   totalPages,
	})
}

// CreateEntry handles POST /admin/banks/{bankID}/accounts/{account}/entries.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to parse request body")
		return
	}

	// Validate required fields
	if _, err := time.Parse(dateLayout, req.PostingDate); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing or invalid postingDate")
		return
	}

	entry, err := h.store.AddEntry(accountKey(r), req)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to create entry")
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) accountEntries(w http.ResponseWriter, r *http.Request) ([]Entry, bool) {
	entries, err := h.store.ListEntries(accountKey(r))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "not_found", "Account not found")
			return nil, false
		}
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to list entries")
		return nil, false
	}
	return entries, true
}

// accountKey is "{bankID}/{branchCode}.{accountNumber}".
func accountKey(r *http.Request) string {
	return chi.URLParam(r, "bankID") + "/" + chi.URLParam(r, "account")
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}

// Package testutil provides an in-memory fake MDS Provider API server and
// fixture generators for tests.
package testutil

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/openmobility/mds-provider-client/pkg/provider"
)

// paginationCursor is the fake server's opaque cursor: a base64-encoded
// JSON document holding the page offset.
type paginationCursor struct {
	Offset int `json:"o"`
}

func decodeCursor(serialized string) paginationCursor {
	var cursor paginationCursor
	raw, err := base64.StdEncoding.DecodeString(serialized)
	if err != nil {
		return paginationCursor{}
	}
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return paginationCursor{}
	}
	return cursor
}

func (c paginationCursor) encode() string {
	raw, _ := json.Marshal(c)
	return base64.StdEncoding.EncodeToString(raw)
}

// FakeMDS is a configurable in-memory MDS Provider API server. It serves
// /trips and /status_changes with cursor pagination and query filtering,
// and optionally an OAuth2 client-credentials token endpoint at
// /oauth/token.
type FakeMDS struct {
	server   *httptest.Server
	version  string
	pageSize int

	mu            sync.RWMutex
	trips         []map[string]any
	statusChanges []map[string]any

	// Bearer token required on resource endpoints ("" disables the check).
	bearerToken string

	// OAuth client-credentials accepted at /oauth/token.
	clientID     string
	clientSecret string

	// Failure injection for resource endpoints.
	failStatus int
	failBody   string

	// Tracking
	RequestCount  int
	TokenRequests int
}

// FakeOption configures a FakeMDS.
type FakeOption func(*FakeMDS)

// WithPageSize sets the page size (default 20).
func WithPageSize(n int) FakeOption {
	return func(s *FakeMDS) {
		s.pageSize = n
	}
}

// WithVersion sets the MDS version string reported in payloads.
func WithVersion(v string) FakeOption {
	return func(s *FakeMDS) {
		s.version = v
	}
}

// WithBearerToken makes resource endpoints require the given bearer token.
func WithBearerToken(token string) FakeOption {
	return func(s *FakeMDS) {
		s.bearerToken = token
	}
}

// WithOAuth enables the token endpoint: the given client credentials are
// exchanged for accessToken, which resource endpoints then require.
func WithOAuth(clientID, clientSecret, accessToken string) FakeOption {
	return func(s *FakeMDS) {
		s.clientID = clientID
		s.clientSecret = clientSecret
		s.bearerToken = accessToken
	}
}

// NewFakeMDS starts a fake MDS server over the given stores.
func NewFakeMDS(trips, statusChanges []map[string]any, opts ...FakeOption) *FakeMDS {
	s := &FakeMDS{
		version:       "0.2.0",
		pageSize:      20,
		trips:         trips,
		statusChanges: statusChanges,
	}
	for _, opt := range opts {
		opt(s)
	}

	router := mux.NewRouter()
	router.HandleFunc("/trips", s.resourceHandler("trips")).Methods(http.MethodGet)
	router.HandleFunc("/status_changes", s.resourceHandler("status_changes")).Methods(http.MethodGet)
	router.HandleFunc("/oauth/token", s.tokenHandler).Methods(http.MethodPost)

	s.server = httptest.NewServer(router)
	return s
}

// URL returns the fake server's base URL.
func (s *FakeMDS) URL() string {
	return s.server.URL
}

// TokenURL returns the OAuth token endpoint URL.
func (s *FakeMDS) TokenURL() string {
	return s.server.URL + "/oauth/token"
}

// Close shuts down the server.
func (s *FakeMDS) Close() {
	s.server.Close()
}

// Provider returns a provider record pointing at the fake server,
// authenticated with the configured static bearer token.
func (s *FakeMDS) Provider(name string) provider.Provider {
	return provider.Provider{
		Name:   name,
		ID:     uuid.New(),
		APIURL: s.server.URL,
		Auth:   provider.StaticToken{Token: s.bearerToken},
	}
}

// OAuthProvider returns a provider record pointing at the fake server,
// authenticated via its client-credentials token endpoint.
func (s *FakeMDS) OAuthProvider(name string) provider.Provider {
	return provider.Provider{
		Name:   name,
		ID:     uuid.New(),
		APIURL: s.server.URL,
		Auth: provider.OAuthClientCredentials{
			TokenURL:     s.TokenURL(),
			ClientID:     s.clientID,
			ClientSecret: s.clientSecret,
		},
	}
}

// FailWith makes resource endpoints answer every request with the given
// status and body until cleared with FailWith(0, "").
func (s *FakeMDS) FailWith(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failBody = body
}

// GetRequestCount returns how many resource requests the server has seen.
func (s *FakeMDS) GetRequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RequestCount
}

// GetTokenRequests returns how many token exchanges the server has seen.
func (s *FakeMDS) GetTokenRequests() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.TokenRequests
}

func (s *FakeMDS) resourceHandler(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.RequestCount++
		failStatus, failBody := s.failStatus, s.failBody
		s.mu.Unlock()

		if failStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(failStatus)
			w.Write([]byte(failBody))
			return
		}

		if s.bearerToken != "" && r.Header.Get("Authorization") != "Bearer "+s.bearerToken {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "invalid_token"}`))
			return
		}

		params := r.URL.Query()

		s.mu.RLock()
		var store []map[string]any
		if resource == "trips" {
			store = s.trips
		} else {
			store = s.statusChanges
		}
		selected := filterItems(resource, store, params)
		s.mu.RUnlock()

		cursor := decodeCursor(params.Get("cursor"))
		end := cursor.Offset + s.pageSize
		if end > len(selected) {
			end = len(selected)
		}
		var page []map[string]any
		if cursor.Offset < len(selected) {
			page = selected[cursor.Offset:end]
		}

		payload := map[string]any{
			"version": s.version,
			"links":   map[string]any{},
			"data": map[string]any{
				resource: page,
			},
		}
		if end < len(selected) {
			payload["links"] = map[string]any{
				"next": s.nextURL(r.URL.Path, params, paginationCursor{Offset: end}),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// nextURL builds a fully self-contained next link: same path, same filter
// params, advanced cursor.
func (s *FakeMDS) nextURL(path string, params url.Values, cursor paginationCursor) string {
	next := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			next.Add(k, v)
		}
	}
	next.Set("cursor", cursor.encode())
	return s.server.URL + path + "?" + next.Encode()
}

// tokenHandler implements a minimal client-credentials token endpoint.
// Credentials are accepted as basic auth or form values.
func (s *FakeMDS) tokenHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.TokenRequests++
	s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostFormValue("client_id")
		clientSecret = r.PostFormValue("client_secret")
	}

	w.Header().Set("Content-Type", "application/json")

	if s.clientID == "" || clientID != s.clientID || clientSecret != s.clientSecret {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid_client"}`))
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": s.bearerToken,
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

// filterItems applies the fake server's query filtering for a resource.
func filterItems(resource string, items []map[string]any, params url.Values) []map[string]any {
	selected := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if resource == "trips" && !matchTrip(item, params) {
			continue
		}
		if resource == "status_changes" && !matchStatusChange(item, params) {
			continue
		}
		selected = append(selected, item)
	}
	return selected
}

func matchTrip(trip map[string]any, params url.Values) bool {
	if v := params.Get("vehicle_id"); v != "" && asString(trip["vehicle_id"]) != v {
		return false
	}
	if v := params.Get("device_id"); v != "" && asString(trip["device_id"]) != v {
		return false
	}
	if v, ok := queryInt(params, "start_time"); ok && asInt64(trip["start_time"]) < v {
		return false
	}
	if v, ok := queryInt(params, "end_time"); ok && asInt64(trip["end_time"]) > v {
		return false
	}
	return true
}

func matchStatusChange(sc map[string]any, params url.Values) bool {
	eventTime := asInt64(sc["event_time"])
	if v, ok := queryInt(params, "start_time"); ok && eventTime < v {
		return false
	}
	if v, ok := queryInt(params, "end_time"); ok && eventTime > v {
		return false
	}
	return true
}

func queryInt(params url.Values, key string) (int64, bool) {
	raw := params.Get(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goccy/go-json"
	tdfCrypto "github.com/opentdf/contextvault/internal/crypto"
	"github.com/opentdf/contextvault/internal/version"
	"github.com/opentdf/contextvault/pkg/ledger"
	"github.com/opentdf/contextvault/pkg/storage"
	"github.com/opentdf/contextvault/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	ledger *ledger.MemoryLedger
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	l := ledger.NewMemoryLedger()
	srv := httptest.NewServer(NewRouter(RouterOptions{Store: storage.NewMemoryStore(), Ledger: l}))
	t.Cleanup(srv.Close)
	return testServer{Server: srv, ledger: l}
}

func (s testServer) do(t *testing.T, method, path string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s testServer) publish(t *testing.T) vault.Listing {
	t.Helper()
	env := vault.CreateEnvelope("c0ffee", make([]byte, 16), make([]byte, 12), "0xowner", vault.SchemeSalted)
	listing, err := s.ledger.PersistEnvelope(context.Background(), env, vault.Listing{Title: "Manual", PricePerQuery: 10})
	require.NoError(t, err)
	return listing
}

func TestBlobRoutes(t *testing.T) {
	s := newTestServer(t)
	data := []byte("sealed document")

	resp := s.do(t, http.MethodPut, "/api/blobs", data)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	put := decode[putBlobResponse](t, resp)
	assert.Equal(t, tdfCrypto.ContentID(data), put.BlobID)

	resp = s.do(t, http.MethodGet, "/api/blobs/"+put.BlobID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got bytes.Buffer
	_, err := got.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, data, got.Bytes())

	resp = s.do(t, http.MethodGet, "/api/blobs/deadbeef", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodPut, "/api/blobs", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPStoreAgainstServer(t *testing.T) {
	s := newTestServer(t)
	endpoint, err := url.Parse(s.URL)
	require.NoError(t, err)
	store, err := storage.NewHTTPStore(storage.HTTPStoreOptions{HttpClient: s.Client(), Endpoint: endpoint})
	require.NoError(t, err)

	ctx := context.Background()
	id, err := store.Put(ctx, []byte("remote blob"))
	require.NoError(t, err)
	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("remote blob"), got)

	_, err = store.Get(ctx, tdfCrypto.ContentID([]byte("absent")))
	assert.ErrorIs(t, err, vault.ErrStorageNotFound)

	_, err = storage.NewHTTPStore(storage.HTTPStoreOptions{Endpoint: endpoint})
	assert.Error(t, err)
}

func TestListingWithholdsEnvelope(t *testing.T) {
	s := newTestServer(t)
	listing := s.publish(t)

	resp := s.do(t, http.MethodGet, "/api/listings/"+listing.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw := decode[map[string]any](t, resp)
	assert.Equal(t, "Manual", raw["title"])
	assert.NotContains(t, raw, "envelope")

	resp = s.do(t, http.MethodGet, "/api/listings/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGrantRoutes(t *testing.T) {
	s := newTestServer(t)
	listing := s.publish(t)

	resp := s.do(t, http.MethodPost, "/api/listings/"+listing.ID+"/grants", []byte(`{"holder":"0xbuyer","quota":1}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	grant := decode[vault.Grant](t, resp)
	assert.Equal(t, 1, grant.QuotaRemaining)
	require.NotNil(t, grant.Envelope)
	assert.Equal(t, "c0ffee", grant.Envelope.ContentID)

	resp = s.do(t, http.MethodGet, "/api/grants/"+grant.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, grant, decode[vault.Grant](t, resp))

	resp = s.do(t, http.MethodPost, "/api/grants/"+grant.ID+"/consume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[consumeResponse](t, resp).Remaining)

	resp = s.do(t, http.MethodPost, "/api/grants/"+grant.ID+"/consume", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/grants/unknown/consume", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIssueGrantValidation(t *testing.T) {
	s := newTestServer(t)
	listing := s.publish(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"zero quota", "/api/listings/" + listing.ID + "/grants", `{"holder":"0xbuyer","quota":0}`, http.StatusBadRequest},
		{"no holder", "/api/listings/" + listing.ID + "/grants", `{"quota":1}`, http.StatusBadRequest},
		{"unknown field", "/api/listings/" + listing.ID + "/grants", `{"holder":"a","quota":1,"price":3}`, http.StatusBadRequest},
		{"unknown listing", "/api/listings/missing/grants", `{"holder":"a","quota":1}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, http.MethodPost, tt.path, []byte(tt.body))
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestVersionRoute(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[version.VersionStat](t, resp)
	assert.Equal(t, vault.PayloadVersion, v.PayloadVersion)
	assert.NotEmpty(t, v.GoVersion)
}

func TestAuthGuardsAPI(t *testing.T) {
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "denied", http.StatusUnauthorized)
		})
	}
	srv := httptest.NewServer(NewRouter(RouterOptions{
		Store:  storage.NewMemoryStore(),
		Ledger: ledger.NewMemoryLedger(),
		Auth:   deny,
	}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/api/grants/x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/version")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proprio-data/cadastre-api/internal/cadastre"
	"github.com/proprio-data/cadastre-api/internal/config"
	"github.com/proprio-data/cadastre-api/internal/geostore"
	"github.com/proprio-data/cadastre-api/internal/search"
)

type fakeSearcher struct {
	result     *search.Result
	stats      *search.StreamStats
	streamSend []cadastre.OwnerResult

	lastRegion geostore.Region
	lastLimit  int
}

func (f *fakeSearcher) Search(_ context.Context, region geostore.Region, limit int) *search.Result {
	f.lastRegion = region
	f.lastLimit = limit
	return f.result
}

func (f *fakeSearcher) SearchStream(_ context.Context, region geostore.Region, limit int, onOwner func(cadastre.OwnerResult) error) *search.StreamStats {
	f.lastRegion = region
	f.lastLimit = limit
	for _, o := range f.streamSend {
		if err := onOwner(o); err != nil {
			break
		}
	}
	return f.stats
}

type fakeEnricher struct {
	known map[string]*cadastre.CompanyEnrichment
}

func (f *fakeEnricher) Enrich(_ context.Context, ownerID string) *cadastre.CompanyEnrichment {
	return f.known[ownerID]
}

func newTestServer(searcher *fakeSearcher, enricher *fakeEnricher) *httptest.Server {
	if enricher == nil {
		enricher = &fakeEnricher{}
	}
	srv := New(config.ServerConfig{APIKeys: []string{"test-key"}}, searcher, enricher)
	return httptest.NewServer(srv.Router())
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, body string, auth bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("X-Api-Key", "test-key")
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealth_NoAuthRequired(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, nil)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestPolygon_RequiresAPIKey(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, nil)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodPost, "/api/search/polygon", `{"points":[]}`, false)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPolygon_Success(t *testing.T) {
	searcher := &fakeSearcher{result: &search.Result{
		Owners:              []cadastre.OwnerResult{{OwnerKey: "123456789", Siren: "123456789"}},
		TotalUniqueInRegion: 1,
		TotalRowsMatched:    2,
	}}
	ts := newTestServer(searcher, nil)
	defer ts.Close()

	body := `{"points":[{"longitude":2.3,"latitude":48.8},{"longitude":2.4,"latitude":48.8},{"longitude":2.35,"latitude":48.9}],"limite":50}`
	resp := doJSON(t, ts, http.MethodPost, "/api/search/polygon", body, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res search.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Owners, 1)
	assert.Equal(t, "123456789", res.Owners[0].OwnerKey)
	assert.Equal(t, 1, res.TotalUniqueInRegion)

	poly, ok := searcher.lastRegion.(geostore.Polygon)
	require.True(t, ok)
	assert.Len(t, poly.Points, 3)
	assert.Equal(t, 50, searcher.lastLimit)
}

func TestPolygon_InvalidRegionStill200(t *testing.T) {
	searcher := &fakeSearcher{result: &search.Result{
		Owners:     []cadastre.OwnerResult{},
		Diagnostic: search.DiagInvalidRegion,
	}}
	ts := newTestServer(searcher, nil)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodPost, "/api/search/polygon", `{"points":[]}`, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res search.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Empty(t, res.Owners)
	assert.Equal(t, search.DiagInvalidRegion, res.Diagnostic)
}

func TestPolygon_BadJSON(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, nil)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodPost, "/api/search/polygon", `{not json`, true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRadius_Success(t *testing.T) {
	searcher := &fakeSearcher{result: &search.Result{Owners: []cadastre.OwnerResult{}}}
	ts := newTestServer(searcher, nil)
	defer ts.Close()

	body := `{"longitude":2.3522,"latitude":48.8566,"rayon_metres":500,"limite":10}`
	resp := doJSON(t, ts, http.MethodPost, "/api/search/radius", body, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	radius, ok := searcher.lastRegion.(geostore.RadiusQuery)
	require.True(t, ok)
	assert.InDelta(t, 500, radius.Meters, 0.001)
	assert.InDelta(t, 48.8566, radius.Center.Latitude, 1e-9)
}

func TestPolygonStream_NDJSON(t *testing.T) {
	searcher := &fakeSearcher{
		streamSend: []cadastre.OwnerResult{
			{OwnerKey: "111111111"},
			{OwnerKey: "222222222"},
		},
		stats: &search.StreamStats{TotalUniqueInRegion: 2, TotalEmitted: 2},
	}
	ts := newTestServer(searcher, nil)
	defer ts.Close()

	body := `{"points":[{"longitude":2.3,"latitude":48.8},{"longitude":2.4,"latitude":48.8},{"longitude":2.35,"latitude":48.9}]}`
	resp := doJSON(t, ts, http.MethodPost, "/api/search/polygon/stream", body, true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 3)

	var owner cadastre.OwnerResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &owner))
	assert.Equal(t, "111111111", owner.OwnerKey)

	var trailer map[string]search.StreamStats
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &trailer))
	assert.Equal(t, 2, trailer["stats"].TotalEmitted)
}

func TestOwner_Found(t *testing.T) {
	enricher := &fakeEnricher{known: map[string]*cadastre.CompanyEnrichment{
		"123456789": {Siren: "123456789", Denomination: "ACME SCI"},
	}}
	ts := newTestServer(&fakeSearcher{}, enricher)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodGet, "/api/owners/123456789", "", true)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var enr cadastre.CompanyEnrichment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&enr))
	assert.Equal(t, "ACME SCI", enr.Denomination)
}

func TestOwner_NotFound(t *testing.T) {
	ts := newTestServer(&fakeSearcher{}, nil)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodGet, "/api/owners/999999999", "", true)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

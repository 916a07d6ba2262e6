package sirene

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proprio-data/cadastre-api/internal/resilience"
)

const unitJSON = `{
	"siren": "552100554",
	"denomination": "FONCIERE DU MARAIS",
	"forme_juridique": "SAS",
	"date_creation": "1998-03-12",
	"siege": {"voie": "4 RUE DE RIVOLI", "code_postal": "75004", "commune": "PARIS"},
	"dirigeants": [
		{"type": "personne_physique", "prenom": "Claire", "nom": "Moreau", "qualite": "President"},
		{"type": "personne_morale", "siren": "901234567", "denomination": "HOLDCO", "qualite": "Directeur general"}
	]
}`

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestLookupByIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/unites/552100554", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(unitJSON)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))

	unit, err := c.LookupByIdentifier(context.Background(), "552100554")
	require.NoError(t, err)
	require.NotNil(t, unit)

	assert.Equal(t, "FONCIERE DU MARAIS", unit.Denomination)
	assert.Equal(t, "SAS", unit.LegalForm)
	assert.Equal(t, "4 RUE DE RIVOLI 75004 PARIS", unit.Headquarters.String())

	require.Len(t, unit.Directors, 2)
	assert.True(t, unit.Directors[0].IsNaturalPerson())
	assert.False(t, unit.Directors[1].IsNaturalPerson())
	assert.Equal(t, "901234567", unit.Directors[1].Siren)
}

func TestLookupByIdentifier_MissReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL), WithRetry(fastRetry()))

	unit, err := c.LookupByIdentifier(context.Background(), "000000000")
	require.NoError(t, err)
	assert.Nil(t, unit)
}

func TestLookupByIdentifier_RetriesTransientFailure(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(unitJSON)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL), WithRetry(fastRetry()))

	unit, err := c.LookupByIdentifier(context.Background(), "552100554")
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, 3, calls)
}

func TestLookupByIdentifier_ClientErrorIsNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("bad-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))

	unit, err := c.LookupByIdentifier(context.Background(), "552100554")
	require.Error(t, err)
	assert.Nil(t, unit)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "http 403")
}

func TestLookupByIdentifier_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL), WithRetry(resilience.RetryConfig{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
	}))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.LookupByIdentifier(ctx, "552100554")
		require.Error(t, err)
	}

	// Circuit is open now; the next call fails without hitting the server.
	_, err := c.LookupByIdentifier(ctx, "552100554")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

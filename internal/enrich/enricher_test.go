package enrich

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proprio-data/cadastre-api/pkg/sirene"
)

// fakeRegistry serves unit records from a map and counts lookups.
type fakeRegistry struct {
	units   map[string]*sirene.UnitRecord
	failAll bool
	calls   int
}

func (f *fakeRegistry) LookupByIdentifier(_ context.Context, siren string) (*sirene.UnitRecord, error) {
	f.calls++
	if f.failAll {
		return nil, eris.New("registry unreachable")
	}
	return f.units[siren], nil
}

// countingLimiter admits everything and counts acquisitions.
type countingLimiter struct {
	acquired int
}

func (l *countingLimiter) Acquire(context.Context) error {
	l.acquired++
	return nil
}

func person(first, last, role string) sirene.DirectorRecord {
	return sirene.DirectorRecord{Type: "personne_physique", FirstName: first, LastName: last, Role: role}
}

func entity(siren, denom, role string) sirene.DirectorRecord {
	return sirene.DirectorRecord{Type: "personne_morale", Siren: siren, Denomination: denom, Role: role}
}

func TestEnrich_RejectsMalformedIdentifier(t *testing.T) {
	reg := &fakeRegistry{}
	lim := &countingLimiter{}
	e := New(reg, lim)

	for _, id := range []string{"", "12345678", "1234567890", "ACME SCI", "12345678A", "inconnu"} {
		assert.Nil(t, e.Enrich(context.Background(), id), "id %q", id)
	}
	assert.Zero(t, reg.calls)
	assert.Zero(t, lim.acquired)
}

func TestEnrich_RegistryMissYieldsNil(t *testing.T) {
	e := New(&fakeRegistry{units: map[string]*sirene.UnitRecord{}}, &countingLimiter{})
	assert.Nil(t, e.Enrich(context.Background(), "123456789"))
}

func TestEnrich_TransportFailureYieldsNil(t *testing.T) {
	e := New(&fakeRegistry{failAll: true}, &countingLimiter{})
	assert.Nil(t, e.Enrich(context.Background(), "123456789"))
}

func TestEnrich_BasicRecord(t *testing.T) {
	reg := &fakeRegistry{units: map[string]*sirene.UnitRecord{
		"123456789": {
			Siren:        "123456789",
			Denomination: "ACME SCI",
			LegalForm:    "SCI",
			CreationDate: "2001-04-12",
			Headquarters: sirene.AddressRecord{Street: "12 RUE DE LA PAIX", PostalCode: "75002", City: "PARIS"},
			Directors:    []sirene.DirectorRecord{person("Marie", "Durand", "Gérant")},
		},
	}}
	lim := &countingLimiter{}
	e := New(reg, lim)

	enr := e.Enrich(context.Background(), "123456789")
	require.NotNil(t, enr)
	assert.Equal(t, "ACME SCI", enr.Denomination)
	assert.Equal(t, "12 RUE DE LA PAIX 75002 PARIS", enr.Headquarters)
	require.Len(t, enr.BeneficialOwners, 1)
	assert.Equal(t, "Durand", enr.BeneficialOwners[0].LastName)
	assert.Empty(t, enr.BeneficialOwners[0].Chain)
	assert.Equal(t, 1, lim.acquired)
}

func TestEnrich_ChainThroughIntermediary(t *testing.T) {
	reg := &fakeRegistry{units: map[string]*sirene.UnitRecord{
		"100000001": {
			Siren: "100000001",
			Directors: []sirene.DirectorRecord{
				entity("200000002", "HOLDING A", "Président"),
				person("Paul", "Martin", "Directeur"),
			},
		},
		"200000002": {
			Siren:     "200000002",
			Directors: []sirene.DirectorRecord{person("Jeanne", "Petit", "Gérant")},
		},
	}}
	lim := &countingLimiter{}
	e := New(reg, lim)

	enr := e.Enrich(context.Background(), "100000001")
	require.NotNil(t, enr)
	require.Len(t, enr.BeneficialOwners, 2)

	// Depth-first, left-to-right: the person behind the holding comes first.
	first := enr.BeneficialOwners[0]
	assert.Equal(t, "Petit", first.LastName)
	require.Len(t, first.Chain, 1)
	assert.Equal(t, "200000002", first.Chain[0].Siren)
	assert.Equal(t, "HOLDING A", first.Chain[0].Denomination)

	second := enr.BeneficialOwners[1]
	assert.Equal(t, "Martin", second.LastName)
	assert.Empty(t, second.Chain)

	// One limiter unit per network call: root + holding.
	assert.Equal(t, 2, lim.acquired)
	assert.Equal(t, 2, reg.calls)
}

func TestEnrich_CycleTerminates(t *testing.T) {
	reg := &fakeRegistry{units: map[string]*sirene.UnitRecord{
		"100000001": {
			Siren: "100000001",
			Directors: []sirene.DirectorRecord{
				entity("200000002", "B", ""),
				person("Anne", "Roy", ""),
			},
		},
		"200000002": {
			Siren: "200000002",
			Directors: []sirene.DirectorRecord{
				entity("100000001", "A", ""), // cycle back to the root
				person("Luc", "Blanc", ""),
			},
		},
	}}
	e := New(reg, &countingLimiter{})

	enr := e.Enrich(context.Background(), "100000001")
	require.NotNil(t, enr)
	require.Len(t, enr.BeneficialOwners, 2)
	assert.Equal(t, "Blanc", enr.BeneficialOwners[0].LastName)
	assert.Equal(t, "Roy", enr.BeneficialOwners[1].LastName)
}

func TestEnrich_DepthCap(t *testing.T) {
	// A chain of MaxChainDepth+3 entities, each with one person and one child.
	units := make(map[string]*sirene.UnitRecord)
	for i := 0; i < MaxChainDepth+3; i++ {
		id := fmt.Sprintf("%09d", i+1)
		child := fmt.Sprintf("%09d", i+2)
		units[id] = &sirene.UnitRecord{
			Siren: id,
			Directors: []sirene.DirectorRecord{
				person("P", fmt.Sprintf("Level%d", i), ""),
				entity(child, fmt.Sprintf("E%d", i), ""),
			},
		}
	}
	e := New(&fakeRegistry{units: units}, &countingLimiter{})

	enr := e.Enrich(context.Background(), "000000001")
	require.NotNil(t, enr)

	// Only the first MaxChainDepth levels contribute persons.
	require.Len(t, enr.BeneficialOwners, MaxChainDepth)
	assert.Equal(t, "Level0", enr.BeneficialOwners[0].LastName)
	assert.Equal(t, fmt.Sprintf("Level%d", MaxChainDepth-1), enr.BeneficialOwners[MaxChainDepth-1].LastName)
}

func TestEnrich_DuplicatePersonPerChain(t *testing.T) {
	// The same person reachable directly and via a holding appears twice,
	// once per chain.
	reg := &fakeRegistry{units: map[string]*sirene.UnitRecord{
		"100000001": {
			Siren: "100000001",
			Directors: []sirene.DirectorRecord{
				person("Marie", "Durand", ""),
				entity("200000002", "HOLDING", ""),
			},
		},
		"200000002": {
			Siren:     "200000002",
			Directors: []sirene.DirectorRecord{person("Marie", "Durand", "")},
		},
	}}
	e := New(reg, &countingLimiter{})

	enr := e.Enrich(context.Background(), "100000001")
	require.NotNil(t, enr)
	require.Len(t, enr.BeneficialOwners, 2)
	assert.Empty(t, enr.BeneficialOwners[0].Chain)
	assert.Len(t, enr.BeneficialOwners[1].Chain, 1)
}

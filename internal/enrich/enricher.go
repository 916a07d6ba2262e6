// Package enrich resolves owner identifiers against the company registry and
// walks director chains down to natural-person beneficial owners.
package enrich

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/cadastre"
	"github.com/proprio-data/cadastre-api/pkg/sirene"
)

// MaxChainDepth bounds beneficial-owner resolution. Holding structures deeper
// than this are truncated rather than followed.
const MaxChainDepth = 5

var sirenPattern = regexp.MustCompile(`^\d{9}$`)

// Limiter is the admission control consumed before every registry call.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Enricher fetches company data for owners. All failures are absorbed:
// enrichment is best-effort and must never fail the search that requested it.
type Enricher struct {
	registry sirene.Client
	limiter  Limiter
	maxDepth int
}

// New creates an Enricher sharing the given limiter with all other searches
// in the process.
func New(registry sirene.Client, limiter Limiter) *Enricher {
	return &Enricher{
		registry: registry,
		limiter:  limiter,
		maxDepth: MaxChainDepth,
	}
}

// Enrich looks up one owner identifier. Identifiers that are not well-formed
// SIRENs return nil without a network call, as do registry misses and
// transport failures.
func (e *Enricher) Enrich(ctx context.Context, ownerID string) *cadastre.CompanyEnrichment {
	if !sirenPattern.MatchString(ownerID) {
		return nil
	}

	unit := e.lookup(ctx, ownerID)
	if unit == nil {
		return nil
	}

	enr := &cadastre.CompanyEnrichment{
		Siren:        unit.Siren,
		Denomination: unit.Denomination,
		LegalForm:    unit.LegalForm,
		CreationDate: unit.CreationDate,
		Headquarters: unit.Headquarters.String(),
	}
	for _, d := range unit.Directors {
		enr.Directors = append(enr.Directors, cadastre.Director{
			FirstName:    d.FirstName,
			LastName:     d.LastName,
			Siren:        d.Siren,
			Denomination: d.Denomination,
			Role:         d.Role,
		})
	}

	// The visited set is seeded with the owner itself so a self-referencing
	// director entry cannot recurse.
	visited := map[string]bool{ownerID: true}
	enr.BeneficialOwners = e.resolveBeneficial(ctx, unit.Directors, nil, visited, 0)

	return enr
}

// lookup acquires one limiter unit and fetches a unit record, absorbing all
// errors into a nil result.
func (e *Enricher) lookup(ctx context.Context, siren string) *sirene.UnitRecord {
	if err := e.limiter.Acquire(ctx); err != nil {
		return nil
	}
	unit, err := e.registry.LookupByIdentifier(ctx, siren)
	if err != nil {
		zap.L().Debug("enrich: registry lookup failed",
			zap.String("siren", siren),
			zap.Error(err),
		)
		return nil
	}
	return unit
}

// resolveBeneficial walks director entries depth-first, left-to-right.
// Natural persons are emitted with the chain accumulated so far; legal
// entities are looked up and recursed into with the chain extended. A branch
// is pruned when the depth cap is hit, the entity was already visited in this
// resolution, or it has no resolvable directors. Duplicate persons reached
// via different chains are emitted once per chain.
func (e *Enricher) resolveBeneficial(
	ctx context.Context,
	directors []sirene.DirectorRecord,
	chain []cadastre.ControlChainLink,
	visited map[string]bool,
	depth int,
) []cadastre.BeneficialOwner {
	if depth >= e.maxDepth {
		return nil
	}

	var out []cadastre.BeneficialOwner
	for _, d := range directors {
		if d.IsNaturalPerson() {
			out = append(out, cadastre.BeneficialOwner{
				FirstName: d.FirstName,
				LastName:  d.LastName,
				Role:      d.Role,
				Chain:     cloneChain(chain),
			})
			continue
		}

		if d.Siren == "" || visited[d.Siren] {
			continue
		}
		visited[d.Siren] = true

		sub := e.lookup(ctx, d.Siren)
		if sub == nil || len(sub.Directors) == 0 {
			continue
		}

		link := cadastre.ControlChainLink{
			Siren:        d.Siren,
			Denomination: d.Denomination,
			Role:         d.Role,
		}
		out = append(out, e.resolveBeneficial(ctx, sub.Directors, append(cloneChain(chain), link), visited, depth+1)...)
	}
	return out
}

func cloneChain(chain []cadastre.ControlChainLink) []cadastre.ControlChainLink {
	if len(chain) == 0 {
		return nil
	}
	out := make([]cadastre.ControlChainLink, len(chain))
	copy(out, chain)
	return out
}

package routing

import (
	"strings"

	"github.com/davidbz/embercache/internal/domain"
)

const defaultTokenThreshold = 10

// AdaptiveSelector picks an embedding model for a query without the caller
// naming one. It is a stateless heuristic: the same inputs always yield the
// same choice.
type AdaptiveSelector struct {
	registry       domain.ModelRegistry
	tokenThreshold int
}

// NewAdaptiveSelector creates a new selector. tokenThreshold <= 0 falls
// back to the default of 10 whitespace-delimited tokens.
func NewAdaptiveSelector(registry domain.ModelRegistry, tokenThreshold int) *AdaptiveSelector {
	if tokenThreshold <= 0 {
		tokenThreshold = defaultTokenThreshold
	}
	return &AdaptiveSelector{
		registry:       registry,
		tokenThreshold: tokenThreshold,
	}
}

// SelectModel chooses a registered model for query.
//
// An explicit preference wins: the first entry of PreferredModels is
// returned verbatim (an unknown key surfaces later as an unknown-model
// error from Embed). Otherwise a complexity signal decides between the
// highest- and lowest-cost registered model: long queries, questions, and
// queries with conversation history get the higher-quality model.
func (s *AdaptiveSelector) SelectModel(query string, sctx domain.SelectionContext) (string, error) {
	if len(sctx.PreferredModels) > 0 {
		return sctx.PreferredModels[0], nil
	}

	models := s.registry.List()
	if len(models) == 0 {
		return "", domain.ErrNoModelsRegistered
	}

	if s.isComplex(query, sctx) {
		return pickByCost(models, true), nil
	}
	return pickByCost(models, false), nil
}

func (s *AdaptiveSelector) isComplex(query string, sctx domain.SelectionContext) bool {
	if len(strings.Fields(query)) > s.tokenThreshold {
		return true
	}
	if strings.Contains(query, "?") {
		return true
	}
	return len(sctx.PreviousQueries) > 0
}

// pickByCost returns the highest-cost model when quality is true, the
// lowest otherwise. Registration order breaks ties, keeping the choice
// deterministic.
func pickByCost(models []domain.ModelDescriptor, quality bool) string {
	best := models[0]
	for _, m := range models[1:] {
		if quality && m.Cost > best.Cost {
			best = m
		}
		if !quality && m.Cost < best.Cost {
			best = m
		}
	}
	return best.Key
}

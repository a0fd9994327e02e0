package ranker

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/film-similarity/pkg/errors"
)

// CategoryPolicy selects how two tag sets are compared.
type CategoryPolicy string

const (
	// Symmetric is |a ∩ b| / |a ∪ b|.
	Symmetric CategoryPolicy = "symmetric"
	// Asymmetric is |a ∩ b| / |b|: how much of b's tags a covers.
	Asymmetric CategoryPolicy = "asymmetric"
)

// ParseCategoryPolicy accepts the policy names case-insensitively.
func ParseCategoryPolicy(s string) (CategoryPolicy, error) {
	switch p := CategoryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case Symmetric, Asymmetric:
		return p, nil
	default:
		return "", fmt.Errorf("unknown category policy %q: %w", s, apperrors.ErrInvalidInput)
	}
}

type tagSet map[string]struct{}

func newTagSet(tags []string) tagSet {
	set := make(tagSet, len(tags))
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		set[tag] = struct{}{}
	}
	return set
}

// CategoricalOverlap scores two tag sets in [0, 1] under policy. Either set
// being empty yields 0.
func CategoricalOverlap(policy CategoryPolicy, a, b []string) float64 {
	return overlap(policy, newTagSet(a), newTagSet(b))
}

func overlap(policy CategoryPolicy, a, b tagSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for tag := range small {
		if _, ok := large[tag]; ok {
			shared++
		}
	}
	switch policy {
	case Symmetric:
		return float64(shared) / float64(len(a)+len(b)-shared)
	case Asymmetric:
		return float64(shared) / float64(len(b))
	default:
		panic(fmt.Sprintf("ranker: unhandled category policy %q", policy))
	}
}

// Package resolver implements the fuzzy identifier-to-canonical-user
// lookup described in spec.md §4.10.
package resolver

import (
	"fmt"
	"sort"
	"strings"
)

// User is the subset of a Zulip user record the resolver needs.
type User struct {
	Email    string
	FullName string
}

// AmbiguousUserError is raised when multiple top-tier matches fall
// within 0.2 of the best score.
type AmbiguousUserError struct {
	Query      string
	Candidates []User
}

func (e *AmbiguousUserError) Error() string {
	return fmt.Sprintf("resolver: %q is ambiguous among %d candidates", e.Query, len(e.Candidates))
}

// UserNotFoundError is raised when no candidate clears the similarity
// floor.
type UserNotFoundError struct {
	Query string
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("resolver: no user found matching %q", e.Query)
}

const (
	similarityFloor    = 0.6
	ambiguityTolerance = 0.2
	maxCandidates      = 5
)

// UserSource provides the cached user list C3 maintains.
type UserSource interface {
	CachedUserList() ([]User, error)
}

// Resolver resolves an identifier string to a canonical user.
type Resolver struct {
	source UserSource
}

// New builds a Resolver backed by source.
func New(source UserSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve implements spec.md §4.10's tiered matching: email exact match
// if the identifier contains '@'; otherwise case-insensitive full-name
// comparison across exact, substring, and similarity tiers.
func (r *Resolver) Resolve(identifier string) (*User, error) {
	users, err := r.source.CachedUserList()
	if err != nil {
		return nil, fmt.Errorf("resolver: load user list: %w", err)
	}

	if strings.Contains(identifier, "@") {
		for _, u := range users {
			if strings.EqualFold(u.Email, identifier) {
				return &u, nil
			}
		}
		return nil, &UserNotFoundError{Query: identifier}
	}

	type scored struct {
		user  User
		score float64
		tier  int // 0 = exact, 1 = substring, 2 = similarity
	}

	lowerID := strings.ToLower(identifier)
	var candidates []scored

	for _, u := range users {
		lowerName := strings.ToLower(u.FullName)
		switch {
		case lowerName == lowerID:
			candidates = append(candidates, scored{user: u, score: 1.0, tier: 0})
		case strings.Contains(lowerName, lowerID):
			candidates = append(candidates, scored{user: u, score: 0.8, tier: 1})
		default:
			if s := similarity(lowerName, lowerID); s >= similarityFloor {
				candidates = append(candidates, scored{user: u, score: s, tier: 2})
			}
		}
	}

	if len(candidates) == 0 {
		return nil, &UserNotFoundError{Query: identifier}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].tier != candidates[j].tier {
			return candidates[i].tier < candidates[j].tier
		}
		return candidates[i].score > candidates[j].score
	})

	best := candidates[0]
	var topTier []scored
	for _, c := range candidates {
		if c.tier == best.tier && best.score-c.score <= ambiguityTolerance {
			topTier = append(topTier, c)
		}
	}

	if len(topTier) > 1 {
		ambig := &AmbiguousUserError{Query: identifier}
		for i, c := range topTier {
			if i >= maxCandidates {
				break
			}
			ambig.Candidates = append(ambig.Candidates, c.user)
		}
		return nil, ambig
	}

	return &best.user, nil
}

// similarity returns a normalized sequence-similarity score in [0,1]
// using the Ratcliff/Obershelp-style ratio: 2*matches / (len(a)+len(b)),
// where matches is the total length of all non-overlapping common
// substrings found greedily longest-first. Deterministic, dependency-free.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	matches := commonSubstringLength(a, b)
	return 2 * float64(matches) / float64(len(a)+len(b))
}

func commonSubstringLength(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	bestLen, bestAi, bestBi := 0, 0, 0
	for ai := 0; ai < len(a); ai++ {
		for bi := 0; bi < len(b); bi++ {
			l := 0
			for ai+l < len(a) && bi+l < len(b) && a[ai+l] == b[bi+l] {
				l++
			}
			if l > bestLen {
				bestLen, bestAi, bestBi = l, ai, bi
			}
		}
	}
	if bestLen == 0 {
		return 0
	}
	total := bestLen
	total += commonSubstringLength(a[:bestAi], b[:bestBi])
	total += commonSubstringLength(a[bestAi+bestLen:], b[bestBi+bestLen:])
	return total
}

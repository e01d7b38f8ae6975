// Package handle derives unique human-readable handles (usernames and
// deployment domains) from free-text display names.
//
// The same generator serves both concerns; only the injected existence
// check differs (usernames are checked against the users table, domains
// against the projects table).
//
// KNOWN RACE, KEPT DELIBERATELY:
// The existence check and the eventual row insert are not one atomic
// operation. Two concurrent signups deriving the same handle can both
// pass the check before either commits; the store's UNIQUE constraint is
// the backstop and surfaces as a Conflict error. Callers own the retry.
// Likewise, the post-collision fallback handle is returned without a
// final existence check.
package handle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/gohost/backend/internal/apperror"
)

// maxAttempts bounds the collision probe before falling back to a
// random suffix.
const maxAttempts = 10

// Checker reports whether a candidate handle is already taken.
// Implementations are read-only lookups against the store.
type Checker func(ctx context.Context, handle string) (bool, error)

// Generator derives unique handles using an injected existence check.
type Generator struct {
	exists Checker
}

// New creates a Generator backed by the given existence check.
func New(exists Checker) *Generator {
	return &Generator{exists: exists}
}

// Generate derives a handle for the given display name.
//
// The name is trimmed, lower-cased and split on whitespace into a first
// and last token (the last token is the final word, so middle names are
// ignored). Candidates are probed in order:
//
//	1.     {firstInitial}{last}
//	2..n   progressively longer prefixes of first or last, joined by "-"
//
// for up to maxAttempts probes. If every candidate is taken, the base
// candidate gets a random 0-999 suffix and is returned unchecked.
//
// A name with a single token short-circuits to {token}{3-digit random}.
// A name with no usable token is a validation error.
func (g *Generator) Generate(ctx context.Context, displayName string) (string, error) {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(displayName)))
	if len(tokens) == 0 || tokens[0] == "" {
		return "", apperror.ValidationFailed("name", "name does not yield a usable handle")
	}

	first := tokens[0]
	if len(tokens) == 1 {
		// No last name to build from — single random suffix, no probe.
		return fmt.Sprintf("%s%03d", first, rand.IntN(1000)), nil
	}
	last := tokens[len(tokens)-1]

	// Slice runes, not bytes; display names are not guaranteed ASCII and
	// a byte-level prefix can split a multi-byte character.
	firstRunes := []rune(first)
	lastRunes := []rune(last)
	base := string(firstRunes[:1]) + last

	candidate := base
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		switch {
		case attempt == 1:
			candidate = base
		case len(firstRunes)-1 > attempt:
			candidate = string(firstRunes[:attempt]) + "-" + last
		case len(lastRunes)-1 > attempt:
			candidate = first + "-" + string(lastRunes[:attempt])
		}

		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("handle: checking %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	// Every probe collided. Accept the small chance of a further
	// collision here; the store's unique constraint catches it.
	return fmt.Sprintf("%s-%d", base, rand.IntN(1000)), nil
}

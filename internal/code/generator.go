// Package code synthesizes redemption codes. A code is a display
// artifact handed out on withdrawal, not a security token, so plain
// pseudo-randomness is sufficient.
package code

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/marketbet/referral-bot/internal/apperr"
	"github.com/marketbet/referral-bot/internal/domain"
)

const (
	digits  = "0123456789"
	letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// digitChance is the per-position probability of placing a digit
	// while the digit quota is unmet.
	digitChance = 0.4

	maxAttempts = 10
)

// ExistsFunc reports whether a candidate code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// Generator produces 14-character codes of digits and uppercase letters
// with exactly 5 or 6 digits scattered across the positions, retrying on
// uniqueness collisions.
type Generator struct {
	exists ExistsFunc
	randFn func() float64
	intFn  func(n int) int
}

// NewGenerator creates a Generator that checks candidates through exists.
func NewGenerator(exists ExistsFunc) *Generator {
	return &Generator{
		exists: exists,
		randFn: rand.Float64,
		intFn:  rand.IntN,
	}
}

// Generate returns a fresh unique code. Collisions are astronomically
// unlikely given the alphabet, but the store is always consulted.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate := g.newCandidate()

		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", apperr.NewStoreError(err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", apperr.NewStoreError(fmt.Errorf("no unique code found after %d attempts", maxAttempts))
}

func (g *Generator) newCandidate() string {
	targetDigits := 5 + g.intFn(2) // 5 or 6 digits per code

	buf := make([]byte, 0, domain.CodeLength)
	digitCount := 0

	for i := 0; i < domain.CodeLength; i++ {
		remaining := domain.CodeLength - i
		mustBeDigit := remaining <= targetDigits-digitCount

		if digitCount < targetDigits && (mustBeDigit || g.randFn() < digitChance) {
			buf = append(buf, digits[g.intFn(len(digits))])
			digitCount++
			continue
		}

		buf = append(buf, letters[g.intFn(len(letters))])
	}

	return string(buf)
}

package code

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func neverExists(ctx context.Context, code string) (bool, error) {
	return false, nil
}

func TestGenerator_Shape(t *testing.T) {
	g := NewGenerator(neverExists)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		code, err := g.Generate(ctx)
		require.NoError(t, err)
		require.Len(t, code, 14)

		digitCount := 0
		for _, ch := range code {
			switch {
			case ch >= '0' && ch <= '9':
				digitCount++
			case ch >= 'A' && ch <= 'Z':
			default:
				t.Fatalf("unexpected character %q in code %q", ch, code)
			}
		}

		assert.Contains(t, []int{5, 6}, digitCount, "code %q has %d digits", code, digitCount)
	}
}

func TestGenerator_UniqueUnderForcedCollisions(t *testing.T) {
	seen := make(map[string]bool)
	exists := func(ctx context.Context, code string) (bool, error) {
		return seen[code], nil
	}

	g := NewGenerator(exists)
	ctx := context.Background()

	for i := 0; i < 500; i++ {
		code, err := g.Generate(ctx)
		require.NoError(t, err)
		require.False(t, seen[code], "generator returned duplicate code %q", code)
		seen[code] = true
	}
}

func TestGenerator_RetriesOnCollision(t *testing.T) {
	calls := 0
	exists := func(ctx context.Context, code string) (bool, error) {
		calls++
		// Force the first two candidates to collide.
		return calls <= 2, nil
	}

	g := NewGenerator(exists)

	code, err := g.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, code, 14)
	assert.Equal(t, 3, calls)
}

func TestGenerator_GivesUpAfterMaxAttempts(t *testing.T) {
	exists := func(ctx context.Context, code string) (bool, error) {
		return true, nil
	}

	g := NewGenerator(exists)

	_, err := g.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "no unique code found"))
}

func TestGenerator_PropagatesStoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	exists := func(ctx context.Context, code string) (bool, error) {
		return false, storeErr
	}

	g := NewGenerator(exists)

	_, err := g.Generate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestGenerator_DigitQuotaForcedAtTail(t *testing.T) {
	g := NewGenerator(neverExists)
	// Never volunteer a digit: the quota must still be met by the
	// forced placement at the tail.
	g.randFn = func() float64 { return 1.0 }

	code := g.newCandidate()
	require.Len(t, code, 14)

	digitCount := 0
	for _, ch := range code {
		if ch >= '0' && ch <= '9' {
			digitCount++
		}
	}
	assert.Contains(t, []int{5, 6}, digitCount)
}

package rank

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutcomeEqualRatings(t *testing.T) {
	// Equal ratings mean an expected score of 0.5 each, so the full
	// half-K swing applies.
	winner, loser := Outcome(1500, 1500, DefaultK)
	require.Equal(t, 1516, winner)
	require.Equal(t, 1484, loser)

	winner, loser = Outcome(1200, 1200, DefaultK)
	require.Equal(t, 1216, winner)
	require.Equal(t, 1184, loser)
}

func TestOutcomeFavoriteWins(t *testing.T) {
	// A 200-point favorite gains little from a win.
	winner, loser := Outcome(1600, 1400, DefaultK)
	require.Equal(t, 1608, winner)
	require.Equal(t, 1392, loser)
}

func TestOutcomeUpset(t *testing.T) {
	// An underdog win swings almost the full K.
	winner, loser := Outcome(1400, 1600, DefaultK)
	require.Equal(t, 1424, winner)
	require.Equal(t, 1576, loser)
}

func TestOutcomeSymmetricAlternation(t *testing.T) {
	// Two entries trading wins stay near their starting rating; the
	// integer rounding bounds the oscillation, it does not let the
	// pair drift away from 1500.
	a, b := 1500, 1500
	for i := 0; i < 50; i++ {
		a, b = Outcome(a, b, DefaultK)
		b, a = Outcome(b, a, DefaultK)
	}
	require.InDelta(t, 1500, a, 16)
	require.InDelta(t, 1500, b, 16)
	require.Equal(t, 3000, a+b, "alternating wins must not create or destroy rating mass")
}

func TestOutcomeZeroK(t *testing.T) {
	winner, loser := Outcome(1500, 1480, 0)
	require.Equal(t, 1500, winner)
	require.Equal(t, 1480, loser)
}

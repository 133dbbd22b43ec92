// Package rank implements the pairwise rating update applied after a
// head-to-head comparison between two catalog entries.
package rank

import "math"

// DefaultK is the maximum rating change from a single comparison.
const DefaultK = 32

// InitialRating is assigned to every new entry.
const InitialRating = 1500

// Outcome computes new ratings for the winner and loser of one
// pairwise comparison using the standard Elo update. It is a pure
// function; the caller persists both values atomically.
//
// Rounding is half away from zero (math.Round). Under repeated
// symmetric outcomes the integer ratings drift by at most the
// rounding error of a single update.
func Outcome(winnerRating, loserRating, kFactor int) (newWinner, newLoser int) {
	k := float64(kFactor)
	expectedWinner := 1 / (1 + math.Pow(10, float64(loserRating-winnerRating)/400))
	expectedLoser := 1 - expectedWinner

	newWinner = int(math.Round(float64(winnerRating) + k*(1-expectedWinner)))
	newLoser = int(math.Round(float64(loserRating) + k*(0-expectedLoser)))
	return newWinner, newLoser
}

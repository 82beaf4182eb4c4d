// Package dice implements the dice-rolling logic for game turns.
package dice

import (
	"errors"
	"math/rand"
)

// Sides is the die used for movement rolls.
const Sides = 6

// ErrInvalidSpec indicates a roll request has invalid fields.
var ErrInvalidSpec = errors.New("dice must have positive sides and count")

// RollRequest describes a request to roll one or more dice.
type RollRequest struct {
	Sides int
	Count int
	Seed  int64
}

// RollResult captures the results of a roll.
type RollResult struct {
	Results []int
	Total   int
}

// Roll rolls dice based on the provided request.
//
// Roll is deterministic with respect to Seed: the same request always
// produces the same result. Replaying a journaled seed reproduces the
// roll exactly.
func Roll(request RollRequest) (RollResult, error) {
	if request.Sides <= 0 || request.Count <= 0 {
		return RollResult{}, ErrInvalidSpec
	}

	rng := rand.New(rand.NewSource(request.Seed))
	results := make([]int, request.Count)
	total := 0
	for i := range results {
		value := rng.Intn(request.Sides) + 1
		results[i] = value
		total += value
	}

	return RollResult{Results: results, Total: total}, nil
}

// RollMovement rolls the single movement die for a turn.
func RollMovement(seed int64) int {
	result, err := Roll(RollRequest{Sides: Sides, Count: 1, Seed: seed})
	if err != nil {
		// Unreachable: the spec is hardcoded and always valid.
		panic(err)
	}
	return result.Results[0]
}

// InRange reports whether a raw die value is a legal movement roll.
func InRange(value int) bool {
	return value >= 1 && value <= Sides
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package picker

import (
	"errors"
	"math/rand/v2"
)

var ErrNoActiveSlots = errors.New("no active slots to pick from")

// Rand is the randomness source used for winner selection.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// SelectWinner picks one of slots uniformly at random and returns its touch id.
func SelectWinner(slots []Slot, rng Rand) (int64, error) {
	if len(slots) == 0 {
		return 0, ErrNoActiveSlots
	}

	k := rng.IntN(len(slots))
	if k < 0 || k >= len(slots) {
		k = 0
	}

	return slots[k].TouchID, nil
}

// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pcc

import "math/rand"

// DirectionSource supplies the coin flip MaybeSetSendingRate uses to choose
// which of a probing pair goes first. Any source of uniform bits works;
// tests should inject a deterministic one so probe ordering is reproducible.
type DirectionSource interface {
	// NextDirection returns increase or decrease with equal probability.
	NextDirection() direction
}

// defaultDirectionSource draws from the package-level math/rand generator,
// which is automatically seeded.
type defaultDirectionSource struct{}

func (defaultDirectionSource) NextDirection() direction {
	if rand.Intn(2) == 1 { //nolint:gosec
		return increase
	}

	return decrease
}

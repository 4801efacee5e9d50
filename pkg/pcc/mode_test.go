// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderModeString(t *testing.T) {
	assert.Equal(t, "starting", starting.String())
	assert.Equal(t, "probing", probing.String())
	assert.Equal(t, "decisionMade", decisionMade.String())
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, decrease, increase.opposite())
	assert.Equal(t, increase, decrease.opposite())
}

func TestPositive(t *testing.T) {
	assert.True(t, positive(0.1))
	assert.False(t, positive(0))
	assert.False(t, positive(-0.1))
}

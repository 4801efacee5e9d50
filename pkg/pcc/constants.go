// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package pcc implements the sender side of Performance-oriented Congestion
// Control: a rate controller that experimentally compares the utility of
// different sending rates instead of reacting to individual loss events.
package pcc

import "time"

const (
	megabit = 1 << 20

	// minSendingRate is the lowest rate the controller will ever target.
	minSendingRate = 2 * megabit
	// minRateChange is the smallest magnitude a single rate adjustment may have.
	minRateChange = 0.5 * megabit

	defaultMSS             = 1400
	minimumPacketsInterval = 10
	intervalGroupsProbing  = 2

	probingStep         = 0.05
	decisionStep        = 0.02
	maxDecisionStep     = 0.10
	startingRTTTol      = 0.30
	decisionRTTTol      = 0.05
	gradientToRateScale = megabit

	avgGradientSampleSize = 1

	utilityAlpha    = 1.0
	utilityExponent = 0.9
	lossLow         = 1.0
	lossHigh        = 11.35
	lossThreshold   = 0.03
	rttCoefficient  = 11330.0

	initialMaxProportionalChange = 0.05
	maxProportionalChangeStep    = 0.06

	microsPerSecond = 1_000_000.0
)

// usToDuration converts a microsecond count, as used throughout the PCC wire
// contract, into a time.Duration.
func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// durationToUs converts a time.Duration into the microsecond count PCC works in.
func durationToUs(d time.Duration) int64 {
	return int64(d / time.Microsecond)
}

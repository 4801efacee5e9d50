// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pcc

import "math"

// calculateUtility computes mi.utility from its sent/acked/lost counters and
// RTT samples. It returns false when the interval carries no usable
// information (a single packet gives no duration to measure a rate over).
//
// The rtt_penalty truncation ladder below is reproduced bit-for-bit from the
// reference sender: two stages of integer truncation toward zero followed by
// rounding down to the nearest 0.02. Using math.Round or math.Floor here
// would silently diverge on negative latency_inflation values.
func calculateUtility(mi *monitorInterval) bool {
	if mi.lastPacketSentTime.Equal(mi.firstPacketSentTime) {
		return false
	}

	miDurationUs := mi.lastPacketSentTime.Sub(mi.firstPacketSentTime).Microseconds()
	if miDurationUs < 1 {
		miDurationUs = 1
	}
	miSeconds := float64(miDurationUs) / microsPerSecond

	bytesSent := float64(mi.bytesSent)
	bytesLost := float64(mi.bytesLost)

	sendingRateBps := bytesSent * 8.0 / miSeconds
	sendingFactor := utilityAlpha * math.Pow(sendingRateBps/megabit, utilityExponent)

	halfSamples := len(mi.packetRTTSamples) / 2
	var firstHalf, secondHalf float64
	for i := 0; i < halfSamples; i++ {
		firstHalf += float64(mi.packetRTTSamples[i].rtt.Microseconds())
		secondHalf += float64(mi.packetRTTSamples[i+halfSamples].rtt.Microseconds())
	}
	latencyInflation := 2.0 * (secondHalf - firstHalf) / (firstHalf + secondHalf)

	rttPenalty := float64(int(float64(int(latencyInflation*100))/100.0*100)/2*2) / 100.0
	rttContribution := rttCoefficient * bytesSent * rttPenalty

	lossRate := bytesLost / bytesSent
	lossCoeff := lossLow
	if lossRate > lossThreshold {
		lossCoeff = lossHigh
	}
	lossContribution := float64(mi.nPackets) * (lossCoeff * ((1 + lossRate) - 1))

	mi.utility = sendingFactor - (lossContribution+rttContribution)*(sendingRateBps/megabit)/float64(mi.nPackets)

	return true
}

// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pcc

import "time"

// packetRTTSample stores the packet number and its corresponding RTT, in
// the order packets were acked.
type packetRTTSample struct {
	packetNumber int64
	rtt          time.Duration
}

// monitorInterval is a single PCC rate trial: a fixed sending rate tested
// over one window, with the packets and acks attributed to it by the
// MonitorIntervalQueue.
type monitorInterval struct {
	sendingRate                  float64 // bits/s
	isUseful                     bool
	rttFluctuationToleranceRatio float64
	endTime                      time.Time

	firstPacketSentTime time.Time
	lastPacketSentTime  time.Time

	firstPacketNumber int64
	lastPacketNumber  int64

	bytesSent  int64
	bytesAcked int64
	bytesLost  int64
	nPackets   int64

	rttOnMonitorStart time.Duration
	rttOnMonitorEnd   time.Duration

	utility float64

	packetRTTSamples []packetRTTSample
}

func newMonitorInterval(
	sendingRate float64,
	isUseful bool,
	rttFluctuationToleranceRatio float64,
	rtt time.Duration,
	endTime time.Time,
) monitorInterval {
	return monitorInterval{
		sendingRate:                  sendingRate,
		isUseful:                     isUseful,
		rttFluctuationToleranceRatio: rttFluctuationToleranceRatio,
		endTime:                      endTime,
		rttOnMonitorStart:            rtt,
		rttOnMonitorEnd:              rtt,
	}
}

// containsPacket reports whether packetNumber falls within this interval's
// closed first/last packet range.
func (mi *monitorInterval) containsPacket(packetNumber int64) bool {
	return packetNumber >= mi.firstPacketNumber && packetNumber <= mi.lastPacketNumber
}

// utilityAvailable reports whether every packet sent in this interval has
// been either acked or lost, and the interval's window has elapsed.
func (mi *monitorInterval) utilityAvailable(now time.Time) bool {
	return !now.Before(mi.endTime) && mi.bytesAcked+mi.bytesLost == mi.bytesSent
}

// onPacketSent records a packet sent while this interval was the tail of
// the queue.
func (mi *monitorInterval) onPacketSent(sentTime time.Time, packetNumber int64, bytes int64) {
	if mi.bytesSent == 0 {
		mi.firstPacketSentTime = sentTime
		mi.firstPacketNumber = packetNumber
	}

	mi.lastPacketSentTime = sentTime
	mi.lastPacketNumber = packetNumber
	mi.bytesSent += bytes
	mi.nPackets++
}

// utilityInfo pairs a trial's sending rate with its resulting utility.
type utilityInfo struct {
	sendingRate float64
	utility     float64
}

// gradientWindow keeps a bounded running mean of recent utility gradients,
// per the AVG_GRADIENT_SAMPLE_SIZE window. With a window of 1 it simply
// tracks the latest sample.
type gradientWindow struct {
	size    int
	samples []float64
	avg     float64
}

func newGradientWindow(size int) *gradientWindow {
	if size < 1 {
		size = 1
	}

	return &gradientWindow{size: size}
}

// update folds in a new gradient sample and returns the updated average.
func (g *gradientWindow) update(sample float64) float64 {
	switch {
	case len(g.samples) == 0:
		g.avg = sample
	case len(g.samples) < g.size:
		n := float64(len(g.samples))
		g.avg = (g.avg*n + sample) / (n + 1)
	default:
		oldest := g.samples[0]
		g.samples = g.samples[1:]
		g.avg += sample/float64(g.size) - oldest/float64(g.size)
	}
	g.samples = append(g.samples, sample)

	return g.avg
}

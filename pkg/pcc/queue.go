// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pcc

import "time"

// ackedPacket and lostPacket describe one congestion event outcome, keyed by
// the PCC-internal monotonic packet number assigned at send time.
type ackedPacket struct {
	packetNumber int64
	bytesAcked   int64
}

type lostPacket struct {
	packetNumber int64
	bytesLost    int64
}

// utilityDelegate receives a completed batch of utilities, one per useful
// interval, in enqueue order. It is the RateController in production and a
// recording stub in tests.
type utilityDelegate interface {
	onUtilityAvailable(batch []utilityInfo)
}

// monitorIntervalQueue is an ordered sequence of monitorIntervals. New
// intervals are appended at the tail; intervals are removed from the head
// once every useful interval in the queue has a utility.
type monitorIntervalQueue struct {
	intervals []monitorInterval

	numUsefulIntervals    int
	numAvailableIntervals int

	delegate utilityDelegate
}

func newMonitorIntervalQueue(delegate utilityDelegate) *monitorIntervalQueue {
	return &monitorIntervalQueue{delegate: delegate}
}

// enqueue appends a new monitorInterval at the tail of the queue.
func (q *monitorIntervalQueue) enqueue(
	sendingRate float64,
	isUseful bool,
	rttFluctuationToleranceRatio float64,
	rtt time.Duration,
	endTime time.Time,
) {
	if isUseful {
		q.numUsefulIntervals++
	}

	q.intervals = append(q.intervals, newMonitorInterval(sendingRate, isUseful, rttFluctuationToleranceRatio, rtt, endTime))
}

// onPacketSent updates the tail interval, if any, with a freshly sent packet.
func (q *monitorIntervalQueue) onPacketSent(sentTime time.Time, packetNumber int64, bytes int64) {
	if len(q.intervals) == 0 {
		return
	}

	q.intervals[len(q.intervals)-1].onPacketSent(sentTime, packetNumber, bytes)
}

// current returns the tail (most recently enqueued) interval.
func (q *monitorIntervalQueue) current() *monitorInterval {
	return &q.intervals[len(q.intervals)-1]
}

func (q *monitorIntervalQueue) empty() bool {
	return len(q.intervals) == 0
}

func (q *monitorIntervalQueue) size() int {
	return len(q.intervals)
}

// onRttInflationInStarting clears the queue. Called by the controller when
// STARTING observes intolerable RTT inflation.
func (q *monitorIntervalQueue) onRttInflationInStarting() {
	q.intervals = nil
	q.numUsefulIntervals = 0
	q.numAvailableIntervals = 0
}

// onCongestionEvent attributes acked/lost bytes to the intervals they belong
// to, computing utility for any interval that completes, and delivers a
// batch to the delegate once every useful interval has a utility available.
func (q *monitorIntervalQueue) onCongestionEvent(acked []ackedPacket, lost []lostPacket, rtt time.Duration, eventTime time.Time) {
	q.numAvailableIntervals = 0
	if q.numUsefulIntervals == 0 {
		return
	}

	hasInvalidUtility := false

	for i := range q.intervals {
		mi := &q.intervals[i]
		if !mi.isUseful {
			continue
		}

		if mi.utilityAvailable(eventTime) {
			q.numAvailableIntervals++

			continue
		}

		for _, lp := range lost {
			if mi.containsPacket(lp.packetNumber) {
				mi.bytesLost += lp.bytesLost
			}
		}

		for _, ap := range acked {
			if mi.containsPacket(ap.packetNumber) {
				mi.bytesAcked += ap.bytesAcked
				mi.packetRTTSamples = append(mi.packetRTTSamples, packetRTTSample{packetNumber: ap.packetNumber, rtt: rtt})
			}
		}

		if mi.utilityAvailable(eventTime) {
			mi.rttOnMonitorEnd = rtt
			if !calculateUtility(mi) {
				hasInvalidUtility = true

				break
			}
			q.numAvailableIntervals++
		}
	}

	if q.numUsefulIntervals > q.numAvailableIntervals && !hasInvalidUtility {
		return
	}

	if !hasInvalidUtility {
		batch := make([]utilityInfo, 0, q.numUsefulIntervals)
		for i := range q.intervals {
			if !q.intervals[i].isUseful {
				continue
			}
			batch = append(batch, utilityInfo{sendingRate: q.intervals[i].sendingRate, utility: q.intervals[i].utility})
		}

		q.delegate.onUtilityAvailable(batch)
	}

	q.drainUseful()
}

// drainUseful removes intervals from the head of the queue until every
// useful interval has been popped; non-useful intervals encountered along
// the way are popped too.
func (q *monitorIntervalQueue) drainUseful() {
	for q.numUsefulIntervals > 0 {
		if q.intervals[0].isUseful {
			q.numUsefulIntervals--
		}
		q.intervals = q.intervals[1:]
	}
	q.numAvailableIntervals = 0
}

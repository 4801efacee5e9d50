// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pcc

import (
	"math"
	"time"
)

// RateController is the PCC state machine. It chooses the sending rate of
// the next monitor interval, ingests utility batches from the queue it
// owns, and moves between STARTING, PROBING, and DECISION_MADE.
//
// RateController is single-threaded cooperative: every method must be
// called from the same executor that owns the transport's ack/loss
// callbacks. No method blocks or suspends, and no locking is done.
type RateController struct {
	mode senderMode

	sendingRate     float64 // bits/s
	latestUtility   utilityInfo
	monitorDuration time.Duration
	dir             direction
	rounds          int
	avgRTT          time.Duration
	initialRTT      time.Duration
	maxCwndPackets  int64

	swingBuffer                   int
	rateChangeAmplifier           float64
	rateChangeProportionAllowance int
	previousChange                float64

	gradient *gradientWindow

	queue *monitorIntervalQueue
	rng   DirectionSource
}

// Option configures a RateController at construction time.
type Option func(*RateController)

// WithDirectionSource overrides the random source used to pick which
// direction a probing pair starts with.
func WithDirectionSource(src DirectionSource) Option {
	return func(c *RateController) {
		c.rng = src
	}
}

// NewRateController constructs a RateController in STARTING mode.
// initialRTT seeds both the provisioning RTT and the initial sending rate,
// which is derived from initialCwndPackets at the usual MSS. maxCwndPackets
// is accepted for parity with the reference sender but is not currently
// enforced; see DESIGN.md.
func NewRateController(initialRTT time.Duration, initialCwndPackets, maxCwndPackets int64, opts ...Option) *RateController {
	c := &RateController{
		mode:           starting,
		rounds:         1,
		initialRTT:     initialRTT,
		maxCwndPackets: maxCwndPackets,
		dir:            increase,
		gradient:       newGradientWindow(avgGradientSampleSize),
		rng:            defaultDirectionSource{},
	}
	c.sendingRate = float64(initialCwndPackets) * defaultMSS * 8 * microsPerSecond / float64(durationToUs(initialRTT))

	for _, opt := range opts {
		opt(c)
	}

	c.queue = newMonitorIntervalQueue(c)

	return c
}

// OnPacketSent may open a new monitor interval before forwarding the sent
// packet to the queue. isRetransmittable is accepted for parity with the
// reference sender's calling convention; PCC does not currently distinguish
// retransmissions.
func (c *RateController) OnPacketSent(sentTime time.Time, packetNumber int64, bytes int64, _ bool) {
	if c.queue.numUsefulIntervals == 0 ||
		(c.avgRTT != 0 && sentTime.Sub(c.queue.current().firstPacketSentTime) > c.monitorDuration) {
		c.openMonitorInterval(sentTime)
	}

	c.queue.onPacketSent(sentTime, packetNumber, bytes)
}

func (c *RateController) openMonitorInterval(sentTime time.Time) {
	c.maybeSetSendingRate()

	c.monitorDuration = computeMonitorDuration(c.sendingRate, c.avgRTT)

	rttTol := 0.0
	switch c.mode {
	case starting:
		rttTol = startingRTTTol
	case decisionMade:
		rttTol = decisionRTTTol
	case probing:
		rttTol = 0.0
	}

	isUseful := c.createsUsefulInterval()
	c.queue.enqueue(c.sendingRate, isUseful, rttTol, c.avgRTT, sentTime.Add(c.monitorDuration))
}

// computeMonitorDuration returns 1.5x the smoothed RTT, floored so an
// interval always carries at least minimumPacketsInterval packets at the
// given rate.
func computeMonitorDuration(sendingRate float64, rtt time.Duration) time.Duration {
	minDurationUs := minimumPacketsInterval * 8.0 * defaultMSS / sendingRate * microsPerSecond
	rttUs := 1.5 * float64(durationToUs(rtt))

	return usToDuration(int64(math.Max(rttUs, minDurationUs)))
}

// createsUsefulInterval reports whether the next interval should be useful,
// i.e. contribute to a decision. No interval is useful before the first RTT
// sample arrives, and each mode caps how many useful intervals may be
// outstanding at once.
func (c *RateController) createsUsefulInterval() bool {
	if c.avgRTT == 0 {
		return false
	}

	maxUseful := 1
	if c.mode == probing {
		maxUseful = 2 * intervalGroupsProbing
	}

	return c.queue.numUsefulIntervals < maxUseful
}

// OnCongestionEvent updates the smoothed RTT and either fast-paths into
// PROBING (STARTING RTT inflation) or forwards the event to the queue.
func (c *RateController) OnCongestionEvent(eventTime time.Time, rtt time.Duration, acked []ackedPacket, lost []lostPacket) {
	if rtt != 0 {
		if c.avgRTT == 0 {
			c.avgRTT = rtt
		} else {
			c.avgRTT = time.Duration((float64(c.avgRTT)*3.0 + float64(rtt)) / 4.0)
		}

		if c.mode == starting && !c.queue.empty() &&
			c.queue.current().rttOnMonitorStart != 0 &&
			rtt > time.Duration((1+startingRTTTol)*float64(c.queue.current().rttOnMonitorStart)) {
			c.queue.onRttInflationInStarting()
			c.enterProbing()

			return
		}
	}

	c.queue.onCongestionEvent(acked, lost, rtt, eventTime)
}

// PacingRate returns the sending rate of the current interval if one is
// open, else the controller's own sending rate.
func (c *RateController) PacingRate() float64 {
	if c.queue.empty() {
		return c.sendingRate
	}

	return c.queue.current().sendingRate
}

// CongestionWindow returns sendingRate*rtt/1e6, using avgRTT when available
// and falling back to the provisioning initialRTT otherwise.
func (c *RateController) CongestionWindow() int64 {
	rtt := c.avgRTT
	if rtt == 0 {
		rtt = c.initialRTT
	}

	return int64(c.sendingRate * float64(durationToUs(rtt)) / microsPerSecond)
}

// onUtilityAvailable implements utilityDelegate; it is the rate-controller's
// state-machine step, invoked by the queue once a batch is ready.
func (c *RateController) onUtilityAvailable(batch []utilityInfo) {
	switch c.mode {
	case starting:
		c.onUtilityAvailableStarting(batch)
	case probing:
		c.onUtilityAvailableProbing(batch)
	case decisionMade:
		c.onUtilityAvailableDecisionMade(batch)
	}
}

func (c *RateController) onUtilityAvailableStarting(batch []utilityInfo) {
	if batch[0].utility > c.latestUtility.utility {
		c.sendingRate *= 2
		c.latestUtility = batch[0]
		c.rounds++

		return
	}

	c.enterProbing()
}

func (c *RateController) onUtilityAvailableProbing(batch []utilityInfo) {
	if !c.canMakeDecision(batch) {
		c.enterProbing()

		return
	}

	if batch[0].utility > batch[1].utility {
		if batch[0].sendingRate > batch[1].sendingRate {
			c.dir = increase
		} else {
			c.dir = decrease
		}
	} else {
		if batch[0].sendingRate > batch[1].sendingRate {
			c.dir = decrease
		} else {
			c.dir = increase
		}
	}

	// The reference sender sets latestUtility from the *second* probing
	// group (batch[2] vs batch[3]), not the first; preserved verbatim.
	if batch[2*intervalGroupsProbing-2].utility > batch[2*intervalGroupsProbing-1].utility {
		c.latestUtility = batch[2*intervalGroupsProbing-2]
	} else {
		c.latestUtility = batch[2*intervalGroupsProbing-1]
	}

	rateChange := c.computeRateChange(batch[0], batch[1])
	if c.sendingRate+rateChange < minSendingRate {
		rateChange = minSendingRate - c.sendingRate
	}
	c.previousChange = rateChange
	c.enterDecisionMade(c.sendingRate + rateChange)
}

func (c *RateController) onUtilityAvailableDecisionMade(batch []utilityInfo) {
	rateChange := c.computeRateChange(batch[0], c.latestUtility)
	if c.sendingRate+rateChange < minSendingRate {
		rateChange = minSendingRate - c.sendingRate
	}

	if positive(rateChange) == positive(c.previousChange) {
		c.previousChange = rateChange
		c.sendingRate += rateChange
		c.latestUtility = batch[0]

		return
	}

	c.enterProbing()
}

// canMakeDecision reports whether every probing group agrees on a direction.
func (c *RateController) canMakeDecision(batch []utilityInfo) bool {
	if len(batch) < 2*intervalGroupsProbing {
		return false
	}

	var groupIncrease bool
	for i := 0; i < intervalGroupsProbing; i++ {
		a, b := batch[2*i], batch[2*i+1]

		var incr bool
		if a.utility > b.utility {
			incr = a.sendingRate > b.sendingRate
		} else {
			incr = a.sendingRate < b.sendingRate
		}

		if i == 0 {
			groupIncrease = incr
		} else if incr != groupIncrease {
			return false
		}
	}

	return true
}

// computeRateChange turns two utility samples into a signed rate
// adjustment, amplified to accelerate runs of same-direction changes and
// capped to a proportion of the current rate.
func (c *RateController) computeRateChange(s1, s2 utilityInfo) float64 {
	if s1.sendingRate == s2.sendingRate {
		return minRateChange
	}

	gradient := megabit * (s1.utility - s2.utility) / (s1.sendingRate - s2.sendingRate)
	avgGradient := c.gradient.update(gradient)
	change := avgGradient * gradientToRateScale

	if positive(change) != positive(c.previousChange) {
		c.rateChangeAmplifier = 0
		c.rateChangeProportionAllowance = 0
		if c.swingBuffer < 2 {
			c.swingBuffer++
		}
	}

	switch {
	case c.rateChangeAmplifier < 3:
		change *= c.rateChangeAmplifier + 1
	case c.rateChangeAmplifier < 6:
		change *= 2*c.rateChangeAmplifier - 2
	case c.rateChangeAmplifier < 9:
		change *= 4*c.rateChangeAmplifier - 14
	default:
		change *= 9*c.rateChangeAmplifier - 50
	}

	if positive(change) == positive(c.previousChange) {
		if c.swingBuffer == 0 {
			if c.rateChangeAmplifier < 3 {
				c.rateChangeAmplifier += 0.5
			} else {
				c.rateChangeAmplifier++
			}
		}
		if c.swingBuffer > 0 {
			c.swingBuffer--
		}
	}

	maxAllowedChangeRatio := initialMaxProportionalChange + float64(c.rateChangeProportionAllowance)*maxProportionalChangeStep

	changeRatio := math.Abs(change / c.sendingRate)
	if changeRatio > maxAllowedChangeRatio {
		c.rateChangeProportionAllowance++
		if change < 0 {
			change = -maxAllowedChangeRatio * c.sendingRate
		} else {
			change = maxAllowedChangeRatio * c.sendingRate
		}
	} else if c.rateChangeProportionAllowance > 0 {
		c.rateChangeProportionAllowance--
	}

	// This second sign-mismatch check fires against the same previousChange
	// the first check already compared against; kept as the reference
	// sender has it (see DESIGN.md).
	if positive(change) != positive(c.previousChange) {
		c.rateChangeAmplifier = 0
		c.rateChangeProportionAllowance = 0
	}

	if change < 0 && change > -minRateChange {
		change = -minRateChange
	} else if change > 0 && change < minRateChange {
		change = minRateChange
	}

	return change
}

// maybeSetSendingRate is called when a new monitor interval is about to be
// opened. It restores the central probing rate once a probing pair
// completes and, while more probes remain, perturbs the rate for the next
// probe.
func (c *RateController) maybeSetSendingRate() {
	if c.mode != probing || (c.queue.numUsefulIntervals == 2*intervalGroupsProbing && !c.queue.empty() && !c.queue.current().isUseful) {
		return
	}

	if c.queue.numUsefulIntervals != 0 {
		if c.dir == increase {
			c.sendingRate *= 1.0 / (1 + probingStep)
		} else {
			c.sendingRate *= 1.0 / (1 - probingStep)
		}

		if c.queue.numUsefulIntervals == 2*intervalGroupsProbing {
			return
		}
	}

	if c.queue.numUsefulIntervals%2 == 0 {
		c.dir = c.rng.NextDirection()
	} else {
		c.dir = c.dir.opposite()
	}

	if c.dir == increase {
		c.sendingRate *= 1 + probingStep
	} else {
		c.sendingRate *= 1 - probingStep
	}
}

// enterProbing transitions into PROBING, undoing whatever rate perturbation
// the previous mode left behind so the probing rounds start from a central
// rate.
func (c *RateController) enterProbing() {
	switch c.mode {
	case starting:
		c.sendingRate *= 0.5
	case decisionMade:
		step := math.Min(float64(c.rounds)*decisionStep, maxDecisionStep)
		if c.dir == increase {
			c.sendingRate *= 1.0 / (1 + step)
		} else {
			c.sendingRate *= 1.0 / (1 - step)
		}
	case probing:
		if !c.queue.empty() && c.queue.current().isUseful {
			if c.dir == increase {
				c.sendingRate *= 1.0 / (1 + probingStep)
			} else {
				c.sendingRate *= 1.0 / (1 - probingStep)
			}
		}
	}

	if c.mode == probing {
		c.rounds++

		return
	}

	c.mode = probing
	c.rounds = 1
}

// enterDecisionMade transitions into DECISION_MADE at newRate.
func (c *RateController) enterDecisionMade(newRate float64) {
	c.sendingRate = newRate
	c.mode = decisionMade
	c.rounds = 1
}

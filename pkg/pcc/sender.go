// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package pcc

import (
	"container/list"
	"sync"
	"time"

	"github.com/pccsender/pcc"
	"github.com/pccsender/pcc/internal/cc"
	"github.com/pccsender/pcc/internal/types"
	"github.com/pion/logging"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const transportCCURI = "http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01"

// packetNumberHistorySize bounds how many in-flight TWCC sequence-number to
// PCC-packet-number mappings are retained. PCC packet numbers are a
// monotonic int64 the controller uses for range attribution; TWCC sequence
// numbers wrap at 16 bits and cannot be used directly.
const packetNumberHistorySize = 2048

// SendSideBWEOption configures a SendSideBWE at construction time.
type SendSideBWEOption func(*SendSideBWE) error

// InitialRTT sets the RTT used to seed the rate controller before any RTT
// sample has been observed.
func InitialRTT(rtt time.Duration) SendSideBWEOption {
	return func(b *SendSideBWE) error {
		b.initialRTT = rtt

		return nil
	}
}

// InitialCongestionWindow sets the initial congestion window, in packets,
// used to derive the controller's starting sending rate.
func InitialCongestionWindow(packets int64) SendSideBWEOption {
	return func(b *SendSideBWE) error {
		b.initialCwndPackets = packets

		return nil
	}
}

// MaxCongestionWindow sets the maximum congestion window, in packets,
// passed through to the rate controller. Reserved; see DESIGN.md.
func MaxCongestionWindow(packets int64) SendSideBWEOption {
	return func(b *SendSideBWE) error {
		b.maxCwndPackets = packets

		return nil
	}
}

// WithRateControllerOptions forwards options to the underlying RateController.
func WithRateControllerOptions(opts ...Option) SendSideBWEOption {
	return func(b *SendSideBWE) error {
		b.rateControllerOpts = append(b.rateControllerOpts, opts...)

		return nil
	}
}

// WithLoggerFactory sets the logger factory used by the estimator.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) SendSideBWEOption {
	return func(b *SendSideBWE) error {
		b.loggerFactory = loggerFactory

		return nil
	}
}

// SendSideBWE adapts a RateController to the pkg/cc BandwidthEstimator
// contract: it assigns PCC packet numbers on send, converts incoming TWCC
// feedback into the acked/lost ranges the controller expects, and exposes
// the resulting pacing rate.
type SendSideBWE struct {
	lock sync.Mutex

	controller *RateController
	feedback   *cc.FeedbackAdapter

	initialRTT         time.Duration
	initialCwndPackets int64
	maxCwndPackets     int64
	rateControllerOpts []Option

	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	nextPacketNumber int64
	packetNumbers    *packetNumberHistory

	onTargetBitrateChange func(int)
	peakBitrate           types.DataRate
}

// NewSendSideBWE constructs a PCC-based BandwidthEstimator suitable for
// pkg/cc.NewInterceptor's BandwidthEstimatorFactory.
func NewSendSideBWE(opts ...SendSideBWEOption) (*SendSideBWE, error) {
	b := &SendSideBWE{
		initialRTT:         10 * time.Millisecond,
		initialCwndPackets: 10,
		maxCwndPackets:     100,
		feedback:           cc.NewFeedbackAdapter(),
		packetNumbers:      newPacketNumberHistory(packetNumberHistorySize),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	if b.loggerFactory == nil {
		b.loggerFactory = logging.NewDefaultLoggerFactory()
	}
	b.log = b.loggerFactory.NewLogger("pcc")

	b.controller = NewRateController(b.initialRTT, b.initialCwndPackets, b.maxCwndPackets, b.rateControllerOpts...)

	return b, nil
}

// AddStream wraps writer so every outgoing RTP packet is assigned a PCC
// packet number and handed to the rate controller and feedback adapter.
func (b *SendSideBWE) AddStream(info *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	var hdrExtID uint8
	for _, e := range info.RTPHeaderExtensions {
		if e.URI == transportCCURI {
			hdrExtID = uint8(e.ID)

			break
		}
	}

	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, attributes interceptor.Attributes) (int, error) {
		now := time.Now()
		size := header.MarshalSize() + len(payload)

		if attributes == nil {
			attributes = make(interceptor.Attributes)
		}
		if hdrExtID != 0 {
			attributes.Set(cc.TwccExtensionAttributesKey, hdrExtID)
		}

		b.lock.Lock()
		packetNumber := b.nextPacketNumber
		b.nextPacketNumber++
		b.controller.OnPacketSent(now, packetNumber, int64(size), true)
		b.lock.Unlock()

		if err := b.feedback.OnSent(now, header, len(payload), attributes); err == nil {
			var tccExt rtp.TransportCCExtension
			if hdrExtID != 0 {
				if err := tccExt.Unmarshal(header.GetExtension(hdrExtID)); err == nil {
					b.lock.Lock()
					b.packetNumbers.add(tccExt.TransportSequence, packetNumber)
					b.lock.Unlock()
				}
			}
		}

		return writer.Write(header, payload, attributes)
	})
}

// WriteRTCP converts any TWCC feedback in pkts into a congestion event on
// the rate controller.
func (b *SendSideBWE) WriteRTCP(pkts []rtcp.Packet, _ interceptor.Attributes) error {
	for _, pkt := range pkts {
		twcc, ok := pkt.(*rtcp.TransportLayerCC)
		if !ok {
			continue
		}

		acks, err := b.feedback.OnTransportCCFeedback(time.Now(), twcc)
		if err != nil {
			return err
		}

		b.onFeedback(acks)
	}

	return nil
}

func (b *SendSideBWE) onFeedback(acks []cc.Acknowledgment) {
	acked := make([]ackedPacket, 0, len(acks))
	lost := make([]lostPacket, 0, len(acks))
	var rtt time.Duration

	b.lock.Lock()
	for _, ack := range acks {
		packetNumber, ok := b.packetNumbers.get(ack.SequenceNumber)
		if !ok {
			continue
		}

		if ack.Arrival.IsZero() {
			lost = append(lost, lostPacket{packetNumber: packetNumber, bytesLost: int64(ack.Size)})

			continue
		}

		acked = append(acked, ackedPacket{packetNumber: packetNumber, bytesAcked: int64(ack.Size)})
		if sample := ack.Arrival.Sub(ack.Departure); sample > 0 {
			rtt = sample
		}
	}

	if len(acked) == 0 && len(lost) == 0 {
		b.lock.Unlock()

		return
	}

	before := types.DataRate(b.controller.PacingRate())
	b.controller.OnCongestionEvent(time.Now(), rtt, acked, lost)
	after := types.DataRate(b.controller.PacingRate())
	b.peakBitrate = types.MaxDataRate(b.peakBitrate, after)
	cb := b.onTargetBitrateChange
	b.lock.Unlock()

	if before != after {
		b.log.Debugf("pacing rate %v -> %v bits/s (%v b/ms)", before, after, after.BitsPerMillisecond())
	}
	if cb != nil && before != after {
		cb(int(after))
	}
}

// GetTargetBitrate returns the controller's current pacing rate, in bits/s.
func (b *SendSideBWE) GetTargetBitrate() int {
	b.lock.Lock()
	defer b.lock.Unlock()

	return int(types.DataRate(b.controller.PacingRate()))
}

// OnTargetBitrateChange registers a callback invoked whenever feedback
// processing changes the pacing rate.
func (b *SendSideBWE) OnTargetBitrateChange(f func(bitrate int)) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.onTargetBitrateChange = f
}

// GetStats returns a sample of the controller's internal state.
func (b *SendSideBWE) GetStats() map[string]interface{} {
	b.lock.Lock()
	defer b.lock.Unlock()

	return map[string]interface{}{
		"mode":             b.controller.mode.String(),
		"sendingRate":      types.DataRate(b.controller.sendingRate),
		"peakBitrate":      b.peakBitrate,
		"avgRTT":           b.controller.avgRTT,
		"rounds":           b.controller.rounds,
		"congestionWindow": b.controller.CongestionWindow(),
	}
}

// Close implements BandwidthEstimator.
func (b *SendSideBWE) Close() error {
	return nil
}

// packetNumberHistory is a bounded LRU mapping TWCC sequence numbers to the
// PCC packet numbers assigned to them at send time, modeled on
// internal/cc's feedbackHistory.
type packetNumberHistory struct {
	size      int
	evictList *list.List
	items     map[uint16]*list.Element
}

type packetNumberEntry struct {
	seq          uint16
	packetNumber int64
}

func newPacketNumberHistory(size int) *packetNumberHistory {
	return &packetNumberHistory{
		size:      size,
		evictList: list.New(),
		items:     make(map[uint16]*list.Element),
	}
}

func (h *packetNumberHistory) add(seq uint16, packetNumber int64) {
	if ent, ok := h.items[seq]; ok {
		h.evictList.MoveToFront(ent)
		ent.Value = packetNumberEntry{seq: seq, packetNumber: packetNumber}

		return
	}

	ent := h.evictList.PushFront(packetNumberEntry{seq: seq, packetNumber: packetNumber})
	h.items[seq] = ent

	if h.evictList.Len() > h.size {
		oldest := h.evictList.Back()
		if oldest != nil {
			h.evictList.Remove(oldest)
			delete(h.items, oldest.Value.(packetNumberEntry).seq) //nolint:forcetypeassert
		}
	}
}

func (h *packetNumberHistory) get(seq uint16) (int64, bool) {
	ent, ok := h.items[seq]
	if !ok {
		return 0, false
	}

	return ent.Value.(packetNumberEntry).packetNumber, true //nolint:forcetypeassert
}

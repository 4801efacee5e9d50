// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package interceptor contains the Interceptor interface, with some useful
// interceptors that should be safe to use in most cases.
package interceptor

import (
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// SessionID identifies one RTP/RTCP session within a Factory.
type SessionID = string

// StreamInfo is the Context passed when a Stream is added or removed.
type StreamInfo struct {
	ID                   string
	Attributes           Attributes
	SSRC                 uint32
	SSRCRetransmission   uint32
	PayloadType          uint8
	RTPHeaderExtensions  []RTPHeaderExtension
	MimeType             string
	ClockRate            uint32
	Channels             uint16
	SDPFmtpLine          string
}

// RTPHeaderExtension represents a negotiated RTP header extension.
type RTPHeaderExtension struct {
	URI string
	ID  int
}

// RTPWriter is used by Interceptor.BindLocalStream.
type RTPWriter interface {
	// Write a rtp packet
	Write(header *rtp.Header, payload []byte, attributes Attributes) (int, error)
}

// RTPWriterFunc is an adapter for RTPWriter interface
type RTPWriterFunc func(header *rtp.Header, payload []byte, attributes Attributes) (int, error)

// Write a rtp packet
func (f RTPWriterFunc) Write(header *rtp.Header, payload []byte, attributes Attributes) (int, error) {
	return f(header, payload, attributes)
}

// RTPReader is used by Interceptor.BindRemoteStream.
type RTPReader interface {
	// Read a rtp packet
	Read([]byte, Attributes) (int, Attributes, error)
}

// RTPReaderFunc is an adapter for RTPReader interface
type RTPReaderFunc func([]byte, Attributes) (int, Attributes, error)

// Read a rtp packet
func (f RTPReaderFunc) Read(b []byte, a Attributes) (int, Attributes, error) {
	return f(b, a)
}

// RTPProcessor processes an already-read RTP packet in place.
type RTPProcessor interface {
	Process(n int, buf []byte, attr Attributes) (int, Attributes, error)
}

// RTPProcessorFunc is an adapter for the RTPProcessor interface.
type RTPProcessorFunc func(n int, buf []byte, attr Attributes) (int, Attributes, error)

// Process implements RTPProcessor.
func (f RTPProcessorFunc) Process(n int, buf []byte, attr Attributes) (int, Attributes, error) {
	return f(n, buf, attr)
}

// RTCPWriter is used by Interceptor.BindRTCPWriter.
type RTCPWriter interface {
	// Write a batch of rtcp packets
	Write(pkts []rtcp.Packet, attributes Attributes) (int, error)
}

// RTCPWriterFunc is an adapter for RTCPWriter interface
type RTCPWriterFunc func(pkts []rtcp.Packet, attributes Attributes) (int, error)

// Write a batch of rtcp packets
func (f RTCPWriterFunc) Write(pkts []rtcp.Packet, attributes Attributes) (int, error) {
	return f(pkts, attributes)
}

// RTCPReader is used by Interceptor.BindRTCPReader.
type RTCPReader interface {
	// Read a batch of rtcp packets
	Read([]byte, Attributes) (int, Attributes, error)
}

// RTCPReaderFunc is an adapter for RTCPReader interface
type RTCPReaderFunc func([]byte, Attributes) (int, Attributes, error)

// Read a batch of rtcp packets
func (f RTCPReaderFunc) Read(b []byte, a Attributes) (int, Attributes, error) {
	return f(b, a)
}

// Interceptor can be used to add functionality to you PeerConnections by modifying any incoming/outgoing rtp/rtcp
// packets, or sending your own packets as needed.
type Interceptor interface {
	// BindRTCPReader lets you modify any incoming RTCP packets. It is called once per sender/receiver, however this
	// might change in the future. The returned method will be called once per packet batch.
	BindRTCPReader(reader RTCPReader) RTCPReader

	// BindRTCPWriter lets you modify any outgoing RTCP packets. It is called once per PeerConnection. The returned
	// method will be called once per packet batch.
	BindRTCPWriter(writer RTCPWriter) RTCPWriter

	// BindLocalStream lets you modify any outgoing RTP packets. It is called once for per LocalStream. The returned
	// method will be called once per rtp packet.
	BindLocalStream(info *StreamInfo, writer RTPWriter) RTPWriter

	// UnbindLocalStream is called when the Stream is removed, and can be used to clean up any data related to that
	// track.
	UnbindLocalStream(info *StreamInfo)

	// BindRemoteStream lets you modify any incoming RTP packets. It is called once for per RemoteStream. The returned
	// method will be called once per rtp packet.
	BindRemoteStream(info *StreamInfo, reader RTPProcessor) RTPProcessor

	// UnbindRemoteStream is called when the Stream is removed, and can be used to clean up any data related to that
	// track.
	UnbindRemoteStream(info *StreamInfo)

	// Close closes the Interceptor, cleaning up any data if necessary.
	Close() error
}

// NoOp is an Interceptor that does not modify any packets. It can be embedded in other Interceptors, so it is not
// necessary to implement all the methods.
type NoOp struct{}

// BindRTCPReader implements Interceptor.
func (i *NoOp) BindRTCPReader(reader RTCPReader) RTCPReader {
	return reader
}

// BindRTCPWriter implements Interceptor.
func (i *NoOp) BindRTCPWriter(writer RTCPWriter) RTCPWriter {
	return writer
}

// BindLocalStream implements Interceptor.
func (i *NoOp) BindLocalStream(_ *StreamInfo, writer RTPWriter) RTPWriter {
	return writer
}

// UnbindLocalStream implements Interceptor.
func (i *NoOp) UnbindLocalStream(_ *StreamInfo) {}

// BindRemoteStream implements Interceptor.
func (i *NoOp) BindRemoteStream(_ *StreamInfo, reader RTPProcessor) RTPProcessor {
	return reader
}

// UnbindRemoteStream implements Interceptor.
func (i *NoOp) UnbindRemoteStream(_ *StreamInfo) {}

// Close implements Interceptor.
func (i *NoOp) Close() error {
	return nil
}

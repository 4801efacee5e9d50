// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package interceptor

import "fmt"

// Chain is an interceptor that runs all child interceptors in order.
type Chain struct {
	interceptors []Interceptor
}

// NewChain returns a new Chain interceptor.
func NewChain(interceptors []Interceptor) *Chain {
	return &Chain{interceptors: interceptors}
}

// NewChainFromFactories returns a new Chain interceptor built from factories.
func NewChainFromFactories(factories []Factory, sessionID SessionID) (*Chain, error) {
	interceptors := make([]Interceptor, len(factories))

	for i, f := range factories {
		intcp, err := f.NewInterceptor(sessionID)
		if err != nil {
			return nil, fmt.Errorf("creating interceptor for sessionID: %s: %w", sessionID, err)
		}

		interceptors[i] = intcp
	}

	return NewChain(interceptors), nil
}

// BindRTCPReader implements Interceptor.
func (i *Chain) BindRTCPReader(reader RTCPReader) RTCPReader {
	for _, ic := range i.interceptors {
		reader = ic.BindRTCPReader(reader)
	}

	return reader
}

// BindRTCPWriter implements Interceptor.
func (i *Chain) BindRTCPWriter(writer RTCPWriter) RTCPWriter {
	for _, ic := range i.interceptors {
		writer = ic.BindRTCPWriter(writer)
	}

	return writer
}

// BindLocalStream implements Interceptor.
func (i *Chain) BindLocalStream(ctx *StreamInfo, writer RTPWriter) RTPWriter {
	for _, ic := range i.interceptors {
		writer = ic.BindLocalStream(ctx, writer)
	}

	return writer
}

// UnbindLocalStream implements Interceptor.
func (i *Chain) UnbindLocalStream(ctx *StreamInfo) {
	for _, ic := range i.interceptors {
		ic.UnbindLocalStream(ctx)
	}
}

// BindRemoteStream implements Interceptor.
func (i *Chain) BindRemoteStream(ctx *StreamInfo, reader RTPProcessor) RTPProcessor {
	for _, ic := range i.interceptors {
		reader = ic.BindRemoteStream(ctx, reader)
	}

	return reader
}

// UnbindRemoteStream implements Interceptor.
func (i *Chain) UnbindRemoteStream(ctx *StreamInfo) {
	for _, ic := range i.interceptors {
		ic.UnbindRemoteStream(ctx)
	}
}

// Close implements Interceptor.
func (i *Chain) Close() error {
	var errs []error
	for _, ic := range i.interceptors {
		errs = append(errs, ic.Close())
	}

	return flattenErrs(errs)
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"sync"
	"sync/atomic"
	"time"
)

// ccfPacingInterval and ccfPacingCount implement the rate limit a closing
// or draining connection applies to CONNECTION_CLOSE retransmission: send
// again after every 3rd received packet, or every 1 second, whichever
// comes first, per original_source/qconnection/src/termination.rs's
// should_send and spec.md SPEC_FULL §4.9a.
const (
	ccfPacingCount    = 3
	ccfPacingInterval = 1 * time.Second
)

// terminationState distinguishes Closing (actively retransmitting a CCF)
// from Draining (sending no further CCF).
type terminationState uint32

const (
	terminationClosing terminationState = iota
	terminationDraining
)

// terminator rate-limits CONNECTION_CLOSE retransmission for a connection
// that has begun closing, tracking the packets it has received since the
// last send so shouldSend can apply the pacing policy. It implements C10.
type terminator struct {
	mu         sync.Mutex
	state      terminationState
	rcvdSince  int
	lastSend   time.Time
	ccf        *ConnectionCloseFrame
	scid, dcid connID
	closing    *closingDataSpace

	terminated uint32 // atomic bool, set only by markTerminated
}

func newTerminator(ccf *ConnectionCloseFrame, scid, dcid connID, closing *closingDataSpace) *terminator {
	return &terminator{ccf: ccf, scid: scid, dcid: dcid, closing: closing, lastSend: time.Now()}
}

// shouldSend reports whether the pacing policy permits sending another CCF
// copy right now, per the "every 3rd received packet or every 1s" rule.
func (t *terminator) shouldSend() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != terminationClosing {
		return false
	}
	return t.rcvdSince >= ccfPacingCount || time.Since(t.lastSend) >= ccfPacingInterval
}

// onPacketReceived records that another packet arrived while closing,
// feeding shouldSend's pacing counter.
func (t *terminator) onPacketReceived() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rcvdSince++
}

// trySend assembles one CCF packet (not yet sealed) if shouldSend
// currently permits it, resetting the pacing counters.
func (t *terminator) trySend() (*assembledPacket, bool) {
	if !t.shouldSend() {
		return nil, false
	}
	t.mu.Lock()
	t.rcvdSince = 0
	t.lastSend = time.Now()
	closing := t.closing
	ccf := t.ccf
	dcid := t.dcid
	t.mu.Unlock()
	if closing == nil {
		return nil, false
	}
	return closing.tryAssembleCCF(dcid, ccf), true
}

// trySendWith is the callback-taking variant the original's
// Terminator::try_send_with offers, letting the caller choose which
// (scid, dcid, ccf) triple to assemble against a specific path's buffer.
func (t *terminator) trySendWith(assemble func(scid, dcid connID, ccf *ConnectionCloseFrame) ([]byte, bool)) bool {
	if !t.shouldSend() {
		return false
	}
	t.mu.Lock()
	t.rcvdSince = 0
	t.lastSend = time.Now()
	scid, dcid, ccf := t.scid, t.dcid, t.ccf
	t.mu.Unlock()
	_, ok := assemble(scid, dcid, ccf)
	return ok
}

// enterDraining transitions Closing->Draining: no more CCF packets are
// sent. It arms no timer for the draining period.
func (t *terminator) enterDraining() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = terminationDraining
}

func (t *terminator) isDraining() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == terminationDraining
}

// markTerminated records that termination is final. Nothing in this
// package calls it: neither entering Draining nor receiving the peer's CCF
// sets the flag.
func (t *terminator) markTerminated() { atomic.StoreUint32(&t.terminated, 1) }

func (t *terminator) isTerminated() bool { return atomic.LoadUint32(&t.terminated) != 0 }

// drainingPeriod is conventionally three times the current PTO, per
// RFC 9000 §10.2; this engine's PTO is fixed (congestion-control internals
// are out of scope) so the period is a constant here too.
const drainingPeriod = 3 * defaultPTO

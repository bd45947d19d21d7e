// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "sync/atomic"

// sendWaker is the composite waker a transmit loop suspends on: any source
// (new data, CC window opened, anti-amp credit restored, ACK due, PTO
// fired) wakes it by OR-ing its Signals bit into the pending set and
// notifying the channel.
type sendWaker struct {
	pending uint32 // atomic Signals
	ch      chan struct{}
}

func newSendWaker() *sendWaker {
	return &sendWaker{ch: make(chan struct{}, 1)}
}

// wake records that sig became available and notifies a blocked waiter, if
// any, without blocking itself.
func (w *sendWaker) wake(sig Signals) {
	if w == nil {
		return
	}
	atomic.OrUint32((*uint32)(&w.pending), uint32(sig))
	select {
	case w.ch <- struct{}{}:
	default:
	}
}

// take atomically reads and clears the accumulated signal set.
func (w *sendWaker) take() Signals {
	return Signals(atomic.SwapUint32((*uint32)(&w.pending), 0))
}

// C returns the channel a transmit loop selects on to wait for wake().
func (w *sendWaker) C() <-chan struct{} { return w.ch }

// handshakeStatus holds the shared atomic flags C11 and C9 consult: whether
// Handshake-epoch keys are installed, whether the handshake is confirmed,
// and the negotiated path MTU. It implements C7 alongside antiAmplifier.
type handshakeStatus struct {
	handshakeKeysPresent uint32 // atomic bool
	handshakeConfirmed   uint32 // atomic bool
	pmtu                 uint32 // atomic int, bytes
}

func newHandshakeStatus() *handshakeStatus {
	s := &handshakeStatus{}
	atomic.StoreUint32(&s.pmtu, defaultPMTU)
	return s
}

// defaultPMTU is the conservative default maximum UDP payload size absent
// path MTU discovery (out of scope; this engine only carries the value).
const defaultPMTU = 1200

func (s *handshakeStatus) setHandshakeKeysPresent(v bool) {
	atomic.StoreUint32(&s.handshakeKeysPresent, boolToUint32(v))
}

func (s *handshakeStatus) hasHandshakeKeys() bool {
	return atomic.LoadUint32(&s.handshakeKeysPresent) != 0
}

func (s *handshakeStatus) setHandshakeConfirmed() {
	atomic.StoreUint32(&s.handshakeConfirmed, 1)
}

func (s *handshakeStatus) isHandshakeConfirmed() bool {
	return atomic.LoadUint32(&s.handshakeConfirmed) != 0
}

func (s *handshakeStatus) setPMTU(v int) {
	atomic.StoreUint32(&s.pmtu, uint32(v))
}

func (s *handshakeStatus) PMTU() int {
	return int(atomic.LoadUint32(&s.pmtu))
}

func boolToUint32(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

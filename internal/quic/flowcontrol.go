// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "sync"

// flowController is a credit-based flow-control accountant, shared shape
// between the connection-level MAX_DATA/DATA_BLOCKED pair and each stream's
// MAX_STREAM_DATA/STREAM_DATA_BLOCKED pair (spec.md SPEC_FULL §4.12).
type flowController struct {
	mu          sync.Mutex
	sent        uint64 // bytes consumed against the send limit
	sendLimit   uint64 // MAX_DATA/MAX_STREAM_DATA last advertised by the peer
	blockedSent bool   // whether we've already sent *_BLOCKED for sendLimit

	received  uint64 // bytes received and credited
	recvLimit uint64 // limit we've advertised to the peer
	autotune  uint64 // window size used when raising recvLimit
}

func newFlowController(initialSend, initialRecvLimit uint64) *flowController {
	return &flowController{sendLimit: initialSend, recvLimit: initialRecvLimit, autotune: initialRecvLimit}
}

// canSend reports how many more bytes may be sent before hitting the peer's
// advertised limit.
func (f *flowController) canSend() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent >= f.sendLimit {
		return 0
	}
	return f.sendLimit - f.sent
}

// consume records n bytes sent against the send limit.
func (f *flowController) consume(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent += n
}

// isBlocked reports whether sending is currently limited by flow control,
// i.e. a DATA_BLOCKED/STREAM_DATA_BLOCKED frame should be considered.
func (f *flowController) isBlocked() bool { return f.canSend() == 0 }

// onMaxData raises the send limit, as carried by a MAX_DATA or
// MAX_STREAM_DATA frame. Limits never decrease (RFC 9000 §4.1).
func (f *flowController) onMaxData(limit uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > f.sendLimit {
		f.sendLimit = limit
		f.blockedSent = false
	}
}

// credit records n bytes received against the recv accounting; it is the
// caller's responsibility to ensure n came from recvBuf.recv's flow-delta,
// so double-counting of overlapping/duplicate bytes never happens.
func (f *flowController) credit(n uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received += n
	if f.received > f.recvLimit {
		return newQuicError(ErrorKindFlowControlError, frameTypeMaxData,
			"peer exceeded the advertised flow control limit")
	}
	return nil
}

// maybeRaiseLimit raises recvLimit by the initial receive window
// (autotune) once the peer has used at least half of it, returning the new limit and true when a MAX_DATA/MAX_STREAM_DATA
// frame should be sent.
func (f *flowController) maybeRaiseLimit() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.received < f.recvLimit/2 {
		return 0, false
	}
	f.recvLimit += f.autotune
	return f.recvLimit, true
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "time"

// Transport is the narrow slice of a congestion controller's API the core
// engine calls into: how much may be sent right now, and notification that
// a packet was sent. Congestion control internals are out of scope (spec.md
// §1); any implementation satisfying this interface — new Reno, CUBIC,
// BBR — plugs in per path.
type Transport interface {
	// SendLimit reports how many bytes may be sent right now, whether
	// sending is blocked, and when to try again.
	SendLimit(now time.Time) (bytes int, blocked bool, next time.Time)
	// PTO reports the PTO duration to apply to newly sent packets in space.
	PTO(space numberSpace) time.Duration
	// OnPacketSent records that sentBytes were sent in space at sentTime,
	// ack-eliciting and in-flight as given.
	OnPacketSent(space numberSpace, pn packetNumber, sentBytes int, ackEliciting, inFlight bool, sentTime time.Time)
	// OnAckReceived feeds a received ACK frame to congestion control.
	OnAckReceived(space numberSpace, ack *AckFrame, rcvTime time.Time)
}

// Feedback is implemented by each packet-number space so a congestion
// controller can report packets it has declared lost, letting the space
// requeue their frames. Mirrors original_source/qconnection's Feedback
// trait, implemented there by DataSpace.
type Feedback interface {
	MayLoss(space numberSpace, pns []packetNumber)
}

// noopTransport is a permissive stand-in used when a caller hasn't wired a
// real congestion controller (e.g. in unit tests exercising only the space
// assembly logic), always reporting the full PMTU available.
type noopTransport struct{ pmtu int }

func (t *noopTransport) SendLimit(now time.Time) (int, bool, time.Time) {
	if t.pmtu == 0 {
		return defaultPMTU, false, time.Time{}
	}
	return t.pmtu, false, time.Time{}
}
func (t *noopTransport) PTO(numberSpace) time.Duration { return defaultPTO }
func (t *noopTransport) OnPacketSent(numberSpace, packetNumber, int, bool, bool, time.Time) {}
func (t *noopTransport) OnAckReceived(numberSpace, *AckFrame, time.Time)                    {}

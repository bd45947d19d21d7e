// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"net"
	"time"
)

// pathway identifies a (local, remote) socket address pair a connection is
// communicating over; a connection may hold several concurrently during
// migration or multipath probing.
type pathway struct {
	local, remote net.Addr
}

// path is one (bindAddr, link, pathway) the connection is validating or
// actively using, owning its own congestion controller and anti-amp
// limiter per spec.md §3's Path entity.
type path struct {
	way      pathway
	cc       Transport
	antiAmp  *antiAmplifier // nil on the client; granted (not cleared) once validated
	spin     SpinBit
	waker    *sendWaker
	validated bool

	challengeOut *reliableOutbox // PATH_CHALLENGE frames pending send
	responseOut  *reliableOutbox // PATH_RESPONSE frames pending send

	lastRcvd time.Time
}

func newPath(way pathway, cc Transport, waker *sendWaker, serverSide bool) *path {
	p := &path{way: way, cc: cc, waker: waker, challengeOut: &reliableOutbox{}, responseOut: &reliableOutbox{}}
	if serverSide {
		p.antiAmp = newAntiAmplifier(defaultAntiAmplificationFactor, waker)
	} else {
		p.validated = true
	}
	return p
}

// onPacketReceived credits anti-amplification and records liveness on
// receipt of n bytes from this path's peer address.
func (p *path) onPacketReceived(n int) {
	p.lastRcvd = time.Now()
	if p.antiAmp != nil {
		p.antiAmp.onRcvd(n)
	}
}

// sendBudget returns how many bytes this path may send right now, folding
// together congestion control and anti-amplification. When it returns 0,
// maybeSend sends nothing at all on the path, ACK-only packets included.
func (p *path) sendBudget(now time.Time) (int, Signals, time.Time) {
	ccBudget, blocked, next := p.cc.SendLimit(now)
	if blocked {
		return 0, SignalCongestion, next
	}
	if p.antiAmp == nil {
		return ccBudget, 0, time.Time{}
	}
	credit, err := p.antiAmp.balance()
	if err != nil {
		if _, ok := asSignals(err); ok {
			return 0, SignalCredit, time.Time{}
		}
		return 0, SignalTransport, time.Time{}
	}
	if credit < ccBudget {
		return credit, 0, time.Time{}
	}
	return ccBudget, 0, time.Time{}
}

func (p *path) onSent(space numberSpace, pn packetNumber, n int, ackEliciting, inFlight bool) {
	p.cc.OnPacketSent(space, pn, n, ackEliciting, inFlight, time.Now())
	if p.antiAmp != nil {
		p.antiAmp.onSent(n)
	}
}

// challenge queues a PATH_CHALLENGE with fresh random data, used to probe a
// new or migrated path before trusting it.
func (p *path) challenge(data [8]byte) {
	p.challengeOut.push(&PathChallengeFrame{Data: data})
}

// onPathChallenge answers a peer's PATH_CHALLENGE by echoing its data back
// in a PATH_RESPONSE, per RFC 9000 §8.2.2.
func (p *path) onPathChallenge(f *PathChallengeFrame) {
	p.responseOut.push(&PathResponseFrame{Data: f.Data})
}

// onPathResponse marks the path validated and grants anti-amplification.
// Neither it nor its caller, Conn.handleFrame, compares the response data
// with any PATH_CHALLENGE sent: every PATH_RESPONSE validates the path.
func (p *path) onPathResponse() {
	p.validated = true
	if p.antiAmp != nil {
		p.antiAmp.grant()
	}
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "sync/atomic"

// handleFrame applies a decoded frame's effect to the connection, handling
// every connection-level (not space-owned) frame type itself before
// delegating whatever remains to the packet-number space that received it.
// This is the home for the frame types dataSpace.dispatchFrame and
// handshakeLikeSpace.dispatchFrame deliberately leave as no-ops, since
// CID registries, connection flow control, and the path set all live here
// on Conn rather than on either space.
func (c *Conn) handleFrame(space numberSpace, way pathway, f Frame) error {
	switch v := f.(type) {
	case *NewConnectionIDFrame:
		retired := c.remoteCIDs.onNewConnectionID(v)
		for _, rf := range retired {
			c.data.reliable.push(rf)
		}
		return nil
	case *RetireConnectionIDFrame:
		c.localCIDs.retire(v.Sequence)
		return nil
	case HandshakeDoneFrame:
		c.onHandshakeDone()
		return nil
	case *MaxDataFrame:
		c.connFlow.onMaxData(v.Max)
		return nil
	case *DataBlockedFrame:
		// Peer-reported send-side block; accepted and otherwise ignored.
		// Nothing in this package calls maybeRaiseLimit in response.
		return nil
	case *PathChallengeFrame:
		c.pathsMu.Lock()
		p, ok := c.paths[way]
		c.pathsMu.Unlock()
		if ok {
			p.onPathChallenge(v)
		}
		return nil
	case *PathResponseFrame:
		c.pathsMu.Lock()
		p, ok := c.paths[way]
		c.pathsMu.Unlock()
		if ok {
			p.onPathResponse()
		}
		return nil
	case *ConnectionCloseFrame:
		c.onPeerClose(v)
		return nil
	}

	switch space {
	case appDataSpace:
		err := c.data.dispatchFrame(f, func(ack *AckFrame) { _ = c.handleAck(space, ack) })
		switch f.(type) {
		case *CryptoFrame, *StreamFrame:
			c.metrics.setRecvBuffered("data", c.data.crypto.bufferedBytes()+c.data.streams.bufferedBytes())
		}
		return err
	case initialSpace:
		if ack, ok := f.(*AckFrame); ok {
			return c.handleAck(space, ack)
		}
		err := c.initial.dispatchFrame(f)
		if _, ok := f.(*CryptoFrame); ok {
			c.metrics.setRecvBuffered("initial", c.initial.crypto.bufferedBytes())
		}
		return err
	case handshakeSpace:
		if ack, ok := f.(*AckFrame); ok {
			return c.handleAck(space, ack)
		}
		err := c.handshake.dispatchFrame(f)
		if _, ok := f.(*CryptoFrame); ok {
			c.metrics.setRecvBuffered("handshake", c.handshake.crypto.bufferedBytes())
		}
		return err
	}
	return nil
}

// onPeerClose reacts to a peer-initiated CONNECTION_CLOSE by moving straight
// to Draining, per RFC 9000 §10.2: an endpoint that receives a CCF must not
// send its own and instead enters the draining period immediately.
func (c *Conn) onPeerClose(ccf *ConnectionCloseFrame) {
	if c.lifecycleState() == lifecycleInitializing || c.lifecycleState() == lifecycleRunning {
		c.log.WithField("app", ccf.App).Info("peer closed")
		closing := c.data.close()
		dcid, _ := c.remoteCIDs.latestDCID()
		t := newTerminator(ccf, c.localCIDs.initialSCIDValue(), dcid, closing)
		t.enterDraining()
		c.term.Store(t)
		atomic.CompareAndSwapUint32(&c.lifecycle, uint32(lifecycleInitializing), uint32(lifecycleDraining))
		atomic.CompareAndSwapUint32(&c.lifecycle, uint32(lifecycleRunning), uint32(lifecycleDraining))
	}
	c.events.emit(Event{Kind: EventClosed, CCF: ccf})
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

// OnDatagram processes one UDP datagram received on way: it peels off and
// decrypts each coalesced packet in turn (RFC 9000 §12.2), dispatches the
// resulting frames via handleFrame, and credits the receiving path's
// liveness and anti-amplification accounting. Decode errors on a later
// coalesced packet do not invalidate frames already accepted from earlier
// ones in the same datagram, per RFC 9000 §12.2's per-packet error handling.
func (c *Conn) OnDatagram(way pathway, raw []byte) {
	p := c.getOrCreatePath(way, &noopTransport{})
	p.onPacketReceived(len(raw))
	if v := c.term.Load(); v != nil {
		v.(*terminator).onPacketReceived()
	}

	buf := raw
	for len(buf) > 0 {
		if buf[0]&0x80 != 0 {
			n := c.receiveLongHeaderPacket(way, buf)
			if n <= 0 {
				return
			}
			buf = buf[n:]
		} else {
			c.receiveShortHeaderPacket(way, buf)
			return
		}
	}
}

// receiveLongHeaderPacket opens a single long header packet at the start of
// buf, returning how many bytes it occupied so the caller can continue
// unpacking a coalesced datagram, or 0 on an unrecoverable parse error.
func (c *Conn) receiveLongHeaderPacket(way pathway, buf []byte) int {
	prefix, err := parseLongHeaderPrefix(buf)
	if err != nil {
		return 0
	}
	if prefix.version != quicVersion1 {
		return len(buf)
	}

	switch prefix.typ {
	case packetTypeInitial:
		if !c.initial.readKeys.isSet() {
			return len(buf)
		}
		return c.openAndDispatch(way, initialSpace, buf, c.initial.readKeys, func(u uint64, l int) packetNumber {
			return c.initial.decodePN(u, l)
		})
	case packetTypeHandshake:
		if !c.handshake.readKeys.isSet() {
			return len(buf)
		}
		c.discardInitialKeys()
		return c.openAndDispatch(way, handshakeSpace, buf, c.handshake.readKeys, func(u uint64, l int) packetNumber {
			return c.handshake.decodePN(u, l)
		})
	case packetType0RTT:
		if !c.data.zeroRTT.isSet() {
			return len(buf)
		}
		return c.openAndDispatch(way, appDataSpace, buf, c.data.zeroRTT, func(u uint64, l int) packetNumber {
			return c.data.decodePN(u, l)
		})
	case packetTypeRetry:
		return len(buf)
	}
	return len(buf)
}

// openAndDispatch shares the long-header open-then-route logic across
// Initial/Handshake/0-RTT, since only the space and its keys differ.
func (c *Conn) openAndDispatch(way pathway, space numberSpace, buf []byte, keys epochKeys, decodePN func(uint64, int) packetNumber) int {
	typ, dcid, _, _, pn, payload, consumed, err := openLongHeaderPacket(buf, keys.hp, keys.pk, decodePN)
	if err != nil {
		return 0
	}
	_ = typ
	_ = dcid
	c.onPacketDecrypted(way, space, pn, payload)
	return consumed
}

// receiveShortHeaderPacket opens and dispatches a 1-RTT packet, which always
// runs to the end of its datagram.
func (c *Conn) receiveShortHeaderPacket(way pathway, buf []byte) {
	if !c.data.isOneRTTReady() {
		return
	}
	dcidLen := c.localCIDs.cidLen
	// Header protection is phase-invariant (RFC 9001 §5.4): use whichever
	// read slot is installed to get at the hp key, then re-derive the real
	// phase once the first byte is unmasked.
	probe := c.data.oneRTT.readFor(KeyPhaseZero)
	if probe == nil {
		probe = c.data.oneRTT.readFor(KeyPhaseBit(true))
	}
	if probe == nil {
		return
	}
	dcid, phase, truncated, pnLen, err := unprotectShortHeader(buf, dcidLen, probe.hp)
	if err != nil {
		return
	}
	_ = dcid
	keys := c.data.oneRTT.readFor(phase)
	if keys == nil {
		return
	}
	pn := c.data.decodePN(truncated, pnLen)
	payload, err := openShortHeaderPacket(buf, dcidLen, pnLen, pn, keys.pk)
	if err != nil {
		return
	}
	c.onPacketDecrypted(way, appDataSpace, pn, payload)
}

// onPacketDecrypted records pn as received, iterates the payload's frames,
// and routes each to handleFrame, tracking the summary handleFrame's callers
// need for ACK scheduling and loss detection.
func (c *Conn) onPacketDecrypted(way pathway, space numberSpace, pn packetNumber, payload []byte) {
	var contains packetContains
	var pt packetType
	switch space {
	case initialSpace:
		pt = packetTypeInitial
	case handshakeSpace:
		pt = packetTypeHandshake
	default:
		pt = packetType1RTT
	}

	r := newFrameReader(payload, pt)
	for !r.Done() {
		f, ft, err := r.Next()
		if err != nil {
			// An unknown tag or a malformed frame both end this packet's
			// parse early; frames already accepted above still stand.
			break
		}
		contains.include(ft)
		_ = c.handleFrame(space, way, f)
	}

	switch space {
	case initialSpace:
		c.initial.onPacketAccepted(pn, contains.ackEliciting)
	case handshakeSpace:
		c.handshake.onPacketAccepted(pn, contains.ackEliciting)
	case appDataSpace:
		c.data.onPacketAccepted(pn, contains.ackEliciting)
	}
	c.waker.wake(SignalTransport)
}

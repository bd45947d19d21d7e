// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"sync"
	"time"
)

// dataSpace owns the 0-RTT/1-RTT packet-number space: the application data
// and crypto handshake bytes exchanged once keys for either epoch exist,
// implementing C9. It is grounded on
// original_source/qconnection/src/space/data.rs's DataSpace, translated
// from its async mpsc-pipeline dispatch into direct method calls plus the
// channel-based sendWaker this engine already uses for C7/C6.
type dataSpace struct {
	zeroRTT    epochKeys
	oneRTT     oneRTTKeys
	oneRTTSet  bool
	crypto     *cryptoStream
	streams    *streamManager
	reliable   *reliableOutbox
	sent       *sentJournal[guaranteedFrame]
	rcvd       *recvJournal
	ackDelay   time.Duration

	mu sync.Mutex
}

func newDataSpace(ackDelay time.Duration, sendLimit, recvLimit uint64) *dataSpace {
	return &dataSpace{
		crypto:   newCryptoStream(),
		streams:  newStreamManager(sendLimit, recvLimit),
		reliable: &reliableOutbox{},
		sent:     newSentJournal[guaranteedFrame](),
		rcvd:     newRecvJournal(),
		ackDelay: ackDelay,
	}
}

// installZeroRTTKeys installs this endpoint's 0-RTT write (client) or read
// (server) key pair, as produced by the external TLS stack.
func (d *dataSpace) installZeroRTTKeys(hp HeaderProtectionKey, pk PacketKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.zeroRTT = epochKeys{hp: hp, pk: pk, installed: true}
}

// installOneRTTKeys installs the initial 1-RTT key pair in both directions,
// key phase zero.
func (d *dataSpace) installOneRTTKeys(readHP HeaderProtectionKey, readPK PacketKey, writeHP HeaderProtectionKey, writePK PacketKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.oneRTT.installRead(KeyPhaseZero, readHP, readPK)
	d.oneRTT.installWrite(KeyPhaseZero, writeHP, writePK)
	d.oneRTTSet = true
}

func (d *dataSpace) isOneRTTReady() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.oneRTTSet
}

// decodePN expands a truncated packet number against this space's received
// journal, per RFC 9000 Appendix A.3.
func (d *dataSpace) decodePN(truncated uint64, length int) packetNumber {
	return d.rcvd.decodePN(truncated, length)
}

// onPacketAccepted records pn as received for ACK-generation bookkeeping.
func (d *dataSpace) onPacketAccepted(pn packetNumber, ackEliciting bool) {
	d.rcvd.registerPN(pn, ackEliciting, time.Now(), d.ackDelay)
}

// dispatchFrame applies one decoded frame's effect to this space's state
// (the Go-idiom replacement for the original's per-frame-type mpsc fan-out
// into independent pipelines). It does not itself decide admissibility;
// the caller's frameReader already checked that against the packet type.
func (d *dataSpace) dispatchFrame(f Frame, onAck func(*AckFrame)) error {
	switch v := f.(type) {
	case *AckFrame:
		d.rcvd.onRcvdAck(v.Largest())
		if onAck != nil {
			onAck(v)
		}
	case *CryptoFrame:
		d.crypto.onCryptoFrame(v)
	case *StreamFrame:
		return d.streams.onStreamFrame(v)
	case *MaxStreamDataFrame:
		d.streams.onMaxStreamData(v)
	case *NewTokenFrame, *ResetStreamFrame, *StopSendingFrame,
		*MaxStreamsFrame, *StreamDataBlockedFrame, *StreamsBlockedFrame:
		// Stream-reset and streams-concurrency bookkeeping these frames
		// imply is not yet built (streams.go only models plain send/recv
		// streams); dispatchFrame still accepts them so admissible packets
		// decode cleanly rather than erroring.
		//
		// MAX_DATA, DATA_BLOCKED, NEW_CONNECTION_ID, RETIRE_CONNECTION_ID,
		// HANDSHAKE_DONE, PATH_CHALLENGE, and PATH_RESPONSE never reach
		// here: Conn.handleFrame (conn_recv.go) intercepts them before
		// calling dispatchFrame, since they affect connection-level state
		// (CID registries, connection flow control, the path set) this
		// space does not own.
	}
	return nil
}

// onAckedFrames replays a sent packet's recorded frames once the peer has
// acknowledged it, releasing retransmission state the way
// handleAckOrLoss does per sent-journal record in the teacher's
// conn_loss.go.
func (d *dataSpace) onAckedFrames(frames []guaranteedFrame) {
	for _, gf := range frames {
		if sf := gf.stream; sf != nil {
			// Acked stream bytes need no further action: the send buffer
			// already advanced past them when first loaded.
			_ = sf
		}
	}
}

// onLostFrames requeues a sent packet's recorded frames for retransmission.
func (d *dataSpace) onLostFrames(frames []guaranteedFrame) {
	for _, gf := range frames {
		switch {
		case gf.crypto != nil:
			d.crypto.outgoing.mayLossData(gf.crypto)
		case gf.stream != nil:
			d.streams.mayLossData(gf.stream)
		case gf.reliable != nil:
			d.reliable.push(gf.reliable)
		}
	}
}

// tryAssembleZeroRTT builds a 0-RTT packet, returning Signals when nothing
// can be assembled right now. It never runs once 1-RTT write keys exist
// (the handshake has moved past 0-RTT), mirroring the original's
// short-circuit in try_assemble_0rtt_packet.
func (d *dataSpace) tryAssembleZeroRTT(dcid, scid connID, budget int) (*assembledPacket, []guaranteedFrame, Signals) {
	d.mu.Lock()
	oneRTTReady := d.oneRTTSet
	keys := d.zeroRTT
	d.mu.Unlock()
	if oneRTTReady {
		return nil, nil, SignalEmpty
	}
	if !keys.isSet() {
		return nil, nil, SignalKeys
	}

	guard := d.sent.newPacket()
	pn := guard.pn()
	p := &assembledPacket{typ: packetType0RTT, pn: pn, largestAcked: d.sent.largestAcked, dcid: dcid, scid: scid}
	var recorded []guaranteedFrame
	var signals Signals

	used := 0
	if cf, ok := d.crypto.outgoing.tryLoad(budget - used); ok {
		p.frames = append(p.frames, cf)
		used += cf.EncodingSize()
		g := cryptoGuaranteed(cf)
		guard.recordFrame(g)
		recorded = append(recorded, g)
	}
	for !d.reliable.empty() && used < budget {
		fs := d.reliable.drainUpTo(budget - used)
		if len(fs) == 0 {
			break
		}
		for _, rf := range fs {
			p.frames = append(p.frames, rf)
			used += rf.EncodingSize()
			g := reliableGuaranteed(rf)
			guard.recordFrame(g)
			recorded = append(recorded, g)
		}
	}
	sfs, fresh := d.streams.tryLoadInto(budget - used)
	for _, sf := range sfs {
		p.frames = append(p.frames, sf)
		used += sf.EncodingSize()
		g := streamGuaranteed(sf)
		guard.recordFrame(g)
		recorded = append(recorded, g)
	}
	_ = fresh

	if len(p.frames) == 0 {
		guard.abandon()
		return nil, nil, SignalEmpty
	}
	guard.buildWithTime(defaultPTO, defaultLossExpire)
	return p, recorded, signals
}

// tryAssembleOneRTT builds a 1-RTT packet. It computes whether an ACK is
// due before acquiring the sent journal's newPacket guard: need_ack may
// lock the congestion controller, and the guard already holds the sent
// journal's mutex, so reversing the order risks the lock cycle documented
// in the original's try_assemble_1rtt_packet (cc -> sent_journal there,
// sent_journal -> cc here if this were computed after newPacket()).
func (d *dataSpace) tryAssembleOneRTT(dcid connID, spin SpinBit, needAck func() (packetNumber, time.Time, bool), budget int) (*assembledPacket, []guaranteedFrame, Signals) {
	d.mu.Lock()
	if !d.oneRTTSet {
		d.mu.Unlock()
		return nil, nil, SignalKeys
	}
	keyPhase := d.oneRTT.current
	d.mu.Unlock()

	largest, rcvdTime, acked := needAck()
	if !acked {
		largest, rcvdTime, acked = d.rcvd.triggerAckFrame(time.Now())
	}

	guard := d.sent.newPacket()
	pn := guard.pn()
	p := &assembledPacket{
		typ: packetType1RTT, pn: pn, largestAcked: d.sent.largestAcked,
		dcid: dcid, spin: spin, keyPhase: keyPhase,
	}
	var recorded []guaranteedFrame
	used := 0

	if acked {
		if af, ok := d.rcvd.genAckFrameUntil(rcvdTime, budget-used); ok {
			_ = largest
			p.frames = append(p.frames, af)
			used += af.EncodingSize()
			guard.recordTrivial()
		}
	}

	if cf, ok := d.crypto.outgoing.tryLoad(budget - used); ok {
		p.frames = append(p.frames, cf)
		used += cf.EncodingSize()
		g := cryptoGuaranteed(cf)
		guard.recordFrame(g)
		recorded = append(recorded, g)
	}
	for !d.reliable.empty() && used < budget {
		fs := d.reliable.drainUpTo(budget - used)
		if len(fs) == 0 {
			break
		}
		for _, rf := range fs {
			p.frames = append(p.frames, rf)
			used += rf.EncodingSize()
			g := reliableGuaranteed(rf)
			guard.recordFrame(g)
			recorded = append(recorded, g)
		}
	}
	sfs, _ := d.streams.tryLoadInto(budget - used)
	for _, sf := range sfs {
		p.frames = append(p.frames, sf)
		used += sf.EncodingSize()
		g := streamGuaranteed(sf)
		guard.recordFrame(g)
		recorded = append(recorded, g)
	}

	if len(p.frames) == 0 {
		guard.abandon()
		return nil, nil, SignalEmpty
	}
	guard.buildWithTime(defaultPTO, defaultLossExpire)
	return p, recorded, 0
}

// tryAssembleProbe builds a path-probing 1-RTT packet carrying only
// PATH_CHALLENGE/PATH_RESPONSE frames, so it stays admissible even while
// anti-amplification or congestion control would otherwise block normal
// data.
func (d *dataSpace) tryAssembleProbe(dcid connID, spin SpinBit, probeFrames []Frame) (*assembledPacket, []guaranteedFrame, Signals) {
	d.mu.Lock()
	if !d.oneRTTSet {
		d.mu.Unlock()
		return nil, nil, SignalKeys
	}
	keyPhase := d.oneRTT.current
	d.mu.Unlock()
	if len(probeFrames) == 0 {
		return nil, nil, SignalEmpty
	}

	guard := d.sent.newPacket()
	pn := guard.pn()
	p := &assembledPacket{
		typ: packetType1RTT, pn: pn, largestAcked: d.sent.largestAcked,
		dcid: dcid, spin: spin, keyPhase: keyPhase, frames: probeFrames,
	}
	var recorded []guaranteedFrame
	for _, f := range probeFrames {
		g := reliableGuaranteed(f)
		guard.recordFrame(g)
		recorded = append(recorded, g)
	}
	guard.buildWithTime(defaultPTO, defaultLossExpire)
	return p, recorded, 0
}

// tryAssemblePing builds a minimal 1-RTT packet carrying only a PING frame,
// used to force a PTO probe when nothing else is eligible to send.
func (d *dataSpace) tryAssemblePing(dcid connID, spin SpinBit) (*assembledPacket, Signals) {
	d.mu.Lock()
	if !d.oneRTTSet {
		d.mu.Unlock()
		return nil, SignalKeys
	}
	keyPhase := d.oneRTT.current
	d.mu.Unlock()

	guard := d.sent.newPacket()
	pn := guard.pn()
	guard.recordTrivial()
	guard.buildWithTime(defaultPTO, defaultLossExpire)
	return &assembledPacket{
		typ: packetType1RTT, pn: pn, largestAcked: d.sent.largestAcked,
		dcid: dcid, spin: spin, keyPhase: keyPhase, frames: []Frame{PingFrame{}},
	}, 0
}

const (
	defaultPTO        = 333 * time.Millisecond
	defaultLossExpire = 3 * time.Second
)

// closingDataSpace is the remnant of a dataSpace kept after close(): the
// 1-RTT read and write keys, key phase, receive journal, and the fixed
// packet number the CCF is sent on. Its only method is tryAssembleCCF; it
// has no receive path, so incoming 1-RTT packets are not decrypted through
// it.
type closingDataSpace struct {
	readHP, writeHP HeaderProtectionKey
	readPK, writePK PacketKey
	keyPhase        KeyPhaseBit
	ccfPN           packetNumber
	rcvd            *recvJournal
}

// close snapshots a dataSpace's current 1-RTT keys and reserves the packet
// number the CCF will be sent on, returning nil if 1-RTT keys were never
// installed (the connection never reached the data space).
func (d *dataSpace) close() *closingDataSpace {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.oneRTTSet {
		return nil
	}
	guard := d.sent.newPacket()
	pn := guard.pn()
	guard.abandon() // the CCF packet is built out-of-band by try_assemble_ccf
	return &closingDataSpace{
		readHP: d.oneRTT.read[kpIndex(d.oneRTT.current)].hp,
		readPK: d.oneRTT.read[kpIndex(d.oneRTT.current)].pk,
		writeHP: d.oneRTT.write.hp, writePK: d.oneRTT.write.pk,
		keyPhase: d.oneRTT.current,
		ccfPN:    pn,
		rcvd:     d.rcvd,
	}
}

// tryAssembleCCF builds the single 1-RTT packet a closing connection
// retransmits on its rate-limited schedule, carrying only the
// CONNECTION_CLOSE frame.
func (c *closingDataSpace) tryAssembleCCF(dcid connID, ccf *ConnectionCloseFrame) *assembledPacket {
	return &assembledPacket{
		typ: packetType1RTT, pn: c.ccfPN, largestAcked: c.ccfPN - 1,
		dcid: dcid, keyPhase: c.keyPhase, frames: []Frame{ccf},
	}
}

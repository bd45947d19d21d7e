// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "time"

// handshakeLikeSpace is the Initial or Handshake packet-number space: a
// CRYPTO stream plus sent/received journals, with none of the data space's
// application-stream or reliable-frame machinery (those frame types are not
// admissible in long-header Initial/Handshake packets per belongsTo).
type handshakeLikeSpace struct {
	typ       packetType
	readKeys  epochKeys // peer's write keys, for opening received packets
	writeKeys epochKeys // this endpoint's write keys, for sealing sent packets
	crypto    *cryptoStream
	sent      *sentJournal[guaranteedFrame]
	rcvd      *recvJournal
	ackDelay  time.Duration
}

func newHandshakeLikeSpace(typ packetType, ackDelay time.Duration) *handshakeLikeSpace {
	return &handshakeLikeSpace{
		typ:      typ,
		crypto:   newCryptoStream(),
		sent:     newSentJournal[guaranteedFrame](),
		rcvd:     newRecvJournal(),
		ackDelay: ackDelay,
	}
}

func (s *handshakeLikeSpace) installReadKeys(hp HeaderProtectionKey, pk PacketKey) {
	s.readKeys = epochKeys{hp: hp, pk: pk, installed: true}
}

func (s *handshakeLikeSpace) installWriteKeys(hp HeaderProtectionKey, pk PacketKey) {
	s.writeKeys = epochKeys{hp: hp, pk: pk, installed: true}
}

func (s *handshakeLikeSpace) decodePN(truncated uint64, length int) packetNumber {
	return s.rcvd.decodePN(truncated, length)
}

func (s *handshakeLikeSpace) onPacketAccepted(pn packetNumber, ackEliciting bool) {
	s.rcvd.registerPN(pn, ackEliciting, time.Now(), s.ackDelay)
}

func (s *handshakeLikeSpace) dispatchFrame(f Frame) error {
	switch v := f.(type) {
	case *AckFrame:
		s.rcvd.onRcvdAck(v.Largest())
	case *CryptoFrame:
		s.crypto.onCryptoFrame(v)
	}
	return nil
}

// tryAssemble builds a packet for this space if there's a CRYPTO frame, an
// ACK obligation, or (when forcePing) nothing else to make it ack-eliciting
// for a PTO probe.
func (s *handshakeLikeSpace) tryAssemble(dcid, scid connID, token []byte, budget int, forcePing bool) (*assembledPacket, []guaranteedFrame, Signals) {
	if !s.writeKeys.isSet() {
		return nil, nil, SignalKeys
	}
	guard := s.sent.newPacket()
	pn := guard.pn()
	p := &assembledPacket{typ: s.typ, pn: pn, largestAcked: s.sent.largestAcked, dcid: dcid, scid: scid, token: token}
	var recorded []guaranteedFrame
	used := 0

	if largest, rcvdTime, ok := s.rcvd.triggerAckFrame(time.Now()); ok {
		if af, ok := s.rcvd.genAckFrameUntil(rcvdTime, budget-used); ok {
			_ = largest
			p.frames = append(p.frames, af)
			used += af.EncodingSize()
			guard.recordTrivial()
		}
	}

	if cf, ok := s.crypto.outgoing.tryLoad(budget - used); ok {
		p.frames = append(p.frames, cf)
		g := cryptoGuaranteed(cf)
		guard.recordFrame(g)
		recorded = append(recorded, g)
	}

	if len(p.frames) == 0 && forcePing {
		p.frames = append(p.frames, PingFrame{})
		guard.recordTrivial()
	}

	if len(p.frames) == 0 {
		guard.abandon()
		return nil, nil, SignalEmpty
	}
	guard.buildWithTime(defaultPTO, defaultLossExpire)
	return p, recorded, 0
}

func (s *handshakeLikeSpace) onLostFrames(frames []guaranteedFrame) {
	for _, gf := range frames {
		if gf.crypto != nil {
			s.crypto.outgoing.mayLossData(gf.crypto)
		}
	}
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"errors"
	"fmt"
)

// errFrameNotAdmissible builds the PROTOCOL_VIOLATION QuicError reported
// when a decoded frame is not admissible in a specific packet type.
func errFrameNotAdmissible(t frameType, pt packetType) error {
	return newQuicError(ErrorKindProtocolViolation, t,
		fmt.Sprintf("frame type %s is not admissible in %s packets", t, pt))
}

// frameReader is a lazy sequence of (Frame, frameType) pairs decoded from a
// decrypted packet payload, implementing C8's parse half. Next checks
// every decoded frame's admissibility against the reader's packet type,
// whichever packet type that is.
type frameReader struct {
	buf []byte
	pt  packetType
}

func newFrameReader(payload []byte, pt packetType) *frameReader {
	return &frameReader{buf: payload, pt: pt}
}

// Done reports whether the reader has consumed the entire payload.
func (r *frameReader) Done() bool { return len(r.buf) == 0 }

// Remaining exposes the unconsumed bytes, starting immediately after an
// unknown frame's tag, so callers can attempt extension-frame parsing.
func (r *frameReader) Remaining() []byte { return r.buf }

// Advance skips n unconsumed bytes, e.g. after manually parsing an
// extension frame from Remaining().
func (r *frameReader) Advance(n int) { r.buf = r.buf[n:] }

// Next decodes the next frame. On success it returns the frame, its type,
// and advances past it, having already checked admissibility against the
// reader's packet type. On an unknown tag it returns errUnknownFrameType
// having consumed only the tag, leaving Remaining() positioned at the start
// of the (unparseable) body so the caller can skip it and call Advance.
func (r *frameReader) Next() (Frame, frameType, error) {
	if r.Done() {
		return nil, 0, errors.New("quic: frame reader exhausted")
	}
	tag, rest, ok := consumeVarInt(r.buf)
	if !ok {
		return nil, 0, fmt.Errorf("quic: truncated frame type")
	}
	ft, err := decodeFrameType(tag)
	if err != nil {
		r.buf = rest
		return nil, 0, err
	}

	var f Frame
	switch {
	case ft == frameTypePadding:
		f, rest = PaddingFrame{}, rest
	case ft == frameTypePing:
		f, rest = PingFrame{}, rest
	case ft == frameTypeAck || ft == frameTypeAckECN:
		var af *AckFrame
		af, rest, err = decodeAckFrame(ft, rest)
		f = af
	case ft == frameTypeResetStream:
		var rf *ResetStreamFrame
		rf, rest, err = decodeResetStreamFrame(rest)
		f = rf
	case ft == frameTypeStopSending:
		var sf *StopSendingFrame
		sf, rest, err = decodeStopSendingFrame(rest)
		f = sf
	case ft == frameTypeCrypto:
		var cf *CryptoFrame
		cf, rest, err = decodeCryptoFrame(rest)
		f = cf
	case ft == frameTypeNewToken:
		var nf *NewTokenFrame
		nf, rest, err = decodeNewTokenFrame(rest)
		f = nf
	case ft.isStream():
		var sf *StreamFrame
		sf, rest, err = decodeStreamFrame(ft, rest)
		f = sf
	case ft == frameTypeMaxData:
		var mf *MaxDataFrame
		mf, rest, err = decodeMaxDataFrame(rest)
		f = mf
	case ft == frameTypeMaxStreamData:
		var mf *MaxStreamDataFrame
		mf, rest, err = decodeMaxStreamDataFrame(rest)
		f = mf
	case ft == frameTypeMaxStreamsBidi || ft == frameTypeMaxStreamsUni:
		var mf *MaxStreamsFrame
		mf, rest, err = decodeMaxStreamsFrame(ft, rest)
		f = mf
	case ft == frameTypeDataBlocked:
		var df *DataBlockedFrame
		df, rest, err = decodeDataBlockedFrame(rest)
		f = df
	case ft == frameTypeStreamDataBlocked:
		var df *StreamDataBlockedFrame
		df, rest, err = decodeStreamDataBlockedFrame(rest)
		f = df
	case ft == frameTypeStreamsBlockedBidi || ft == frameTypeStreamsBlockedUni:
		var df *StreamsBlockedFrame
		df, rest, err = decodeStreamsBlockedFrame(ft, rest)
		f = df
	case ft == frameTypeNewConnectionID:
		var nf *NewConnectionIDFrame
		nf, rest, err = decodeNewConnectionIDFrame(rest)
		f = nf
	case ft == frameTypeRetireConnectionID:
		var rf *RetireConnectionIDFrame
		rf, rest, err = decodeRetireConnectionIDFrame(rest)
		f = rf
	case ft == frameTypePathChallenge:
		var pf *PathChallengeFrame
		pf, rest, err = decodePathChallengeFrame(rest)
		f = pf
	case ft == frameTypePathResponse:
		var pf *PathResponseFrame
		pf, rest, err = decodePathResponseFrame(rest)
		f = pf
	case ft == frameTypeConnectionClose || ft == frameTypeConnectionCloseApp:
		var cf *ConnectionCloseFrame
		cf, rest, err = decodeConnectionCloseFrame(ft, rest)
		f = cf
	case ft == frameTypeHandshakeDone:
		f, rest = HandshakeDoneFrame{}, rest
	case ft.isDatagram():
		var df *DatagramFrame
		df, rest, err = decodeDatagramFrame(ft, rest)
		f = df
	default:
		err = &errUnknownFrameType{tag: tag}
	}
	if err != nil {
		return nil, 0, err
	}
	r.buf = rest
	if !belongsTo(ft, r.pt) {
		return f, ft, errFrameNotAdmissible(ft, r.pt)
	}
	return f, ft, nil
}

// packetContains is the bitset summary C8 accumulates while dispatching the
// frames of a single packet: whether it was ack-eliciting, in-flight,
// probing, and/or flow-controlled.
type packetContains struct {
	ackEliciting   bool
	inFlight       bool
	probing        bool
	sawNonProbing  bool
	flowControlled bool
}

// include folds one more accepted frame's type into the summary.
func (c *packetContains) include(t frameType) {
	spec := specOf(t)
	if !spec.has(specNonAckEliciting) {
		c.ackEliciting = true
	}
	if !spec.has(specCongestionControlFree) {
		c.inFlight = true
	}
	if spec.has(specProbeNewPath) {
		c.probing = true
	} else {
		c.sawNonProbing = true
	}
	if spec.has(specFlowControlled) {
		c.flowControlled = true
	}
}

// isProbingOnly reports whether every frame folded in was ProbeNewPath —
// the packet qualifies as a probing packet per the GLOSSARY definition.
func (c *packetContains) isProbingOnly() bool {
	return c.probing && !c.sawNonProbing
}

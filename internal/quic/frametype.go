// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "fmt"

// frameType is a tagged enumeration over the frame kinds of RFC 9000 Table 3.
// The flag bits that the wire tag packs (ACK ECN-bit, STREAM OFF/LEN/FIN,
// MAX_STREAMS/STREAMS_BLOCKED direction, CONNECTION_CLOSE layer, DATAGRAM
// length-present) are captured directly in the tag value, matching the wire
// representation one-to-one.
type frameType uint64

const (
	frameTypePadding            frameType = 0x00
	frameTypePing               frameType = 0x01
	frameTypeAck                frameType = 0x02 // + 0x01 when ECN counts present
	frameTypeAckECN             frameType = 0x03
	frameTypeResetStream        frameType = 0x04
	frameTypeStopSending        frameType = 0x05
	frameTypeCrypto             frameType = 0x06
	frameTypeNewToken           frameType = 0x07
	frameTypeStreamBase         frameType = 0x08 // 0x08..0x0f, low 3 bits OFF/LEN/FIN
	frameTypeMaxData            frameType = 0x10
	frameTypeMaxStreamData      frameType = 0x11
	frameTypeMaxStreamsBidi     frameType = 0x12
	frameTypeMaxStreamsUni      frameType = 0x13
	frameTypeDataBlocked        frameType = 0x14
	frameTypeStreamDataBlocked  frameType = 0x15
	frameTypeStreamsBlockedBidi frameType = 0x16
	frameTypeStreamsBlockedUni  frameType = 0x17
	frameTypeNewConnectionID    frameType = 0x18
	frameTypeRetireConnectionID frameType = 0x19
	frameTypePathChallenge      frameType = 0x1a
	frameTypePathResponse       frameType = 0x1b
	frameTypeConnectionClose    frameType = 0x1c // transport layer
	frameTypeConnectionCloseApp frameType = 0x1d // application layer
	frameTypeHandshakeDone      frameType = 0x1e
	frameTypeDatagram           frameType = 0x30 // + 0x01 when length present
	frameTypeDatagramLen        frameType = 0x31
)

const (
	streamFlagFin = 0x01
	streamFlagLen = 0x02
	streamFlagOff = 0x04
)

// isStream reports whether t is one of the eight STREAM frame tags.
func (t frameType) isStream() bool {
	return t >= frameTypeStreamBase && t <= frameTypeStreamBase+7
}

// isDatagram reports whether t is one of the two DATAGRAM frame tags.
func (t frameType) isDatagram() bool {
	return t == frameTypeDatagram || t == frameTypeDatagramLen
}

func (t frameType) String() string {
	switch {
	case t.isStream():
		return fmt.Sprintf("Stream(off=%v,len=%v,fin=%v)",
			t&streamFlagOff != 0, t&streamFlagLen != 0, t&streamFlagFin != 0)
	case t.isDatagram():
		return fmt.Sprintf("Datagram(len=%v)", t == frameTypeDatagramLen)
	}
	if name, ok := frameTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%x)", uint64(t))
}

var frameTypeNames = map[frameType]string{
	frameTypePadding:            "Padding",
	frameTypePing:               "Ping",
	frameTypeAck:                "Ack",
	frameTypeAckECN:             "Ack(ecn)",
	frameTypeResetStream:        "ResetStream",
	frameTypeStopSending:        "StopSending",
	frameTypeCrypto:             "Crypto",
	frameTypeNewToken:           "NewToken",
	frameTypeMaxData:            "MaxData",
	frameTypeMaxStreamData:      "MaxStreamData",
	frameTypeMaxStreamsBidi:     "MaxStreams(bidi)",
	frameTypeMaxStreamsUni:      "MaxStreams(uni)",
	frameTypeDataBlocked:        "DataBlocked",
	frameTypeStreamDataBlocked:  "StreamDataBlocked",
	frameTypeStreamsBlockedBidi: "StreamsBlocked(bidi)",
	frameTypeStreamsBlockedUni:  "StreamsBlocked(uni)",
	frameTypeNewConnectionID:    "NewConnectionId",
	frameTypeRetireConnectionID: "RetireConnectionId",
	frameTypePathChallenge:      "PathChallenge",
	frameTypePathResponse:       "PathResponse",
	frameTypeConnectionClose:    "ConnectionClose(transport)",
	frameTypeConnectionCloseApp: "ConnectionClose(app)",
	frameTypeHandshakeDone:      "HandshakeDone",
}

// frameSpec is the four independent attribute bits RFC 9000 Table 3 assigns
// to each frame type.
type frameSpec uint8

const (
	specNonAckEliciting frameSpec = 1 << iota
	specCongestionControlFree
	specProbeNewPath
	specFlowControlled
)

func (s frameSpec) has(bit frameSpec) bool { return s&bit != 0 }

// specOf returns the static spec bitset for t. Unlisted frame types carry no
// special attributes.
func specOf(t frameType) frameSpec {
	switch {
	case t == frameTypePadding:
		return specNonAckEliciting | specProbeNewPath
	case t == frameTypeAck || t == frameTypeAckECN:
		return specNonAckEliciting | specCongestionControlFree
	case t.isStream():
		return specFlowControlled
	case t == frameTypeMaxData, t == frameTypeMaxStreamData,
		t == frameTypeDataBlocked, t == frameTypeStreamDataBlocked:
		return specFlowControlled
	case t == frameTypePathChallenge, t == frameTypePathResponse:
		return specProbeNewPath
	case t == frameTypeConnectionClose, t == frameTypeConnectionCloseApp:
		return specNonAckEliciting | specCongestionControlFree
	default:
		return 0
	}
}

// belongsTo implements the RFC 9000 Table 3 admissibility predicate: does
// frame type t appear legally in a packet of type pt?
//
// The reference implementation this engine is grounded on computes the
// ConnectionClose(app) rule as `(bit==0 && initial) || handshake`, which by
// operator precedence permits app-layer CCF in Handshake packets — this
// conflicts with RFC 9000 §12.5. This engine implements the corrected rule:
// app-CCF is 0-RTT/1-RTT only, transport-CCF is admissible everywhere.
func belongsTo(t frameType, pt packetType) bool {
	switch pt {
	case packetTypeInitial, packetTypeHandshake:
		switch {
		case t == frameTypePadding, t == frameTypePing:
			return true
		case t == frameTypeAck || t == frameTypeAckECN:
			return true
		case t == frameTypeCrypto:
			return true
		case t == frameTypeConnectionClose:
			return true
		default:
			return false
		}
	case packetType0RTT:
		switch t {
		case frameTypeAck, frameTypeAckECN, frameTypeCrypto,
			frameTypeNewToken, frameTypeHandshakeDone, frameTypePathResponse:
			return false
		default:
			return true
		}
	case packetType1RTT:
		return true
	default:
		return false
	}
}

// errUnknownFrameType is returned by the frame decoder for a tag that does
// not map to any known frame type, permitting callers to attempt
// extension-frame parsing and resume decoding afterward.
type errUnknownFrameType struct {
	tag VarInt
}

func (e *errUnknownFrameType) Error() string {
	return fmt.Sprintf("quic: invalid frame type 0x%x", uint64(e.tag))
}

// decodeFrameType maps a wire tag to its frameType, or returns
// errUnknownFrameType if the tag is not one of the 21 defined variants (or
// an out-of-range STREAM/DATAGRAM tag).
func decodeFrameType(tag VarInt) (frameType, error) {
	t := frameType(tag)
	switch {
	case t == frameTypePadding, t == frameTypePing,
		t == frameTypeAck, t == frameTypeAckECN,
		t == frameTypeResetStream, t == frameTypeStopSending,
		t == frameTypeCrypto, t == frameTypeNewToken,
		t.isStream(),
		t == frameTypeMaxData, t == frameTypeMaxStreamData,
		t == frameTypeMaxStreamsBidi, t == frameTypeMaxStreamsUni,
		t == frameTypeDataBlocked, t == frameTypeStreamDataBlocked,
		t == frameTypeStreamsBlockedBidi, t == frameTypeStreamsBlockedUni,
		t == frameTypeNewConnectionID, t == frameTypeRetireConnectionID,
		t == frameTypePathChallenge, t == frameTypePathResponse,
		t == frameTypeConnectionClose, t == frameTypeConnectionCloseApp,
		t == frameTypeHandshakeDone,
		t.isDatagram():
		return t, nil
	default:
		return 0, &errUnknownFrameType{tag: tag}
	}
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "fmt"

// streamDir distinguishes bidirectional from unidirectional streams, used by
// MAX_STREAMS and STREAMS_BLOCKED frames.
type streamDir byte

const (
	streamDirBidi streamDir = iota
	streamDirUni
)

// Frame is implemented by every one of the 21 QUIC frame variants. Rather
// than a sum type with an exhaustive match, frames are dispatched by a small
// capability set attached to each concrete type — see the design note in
// SPEC_FULL.md §9 on dynamic dispatch over frame codecs.
type Frame interface {
	// FrameType returns the tag this frame encodes as.
	FrameType() frameType
	// Spec returns the static RFC 9000 Table 3 attribute bitset for this
	// frame's type.
	Spec() frameSpec
	// MaxEncodingSize upper-bounds the serialized size, for budgeting a
	// packet before the exact layout is known.
	MaxEncodingSize() int
	// EncodingSize returns the exact number of bytes AppendTo will write.
	EncodingSize() int
	// AppendTo serializes the frame onto b and returns the result.
	AppendTo(b []byte) []byte
}

// -- PADDING --------------------------------------------------------------

type PaddingFrame struct{}

func (PaddingFrame) FrameType() frameType    { return frameTypePadding }
func (PaddingFrame) Spec() frameSpec         { return specOf(frameTypePadding) }
func (PaddingFrame) MaxEncodingSize() int    { return 1 }
func (PaddingFrame) EncodingSize() int       { return 1 }
func (PaddingFrame) AppendTo(b []byte) []byte { return append(b, 0x00) }

// -- PING -------------------------------------------------------------------

type PingFrame struct{}

func (PingFrame) FrameType() frameType    { return frameTypePing }
func (PingFrame) Spec() frameSpec         { return specOf(frameTypePing) }
func (PingFrame) MaxEncodingSize() int    { return 1 }
func (PingFrame) EncodingSize() int       { return 1 }
func (PingFrame) AppendTo(b []byte) []byte { return append(b, byte(frameTypePing)) }

// -- ACK ----------------------------------------------------------------

// AckRange is one contiguous run of acknowledged packet numbers,
// [Smallest, Largest].
type AckRange struct {
	Smallest, Largest packetNumber
}

// ECNCounts carries the optional ECN counters of an ACK frame.
type ECNCounts struct {
	ECT0, ECT1, ECNCE VarInt
}

// AckFrame acknowledges one or more ranges of packet numbers, newest first.
type AckFrame struct {
	Delay  VarInt
	Ranges []AckRange // sorted descending, non-overlapping, non-adjacent
	ECN    *ECNCounts
}

func (f *AckFrame) FrameType() frameType {
	if f.ECN != nil {
		return frameTypeAckECN
	}
	return frameTypeAck
}

func (f *AckFrame) Spec() frameSpec { return specOf(frameTypeAck) }

// Largest returns the largest acknowledged packet number in the frame.
func (f *AckFrame) Largest() packetNumber {
	if len(f.Ranges) == 0 {
		return -1
	}
	return f.Ranges[0].Largest
}

func (f *AckFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt*3 + maxEncodingSizeVarInt + len(f.Ranges)*maxEncodingSizeVarInt*2 + maxEncodingSizeVarInt*3
}

func (f *AckFrame) EncodingSize() int {
	n := sizeVarInt(VarInt(f.Largest()))
	n += sizeVarInt(f.Delay)
	n += sizeVarInt(VarInt(len(f.Ranges) - 1))
	n += sizeVarInt(VarInt(f.Ranges[0].Largest - f.Ranges[0].Smallest))
	for i := 1; i < len(f.Ranges); i++ {
		gap := f.Ranges[i-1].Smallest - f.Ranges[i].Largest - 2
		n += sizeVarInt(VarInt(gap))
		n += sizeVarInt(VarInt(f.Ranges[i].Largest - f.Ranges[i].Smallest))
	}
	if f.ECN != nil {
		n += sizeVarInt(f.ECN.ECT0) + sizeVarInt(f.ECN.ECT1) + sizeVarInt(f.ECN.ECNCE)
	}
	return n + 1
}

func (f *AckFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(f.FrameType()))
	b = appendVarInt(b, VarInt(f.Largest()))
	b = appendVarInt(b, f.Delay)
	b = appendVarInt(b, VarInt(len(f.Ranges)-1))
	b = appendVarInt(b, VarInt(f.Ranges[0].Largest-f.Ranges[0].Smallest))
	for i := 1; i < len(f.Ranges); i++ {
		gap := f.Ranges[i-1].Smallest - f.Ranges[i].Largest - 2
		b = appendVarInt(b, VarInt(gap))
		b = appendVarInt(b, VarInt(f.Ranges[i].Largest-f.Ranges[i].Smallest))
	}
	if f.ECN != nil {
		b = appendVarInt(b, f.ECN.ECT0)
		b = appendVarInt(b, f.ECN.ECT1)
		b = appendVarInt(b, f.ECN.ECNCE)
	}
	return b
}

func decodeAckFrame(tag frameType, b []byte) (*AckFrame, []byte, error) {
	largest, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated Ack frame: largest")
	}
	delay, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated Ack frame: delay")
	}
	rangeCount, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated Ack frame: range count")
	}
	firstRangeLen, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated Ack frame: first range")
	}
	if firstRangeLen > largest {
		return nil, nil, fmt.Errorf("quic: invalid Ack frame: first range too large")
	}
	f := &AckFrame{Delay: delay}
	cur := AckRange{Smallest: packetNumber(largest - firstRangeLen), Largest: packetNumber(largest)}
	f.Ranges = append(f.Ranges, cur)
	for i := VarInt(0); i < rangeCount; i++ {
		var gap, rlen VarInt
		gap, b, ok = consumeVarInt(b)
		if !ok {
			return nil, nil, fmt.Errorf("quic: truncated Ack frame: gap")
		}
		rlen, b, ok = consumeVarInt(b)
		if !ok {
			return nil, nil, fmt.Errorf("quic: truncated Ack frame: range")
		}
		newLargest := cur.Smallest - 2 - packetNumber(gap)
		if newLargest < 0 || packetNumber(rlen) > newLargest {
			return nil, nil, fmt.Errorf("quic: invalid Ack frame: range underflow")
		}
		cur = AckRange{Smallest: newLargest - packetNumber(rlen), Largest: newLargest}
		f.Ranges = append(f.Ranges, cur)
	}
	if tag == frameTypeAckECN {
		var ect0, ect1, ecnce VarInt
		ect0, b, ok = consumeVarInt(b)
		if !ok {
			return nil, nil, fmt.Errorf("quic: truncated Ack frame: ect0")
		}
		ect1, b, ok = consumeVarInt(b)
		if !ok {
			return nil, nil, fmt.Errorf("quic: truncated Ack frame: ect1")
		}
		ecnce, b, ok = consumeVarInt(b)
		if !ok {
			return nil, nil, fmt.Errorf("quic: truncated Ack frame: ecn-ce")
		}
		f.ECN = &ECNCounts{ECT0: ect0, ECT1: ect1, ECNCE: ecnce}
	}
	return f, b, nil
}

// -- RESET_STREAM / STOP_SENDING ------------------------------------------

type ResetStreamFrame struct {
	StreamID  VarInt
	ErrorCode VarInt
	FinalSize VarInt
}

func (ResetStreamFrame) FrameType() frameType { return frameTypeResetStream }
func (ResetStreamFrame) Spec() frameSpec      { return specOf(frameTypeResetStream) }
func (f *ResetStreamFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt*3
}
func (f *ResetStreamFrame) EncodingSize() int {
	return 1 + sizeVarInt(f.StreamID) + sizeVarInt(f.ErrorCode) + sizeVarInt(f.FinalSize)
}
func (f *ResetStreamFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(frameTypeResetStream))
	b = appendVarInt(b, f.StreamID)
	b = appendVarInt(b, f.ErrorCode)
	return appendVarInt(b, f.FinalSize)
}

func decodeResetStreamFrame(b []byte) (*ResetStreamFrame, []byte, error) {
	f := &ResetStreamFrame{}
	var ok bool
	if f.StreamID, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated ResetStream frame")
	}
	if f.ErrorCode, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated ResetStream frame")
	}
	if f.FinalSize, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated ResetStream frame")
	}
	return f, b, nil
}

type StopSendingFrame struct {
	StreamID  VarInt
	ErrorCode VarInt
}

func (StopSendingFrame) FrameType() frameType { return frameTypeStopSending }
func (StopSendingFrame) Spec() frameSpec      { return specOf(frameTypeStopSending) }
func (f *StopSendingFrame) MaxEncodingSize() int { return 1 + maxEncodingSizeVarInt*2 }
func (f *StopSendingFrame) EncodingSize() int {
	return 1 + sizeVarInt(f.StreamID) + sizeVarInt(f.ErrorCode)
}
func (f *StopSendingFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(frameTypeStopSending))
	b = appendVarInt(b, f.StreamID)
	return appendVarInt(b, f.ErrorCode)
}

func decodeStopSendingFrame(b []byte) (*StopSendingFrame, []byte, error) {
	f := &StopSendingFrame{}
	var ok bool
	if f.StreamID, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated StopSending frame")
	}
	if f.ErrorCode, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated StopSending frame")
	}
	return f, b, nil
}

// -- CRYPTO / NEW_TOKEN -----------------------------------------------------

type CryptoFrame struct {
	Offset VarInt
	Data   []byte
}

func (CryptoFrame) FrameType() frameType { return frameTypeCrypto }
func (CryptoFrame) Spec() frameSpec      { return specOf(frameTypeCrypto) }
func (f *CryptoFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt*2 + len(f.Data)
}
func (f *CryptoFrame) EncodingSize() int {
	return 1 + sizeVarInt(f.Offset) + sizeVarInt(VarInt(len(f.Data))) + len(f.Data)
}
func (f *CryptoFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(frameTypeCrypto))
	b = appendVarInt(b, f.Offset)
	b = appendVarInt(b, VarInt(len(f.Data)))
	return append(b, f.Data...)
}

func decodeCryptoFrame(b []byte) (*CryptoFrame, []byte, error) {
	f := &CryptoFrame{}
	var ok bool
	var n VarInt
	if f.Offset, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated Crypto frame")
	}
	if n, b, ok = consumeVarInt(b); !ok || uint64(n) > uint64(len(b)) {
		return nil, nil, fmt.Errorf("quic: truncated Crypto frame")
	}
	f.Data = append([]byte(nil), b[:n]...)
	return f, b[n:], nil
}

type NewTokenFrame struct {
	Token []byte
}

func (NewTokenFrame) FrameType() frameType { return frameTypeNewToken }
func (NewTokenFrame) Spec() frameSpec      { return specOf(frameTypeNewToken) }
func (f *NewTokenFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt + len(f.Token)
}
func (f *NewTokenFrame) EncodingSize() int {
	return 1 + sizeVarInt(VarInt(len(f.Token))) + len(f.Token)
}
func (f *NewTokenFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(frameTypeNewToken))
	b = appendVarInt(b, VarInt(len(f.Token)))
	return append(b, f.Token...)
}

func decodeNewTokenFrame(b []byte) (*NewTokenFrame, []byte, error) {
	n, b, ok := consumeVarInt(b)
	if !ok || uint64(n) > uint64(len(b)) {
		return nil, nil, fmt.Errorf("quic: truncated NewToken frame")
	}
	return &NewTokenFrame{Token: append([]byte(nil), b[:n]...)}, b[n:], nil
}

// -- STREAM -----------------------------------------------------------------

const STREAM_FRAME_MAX_ENCODING_SIZE = 1 + maxEncodingSizeVarInt*3

type StreamFrame struct {
	StreamID VarInt
	Offset   VarInt
	Data     []byte
	Fin      bool
}

func (f *StreamFrame) FrameType() frameType {
	t := frameTypeStreamBase
	if f.Offset != 0 {
		t |= streamFlagOff
	}
	t |= streamFlagLen // this engine always encodes an explicit length
	if f.Fin {
		t |= streamFlagFin
	}
	return t
}
func (f *StreamFrame) Spec() frameSpec { return specOf(frameTypeStreamBase) }
func (f *StreamFrame) MaxEncodingSize() int {
	return STREAM_FRAME_MAX_ENCODING_SIZE + len(f.Data)
}
func (f *StreamFrame) EncodingSize() int {
	n := 1 + sizeVarInt(f.StreamID) + sizeVarInt(VarInt(len(f.Data)))
	if f.Offset != 0 {
		n += sizeVarInt(f.Offset)
	}
	return n + len(f.Data)
}
func (f *StreamFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(f.FrameType()))
	b = appendVarInt(b, f.StreamID)
	if f.Offset != 0 {
		b = appendVarInt(b, f.Offset)
	}
	b = appendVarInt(b, VarInt(len(f.Data)))
	return append(b, f.Data...)
}

func decodeStreamFrame(tag frameType, b []byte) (*StreamFrame, []byte, error) {
	f := &StreamFrame{Fin: tag&streamFlagFin != 0}
	var ok bool
	if f.StreamID, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated Stream frame: id")
	}
	if tag&streamFlagOff != 0 {
		if f.Offset, b, ok = consumeVarInt(b); !ok {
			return nil, nil, fmt.Errorf("quic: truncated Stream frame: offset")
		}
	}
	if tag&streamFlagLen != 0 {
		var n VarInt
		if n, b, ok = consumeVarInt(b); !ok || uint64(n) > uint64(len(b)) {
			return nil, nil, fmt.Errorf("quic: truncated Stream frame: length")
		}
		f.Data = append([]byte(nil), b[:n]...)
		b = b[n:]
	} else {
		// extends to the end of the packet
		f.Data = append([]byte(nil), b...)
		b = nil
	}
	return f, b, nil
}

// -- flow control: MAX_DATA / DATA_BLOCKED and per-stream variants ---------

type MaxDataFrame struct{ Max VarInt }

func (MaxDataFrame) FrameType() frameType       { return frameTypeMaxData }
func (MaxDataFrame) Spec() frameSpec            { return specOf(frameTypeMaxData) }
func (f *MaxDataFrame) MaxEncodingSize() int    { return 1 + maxEncodingSizeVarInt }
func (f *MaxDataFrame) EncodingSize() int       { return 1 + sizeVarInt(f.Max) }
func (f *MaxDataFrame) AppendTo(b []byte) []byte {
	return appendVarInt(append(b, byte(frameTypeMaxData)), f.Max)
}

func decodeMaxDataFrame(b []byte) (*MaxDataFrame, []byte, error) {
	v, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated MaxData frame")
	}
	return &MaxDataFrame{Max: v}, b, nil
}

type MaxStreamDataFrame struct {
	StreamID VarInt
	Max      VarInt
}

func (MaxStreamDataFrame) FrameType() frameType { return frameTypeMaxStreamData }
func (MaxStreamDataFrame) Spec() frameSpec      { return specOf(frameTypeMaxStreamData) }
func (f *MaxStreamDataFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt*2
}
func (f *MaxStreamDataFrame) EncodingSize() int {
	return 1 + sizeVarInt(f.StreamID) + sizeVarInt(f.Max)
}
func (f *MaxStreamDataFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(frameTypeMaxStreamData))
	b = appendVarInt(b, f.StreamID)
	return appendVarInt(b, f.Max)
}

func decodeMaxStreamDataFrame(b []byte) (*MaxStreamDataFrame, []byte, error) {
	f := &MaxStreamDataFrame{}
	var ok bool
	if f.StreamID, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated MaxStreamData frame")
	}
	if f.Max, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated MaxStreamData frame")
	}
	return f, b, nil
}

type MaxStreamsFrame struct {
	Dir streamDir
	Max VarInt
}

func (f *MaxStreamsFrame) FrameType() frameType {
	if f.Dir == streamDirUni {
		return frameTypeMaxStreamsUni
	}
	return frameTypeMaxStreamsBidi
}
func (MaxStreamsFrame) Spec() frameSpec         { return specOf(frameTypeMaxStreamsBidi) }
func (f *MaxStreamsFrame) MaxEncodingSize() int { return 1 + maxEncodingSizeVarInt }
func (f *MaxStreamsFrame) EncodingSize() int    { return 1 + sizeVarInt(f.Max) }
func (f *MaxStreamsFrame) AppendTo(b []byte) []byte {
	return appendVarInt(append(b, byte(f.FrameType())), f.Max)
}

func decodeMaxStreamsFrame(tag frameType, b []byte) (*MaxStreamsFrame, []byte, error) {
	v, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated MaxStreams frame")
	}
	dir := streamDirBidi
	if tag == frameTypeMaxStreamsUni {
		dir = streamDirUni
	}
	return &MaxStreamsFrame{Dir: dir, Max: v}, b, nil
}

type DataBlockedFrame struct{ Limit VarInt }

func (DataBlockedFrame) FrameType() frameType    { return frameTypeDataBlocked }
func (DataBlockedFrame) Spec() frameSpec         { return specOf(frameTypeDataBlocked) }
func (f *DataBlockedFrame) MaxEncodingSize() int { return 1 + maxEncodingSizeVarInt }
func (f *DataBlockedFrame) EncodingSize() int    { return 1 + sizeVarInt(f.Limit) }
func (f *DataBlockedFrame) AppendTo(b []byte) []byte {
	return appendVarInt(append(b, byte(frameTypeDataBlocked)), f.Limit)
}

func decodeDataBlockedFrame(b []byte) (*DataBlockedFrame, []byte, error) {
	v, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated DataBlocked frame")
	}
	return &DataBlockedFrame{Limit: v}, b, nil
}

type StreamDataBlockedFrame struct {
	StreamID VarInt
	Limit    VarInt
}

func (StreamDataBlockedFrame) FrameType() frameType { return frameTypeStreamDataBlocked }
func (StreamDataBlockedFrame) Spec() frameSpec      { return specOf(frameTypeStreamDataBlocked) }
func (f *StreamDataBlockedFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt*2
}
func (f *StreamDataBlockedFrame) EncodingSize() int {
	return 1 + sizeVarInt(f.StreamID) + sizeVarInt(f.Limit)
}
func (f *StreamDataBlockedFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(frameTypeStreamDataBlocked))
	b = appendVarInt(b, f.StreamID)
	return appendVarInt(b, f.Limit)
}

func decodeStreamDataBlockedFrame(b []byte) (*StreamDataBlockedFrame, []byte, error) {
	f := &StreamDataBlockedFrame{}
	var ok bool
	if f.StreamID, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated StreamDataBlocked frame")
	}
	if f.Limit, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated StreamDataBlocked frame")
	}
	return f, b, nil
}

type StreamsBlockedFrame struct {
	Dir   streamDir
	Limit VarInt
}

func (f *StreamsBlockedFrame) FrameType() frameType {
	if f.Dir == streamDirUni {
		return frameTypeStreamsBlockedUni
	}
	return frameTypeStreamsBlockedBidi
}
func (StreamsBlockedFrame) Spec() frameSpec         { return specOf(frameTypeStreamsBlockedBidi) }
func (f *StreamsBlockedFrame) MaxEncodingSize() int { return 1 + maxEncodingSizeVarInt }
func (f *StreamsBlockedFrame) EncodingSize() int    { return 1 + sizeVarInt(f.Limit) }
func (f *StreamsBlockedFrame) AppendTo(b []byte) []byte {
	return appendVarInt(append(b, byte(f.FrameType())), f.Limit)
}

func decodeStreamsBlockedFrame(tag frameType, b []byte) (*StreamsBlockedFrame, []byte, error) {
	v, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated StreamsBlocked frame")
	}
	dir := streamDirBidi
	if tag == frameTypeStreamsBlockedUni {
		dir = streamDirUni
	}
	return &StreamsBlockedFrame{Dir: dir, Limit: v}, b, nil
}

// -- connection ID management ------------------------------------------------

type NewConnectionIDFrame struct {
	Sequence      VarInt
	RetirePriorTo VarInt
	ConnID        []byte
	ResetToken    [16]byte
}

func (NewConnectionIDFrame) FrameType() frameType { return frameTypeNewConnectionID }
func (NewConnectionIDFrame) Spec() frameSpec      { return specOf(frameTypeNewConnectionID) }
func (f *NewConnectionIDFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt*2 + 1 + len(f.ConnID) + 16
}
func (f *NewConnectionIDFrame) EncodingSize() int {
	return 1 + sizeVarInt(f.Sequence) + sizeVarInt(f.RetirePriorTo) + 1 + len(f.ConnID) + 16
}
func (f *NewConnectionIDFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(frameTypeNewConnectionID))
	b = appendVarInt(b, f.Sequence)
	b = appendVarInt(b, f.RetirePriorTo)
	b = append(b, byte(len(f.ConnID)))
	b = append(b, f.ConnID...)
	return append(b, f.ResetToken[:]...)
}

func decodeNewConnectionIDFrame(b []byte) (*NewConnectionIDFrame, []byte, error) {
	f := &NewConnectionIDFrame{}
	var ok bool
	if f.Sequence, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated NewConnectionId frame")
	}
	if f.RetirePriorTo, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated NewConnectionId frame")
	}
	if len(b) < 1 {
		return nil, nil, fmt.Errorf("quic: truncated NewConnectionId frame")
	}
	n := int(b[0])
	b = b[1:]
	if len(b) < n+16 {
		return nil, nil, fmt.Errorf("quic: truncated NewConnectionId frame")
	}
	f.ConnID = append([]byte(nil), b[:n]...)
	b = b[n:]
	copy(f.ResetToken[:], b[:16])
	return f, b[16:], nil
}

type RetireConnectionIDFrame struct{ Sequence VarInt }

func (RetireConnectionIDFrame) FrameType() frameType { return frameTypeRetireConnectionID }
func (RetireConnectionIDFrame) Spec() frameSpec      { return specOf(frameTypeRetireConnectionID) }
func (f *RetireConnectionIDFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt
}
func (f *RetireConnectionIDFrame) EncodingSize() int { return 1 + sizeVarInt(f.Sequence) }
func (f *RetireConnectionIDFrame) AppendTo(b []byte) []byte {
	return appendVarInt(append(b, byte(frameTypeRetireConnectionID)), f.Sequence)
}

func decodeRetireConnectionIDFrame(b []byte) (*RetireConnectionIDFrame, []byte, error) {
	v, b, ok := consumeVarInt(b)
	if !ok {
		return nil, nil, fmt.Errorf("quic: truncated RetireConnectionId frame")
	}
	return &RetireConnectionIDFrame{Sequence: v}, b, nil
}

// -- path validation ----------------------------------------------------------

type PathChallengeFrame struct{ Data [8]byte }

func (PathChallengeFrame) FrameType() frameType    { return frameTypePathChallenge }
func (PathChallengeFrame) Spec() frameSpec         { return specOf(frameTypePathChallenge) }
func (PathChallengeFrame) MaxEncodingSize() int    { return 9 }
func (PathChallengeFrame) EncodingSize() int       { return 9 }
func (f *PathChallengeFrame) AppendTo(b []byte) []byte {
	return append(append(b, byte(frameTypePathChallenge)), f.Data[:]...)
}

func decodePathChallengeFrame(b []byte) (*PathChallengeFrame, []byte, error) {
	if len(b) < 8 {
		return nil, nil, fmt.Errorf("quic: truncated PathChallenge frame")
	}
	f := &PathChallengeFrame{}
	copy(f.Data[:], b[:8])
	return f, b[8:], nil
}

type PathResponseFrame struct{ Data [8]byte }

func (PathResponseFrame) FrameType() frameType    { return frameTypePathResponse }
func (PathResponseFrame) Spec() frameSpec         { return specOf(frameTypePathResponse) }
func (PathResponseFrame) MaxEncodingSize() int    { return 9 }
func (PathResponseFrame) EncodingSize() int       { return 9 }
func (f *PathResponseFrame) AppendTo(b []byte) []byte {
	return append(append(b, byte(frameTypePathResponse)), f.Data[:]...)
}

func decodePathResponseFrame(b []byte) (*PathResponseFrame, []byte, error) {
	if len(b) < 8 {
		return nil, nil, fmt.Errorf("quic: truncated PathResponse frame")
	}
	f := &PathResponseFrame{}
	copy(f.Data[:], b[:8])
	return f, b[8:], nil
}

// -- CONNECTION_CLOSE ---------------------------------------------------------

type ConnectionCloseFrame struct {
	App          bool // application (0x1d) vs transport (0x1c) layer
	ErrorCode    VarInt
	TriggerFrame VarInt // transport layer only
	Reason       string
}

func (f *ConnectionCloseFrame) FrameType() frameType {
	if f.App {
		return frameTypeConnectionCloseApp
	}
	return frameTypeConnectionClose
}
func (f *ConnectionCloseFrame) Spec() frameSpec { return specOf(frameTypeConnectionClose) }
func (f *ConnectionCloseFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt*3 + len(f.Reason)
}
func (f *ConnectionCloseFrame) EncodingSize() int {
	n := 1 + sizeVarInt(f.ErrorCode)
	if !f.App {
		n += sizeVarInt(f.TriggerFrame)
	}
	n += sizeVarInt(VarInt(len(f.Reason)))
	return n + len(f.Reason)
}
func (f *ConnectionCloseFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(f.FrameType()))
	b = appendVarInt(b, f.ErrorCode)
	if !f.App {
		b = appendVarInt(b, f.TriggerFrame)
	}
	b = appendVarInt(b, VarInt(len(f.Reason)))
	return append(b, f.Reason...)
}

func decodeConnectionCloseFrame(tag frameType, b []byte) (*ConnectionCloseFrame, []byte, error) {
	f := &ConnectionCloseFrame{App: tag == frameTypeConnectionCloseApp}
	var ok bool
	if f.ErrorCode, b, ok = consumeVarInt(b); !ok {
		return nil, nil, fmt.Errorf("quic: truncated ConnectionClose frame")
	}
	if !f.App {
		if f.TriggerFrame, b, ok = consumeVarInt(b); !ok {
			return nil, nil, fmt.Errorf("quic: truncated ConnectionClose frame")
		}
	}
	var n VarInt
	if n, b, ok = consumeVarInt(b); !ok || uint64(n) > uint64(len(b)) {
		return nil, nil, fmt.Errorf("quic: truncated ConnectionClose frame")
	}
	f.Reason = string(b[:n])
	return f, b[n:], nil
}

// -- HANDSHAKE_DONE -----------------------------------------------------------

type HandshakeDoneFrame struct{}

func (HandshakeDoneFrame) FrameType() frameType    { return frameTypeHandshakeDone }
func (HandshakeDoneFrame) Spec() frameSpec         { return specOf(frameTypeHandshakeDone) }
func (HandshakeDoneFrame) MaxEncodingSize() int    { return 1 }
func (HandshakeDoneFrame) EncodingSize() int       { return 1 }
func (HandshakeDoneFrame) AppendTo(b []byte) []byte { return append(b, byte(frameTypeHandshakeDone)) }

// -- DATAGRAM -----------------------------------------------------------------

type DatagramFrame struct{ Data []byte }

func (DatagramFrame) FrameType() frameType { return frameTypeDatagramLen }
func (DatagramFrame) Spec() frameSpec      { return specOf(frameTypeDatagram) }
func (f *DatagramFrame) MaxEncodingSize() int {
	return 1 + maxEncodingSizeVarInt + len(f.Data)
}
func (f *DatagramFrame) EncodingSize() int {
	return 1 + sizeVarInt(VarInt(len(f.Data))) + len(f.Data)
}
func (f *DatagramFrame) AppendTo(b []byte) []byte {
	b = append(b, byte(frameTypeDatagramLen))
	b = appendVarInt(b, VarInt(len(f.Data)))
	return append(b, f.Data...)
}

func decodeDatagramFrame(tag frameType, b []byte) (*DatagramFrame, []byte, error) {
	if tag == frameTypeDatagram {
		// extends to the end of the packet
		return &DatagramFrame{Data: append([]byte(nil), b...)}, nil, nil
	}
	n, b, ok := consumeVarInt(b)
	if !ok || uint64(n) > uint64(len(b)) {
		return nil, nil, fmt.Errorf("quic: truncated Datagram frame")
	}
	return &DatagramFrame{Data: append([]byte(nil), b[:n]...)}, b[n:], nil
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "testing"

func TestFrameReaderOverExtension(t *testing.T) {
	var buf []byte
	buf = append(buf, byte(frameTypePadding))
	buf = append(buf, byte(frameTypePadding))
	buf = appendVarInt(buf, 0xff) // unknown extension tag
	buf = appendVarInt(buf, 1)
	buf = appendVarInt(buf, 2)
	buf = appendVarInt(buf, 3)
	buf = append(buf, byte(frameTypePadding))
	buf = appendVarInt(buf, 0xff) // second extension
	buf = appendVarInt(buf, 0xfe)

	r := newFrameReader(buf, packetType1RTT)

	padCount := 0
	extCount := 0
	for !r.Done() {
		_, ft, err := r.Next()
		if err == nil {
			if ft != frameTypePadding {
				t.Fatalf("unexpected frame type %v with no error", ft)
			}
			padCount++
			continue
		}
		if _, ok := err.(*errUnknownFrameType); !ok {
			t.Fatalf("Next() error = %v (%T), want *errUnknownFrameType", err, err)
		}
		extCount++
		// Consume exactly one extension-body VarInt and resume, mirroring
		// a caller that knows how to parse this particular extension.
		body := r.Remaining()
		_, rest, ok := consumeVarInt(body)
		if !ok {
			t.Fatalf("extension body did not start with a valid varint")
		}
		r.Advance(len(body) - len(rest))
		if extCount == 1 {
			// The first extension's body is three varints; skip the other two.
			for i := 0; i < 2; i++ {
				body := r.Remaining()
				_, rest, ok := consumeVarInt(body)
				if !ok {
					t.Fatalf("extension body varint %d missing", i)
				}
				r.Advance(len(body) - len(rest))
			}
		}
	}

	if padCount != 3 {
		t.Errorf("padding count = %d, want 3", padCount)
	}
	if extCount != 2 {
		t.Errorf("extension count = %d, want 2", extCount)
	}
}

func TestFrameAdmissibility(t *testing.T) {
	cases := []struct {
		t    frameType
		pt   packetType
		want bool
	}{
		{frameTypeAck, packetTypeInitial, true},
		{frameTypeAck, packetTypeHandshake, true},
		{frameTypeAck, packetType1RTT, true},
		{frameTypeCrypto, packetTypeInitial, true},
		{frameTypeCrypto, packetTypeHandshake, true},
		{frameTypeCrypto, packetType1RTT, true},
		{frameTypeCrypto, packetType0RTT, false},

		{frameTypeStreamBase, packetType0RTT, true},
		{frameTypeStreamBase, packetType1RTT, true},
		{frameTypeStreamBase, packetTypeInitial, false},
		{frameTypeMaxData, packetType0RTT, true},
		{frameTypeMaxData, packetType1RTT, true},
		{frameTypeMaxData, packetTypeHandshake, false},
		{frameTypeDatagram, packetType0RTT, true},
		{frameTypeDatagram, packetType1RTT, true},
		{frameTypeDatagram, packetTypeInitial, false},

		{frameTypeHandshakeDone, packetType1RTT, true},
		{frameTypeHandshakeDone, packetType0RTT, false},
		{frameTypeHandshakeDone, packetTypeInitial, false},
		{frameTypeNewToken, packetType1RTT, true},
		{frameTypeNewToken, packetType0RTT, false},
		{frameTypePathResponse, packetType1RTT, true},
		{frameTypePathResponse, packetType0RTT, false},
	}
	for _, c := range cases {
		if got := belongsTo(c.t, c.pt); got != c.want {
			t.Errorf("belongsTo(%v, %v) = %v, want %v", c.t, c.pt, got, c.want)
		}
	}
}

func TestFrameReaderRejectsInadmissibleFrame(t *testing.T) {
	buf := appendVarInt(nil, VarInt(frameTypeHandshakeDone))
	r := newFrameReader(buf, packetTypeInitial)
	_, ft, err := r.Next()
	if err == nil {
		t.Fatalf("Next() accepted HANDSHAKE_DONE in an Initial packet")
	}
	qerr, ok := err.(*QuicError)
	if !ok {
		t.Fatalf("error type = %T, want *QuicError", err)
	}
	if qerr.Kind != ErrorKindProtocolViolation {
		t.Errorf("error kind = %v, want ProtocolViolation", qerr.Kind)
	}
	if ft != frameTypeHandshakeDone {
		t.Errorf("returned frame type = %v, want HandshakeDone", ft)
	}
}

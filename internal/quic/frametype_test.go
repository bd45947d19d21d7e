// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "testing"

// TestFrameTypeRoundTrip walks every wire codepoint decodeFrameType
// recognizes (the base tags plus the STREAM/DATAGRAM flag-bit variants) and
// checks VarInt -> frameType -> VarInt is the identity.
func TestFrameTypeRoundTrip(t *testing.T) {
	var defined int
	for tag := VarInt(0); tag <= 0x31; tag++ {
		ft, err := decodeFrameType(tag)
		if err != nil {
			continue
		}
		defined++
		if VarInt(ft) != tag {
			t.Errorf("decodeFrameType(0x%x) = %v (0x%x), round trip broken", tag, ft, uint64(ft))
		}
	}
	// 8 base tags (0x00-0x07) + 8 STREAM tags + 15 tags (0x10-0x1e) + 2
	// DATAGRAM tags = 33 defined codepoints.
	if want := 33; defined != want {
		t.Errorf("decodeFrameType recognized %d codepoints, want %d", defined, want)
	}
}

func TestFrameTypeUnknownTag(t *testing.T) {
	for _, tag := range []VarInt{0x1f, 0x20, 0x2f, 0x32, 0xff} {
		if _, err := decodeFrameType(tag); err == nil {
			t.Errorf("decodeFrameType(0x%x) succeeded, want errUnknownFrameType", tag)
		}
	}
}

func TestFrameTypeStreamAndDatagramPredicates(t *testing.T) {
	for off := frameType(0); off <= 7; off++ {
		ft := frameTypeStreamBase + off
		if !ft.isStream() {
			t.Errorf("%v.isStream() = false, want true", ft)
		}
	}
	if frameTypeCrypto.isStream() {
		t.Errorf("Crypto.isStream() = true, want false")
	}
	if !frameTypeDatagram.isDatagram() || !frameTypeDatagramLen.isDatagram() {
		t.Errorf("Datagram frame types did not report isDatagram()")
	}
	if frameTypePing.isDatagram() {
		t.Errorf("Ping.isDatagram() = true, want false")
	}
}

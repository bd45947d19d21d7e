// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "testing"

func TestVarIntRoundTrip(t *testing.T) {
	values := []VarInt{
		0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824,
		VarIntMax, VarIntMax - 1, 37, 15293, 494878333,
	}
	for _, v := range values {
		b := appendVarInt(nil, v)
		got, rest, ok := consumeVarInt(b)
		if !ok {
			t.Fatalf("consumeVarInt(%d) failed to parse its own encoding", v)
		}
		if len(rest) != 0 {
			t.Errorf("consumeVarInt(%d) left %d unconsumed bytes", v, len(rest))
		}
		if got != v {
			t.Errorf("decode(encode(%d)) = %d, want %d", v, got, v)
		}
	}
}

func TestVarIntSizes(t *testing.T) {
	cases := []struct {
		v    VarInt
		size int
	}{
		{0, 1}, {63, 1}, {64, 2}, {16383, 2}, {16384, 4},
		{1073741823, 4}, {1073741824, 8}, {VarIntMax, 8},
	}
	for _, c := range cases {
		if got := sizeVarInt(c.v); got != c.size {
			t.Errorf("sizeVarInt(%d) = %d, want %d", c.v, got, c.size)
		}
		if got := len(appendVarInt(nil, c.v)); got != c.size {
			t.Errorf("len(appendVarInt(%d)) = %d, want %d", c.v, got, c.size)
		}
	}
}

func TestVarIntOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("appendVarInt(VarIntMax+1) did not panic")
		}
	}()
	appendVarInt(nil, VarIntMax+1)
}

func TestConsumeVarIntTruncated(t *testing.T) {
	// A 2-byte-form prefix byte with no following byte must fail, not
	// panic or read out of bounds.
	if _, _, ok := consumeVarInt([]byte{0x40}); ok {
		t.Errorf("consumeVarInt of a truncated varint reported ok")
	}
	if _, _, ok := consumeVarInt(nil); ok {
		t.Errorf("consumeVarInt of an empty slice reported ok")
	}
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "fmt"

// VarInt is a non-negative integer no larger than 2^62-1, encoded per
// RFC 9000, Section 16.
type VarInt uint64

// VarIntMax is the largest value representable as a VarInt.
const VarIntMax = VarInt(1<<62 - 1)

// errInvalidVarInt is returned when a byte sequence does not hold a
// well-formed variable-length integer.
var errInvalidVarInt = fmt.Errorf("quic: invalid varint encoding")

// sizeVarInt returns the number of bytes needed to encode v.
func sizeVarInt(v VarInt) int {
	switch {
	case v <= 63:
		return 1
	case v <= 16383:
		return 2
	case v <= 1073741823:
		return 4
	default:
		return 8
	}
}

// appendVarInt appends the wire encoding of v to b and returns the result.
// It panics if v exceeds VarIntMax; callers are expected to validate bounds
// before encoding.
func appendVarInt(b []byte, v VarInt) []byte {
	if v > VarIntMax {
		panic("quic: varint out of range")
	}
	switch sizeVarInt(v) {
	case 1:
		return append(b, byte(v))
	case 2:
		return append(b, byte(v>>8)|0x40, byte(v))
	case 4:
		return append(b, byte(v>>24)|0x80, byte(v>>16), byte(v>>8), byte(v))
	default:
		return append(b, byte(v>>56)|0xc0, byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// consumeVarInt parses a VarInt from the front of b, returning the decoded
// value and the unconsumed remainder of b. ok is false if b does not begin
// with a well-formed varint.
func consumeVarInt(b []byte) (v VarInt, rest []byte, ok bool) {
	if len(b) < 1 {
		return 0, b, false
	}
	n := 1 << (b[0] >> 6)
	if len(b) < n {
		return 0, b, false
	}
	v = VarInt(b[0] & 0x3f)
	for i := 1; i < n; i++ {
		v = v<<8 | VarInt(b[i])
	}
	return v, b[n:], true
}

// maxEncodingSizeVarInt is the worst-case encoded size of any VarInt.
const maxEncodingSizeVarInt = 8

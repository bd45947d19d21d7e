// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

// Spin and key-phase are both single-bit flags carried in the short
// header's first byte; SpinBit and KeyPhaseBit below implement the same
// toggle shape independently since Go lacks const-generic newtypes.
const (
	spinBitMask     byte = 0x20
	keyPhaseBitMask byte = 0x04
)

// SpinBit is the latency-spin signal bit of a 1-RTT short header.
type SpinBit bool

const (
	SpinBitZero SpinBit = false
	SpinBitOne  SpinBit = true
)

// imply sets or clears the spin bit in place on byte.
func (s SpinBit) imply(b *byte) {
	if s {
		*b |= spinBitMask
	} else {
		*b &^= spinBitMask
	}
}

// spinBitFromByte decodes the spin bit out of a short header first byte.
func spinBitFromByte(b byte) SpinBit {
	return SpinBit(b&spinBitMask != 0)
}

func (s SpinBit) String() string {
	if s {
		return "One"
	}
	return "Zero"
}

// KeyPhaseBit identifies which 1-RTT key generation produced a packet. It
// increments (flips) on every key update and must match the AEAD key
// selected for decryption.
type KeyPhaseBit bool

const (
	KeyPhaseZero KeyPhaseBit = false
	KeyPhaseOne  KeyPhaseBit = true
)

func (k KeyPhaseBit) imply(b *byte) {
	if k {
		*b |= keyPhaseBitMask
	} else {
		*b &^= keyPhaseBitMask
	}
}

func keyPhaseBitFromByte(b byte) KeyPhaseBit {
	return KeyPhaseBit(b&keyPhaseBitMask != 0)
}

// next returns the phase following this one; key phase toggles on every
// key update.
func (k KeyPhaseBit) next() KeyPhaseBit { return !k }

func (k KeyPhaseBit) String() string {
	if k {
		return "One"
	}
	return "Zero"
}

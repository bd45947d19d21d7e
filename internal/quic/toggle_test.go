// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "testing"

func TestToggleBitMath(t *testing.T) {
	b := byte(0b11111111)
	SpinBitZero.imply(&b)
	if b != 0b11011111 {
		t.Errorf("SpinBitZero.imply(0b11111111) = %#08b, want 0b11011111", b)
	}

	b = 0
	SpinBitOne.imply(&b)
	if b != 0b00100000 {
		t.Errorf("SpinBitOne.imply(0) = %#08b, want 0b00100000", b)
	}

	if got := keyPhaseBitFromByte(0b00000100); got != KeyPhaseOne {
		t.Errorf("keyPhaseBitFromByte(0b00000100) = %v, want One", got)
	}
	if got := keyPhaseBitFromByte(0); got != KeyPhaseZero {
		t.Errorf("keyPhaseBitFromByte(0) = %v, want Zero", got)
	}
}

func TestToggleRoundTrip(t *testing.T) {
	for _, s := range []SpinBit{SpinBitZero, SpinBitOne} {
		b := byte(0)
		s.imply(&b)
		if got := spinBitFromByte(b); got != s {
			t.Errorf("spinBitFromByte(implied %v) = %v", s, got)
		}
	}
	for _, k := range []KeyPhaseBit{KeyPhaseZero, KeyPhaseOne} {
		b := byte(0)
		k.imply(&b)
		if got := keyPhaseBitFromByte(b); got != k {
			t.Errorf("keyPhaseBitFromByte(implied %v) = %v", k, got)
		}
	}
	if KeyPhaseZero.next() != KeyPhaseOne || KeyPhaseOne.next() != KeyPhaseZero {
		t.Errorf("KeyPhaseBit.next() does not toggle")
	}
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"math"
	"testing"
)

func TestAntiAmplificationCreditWalk(t *testing.T) {
	a := newAntiAmplifier(3, newSendWaker())

	if _, err := a.balance(); !wantsSignal(err, SignalCredit) {
		t.Fatalf("initial balance() err = %v, want SignalCredit", err)
	}

	a.onRcvd(1)
	credit, err := a.balance()
	if err != nil || credit != 3 {
		t.Fatalf("balance() after onRcvd(1) = (%d, %v), want (3, nil)", credit, err)
	}

	a.onSent(3)
	if _, err := a.balance(); !wantsSignal(err, SignalCredit) {
		t.Fatalf("balance() after exhausting credit err = %v, want SignalCredit", err)
	}

	a.grant()
	credit, err = a.balance()
	if err != nil || credit != math.MaxInt {
		t.Fatalf("balance() after grant() = (%d, %v), want (MaxInt, nil)", credit, err)
	}
	// Granted is terminal: balance keeps reporting MaxInt forever.
	credit, err = a.balance()
	if err != nil || credit != math.MaxInt {
		t.Fatalf("second balance() after grant() = (%d, %v), want (MaxInt, nil)", credit, err)
	}
}

func wantsSignal(err error, want Signals) bool {
	sig, ok := asSignals(err)
	return ok && sig == want
}

func TestAntiAmplificationAbort(t *testing.T) {
	a := newAntiAmplifier(3, newSendWaker())
	a.abort()
	if _, err := a.balance(); err != errAntiAmpAborted {
		t.Errorf("balance() after abort() = %v, want errAntiAmpAborted", err)
	}
	// abort is terminal and idempotent: a later grant must not override it.
	a.grant()
	if _, err := a.balance(); err != errAntiAmpAborted {
		t.Errorf("balance() after grant() following abort() = %v, want errAntiAmpAborted", err)
	}
}

func TestAntiAmplificationCumulativeBound(t *testing.T) {
	a := newAntiAmplifier(3, newSendWaker())
	var sent, rcvd int64
	a.onRcvd(10)
	rcvd += 10
	for i := 0; i < 5; i++ {
		credit, err := a.balance()
		if err != nil {
			break
		}
		n := credit
		if n > 5 {
			n = 5
		}
		a.onSent(n)
		sent += int64(n)
		if sent > 3*rcvd {
			t.Fatalf("cumulative sent %d exceeds N*rcvd = %d", sent, 3*rcvd)
		}
	}
}

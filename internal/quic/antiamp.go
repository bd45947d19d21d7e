// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"math"
	"sync/atomic"
)

// defaultAntiAmplificationFactor is the N in RFC 9000 §8.1: before a path is
// validated, an endpoint must not send more than N times the bytes it has
// received from that address.
const defaultAntiAmplificationFactor = 3

type antiAmpState uint32

const (
	antiAmpNormal antiAmpState = iota
	antiAmpGranted
	antiAmpAborted
)

// antiAmplifier is the server-side pre-validation send-credit limiter,
// implementing C6. Granted and Aborted are terminal states.
type antiAmplifier struct {
	factor int
	credit int64 // atomic
	state  uint32 // atomic antiAmpState
	waker  *sendWaker
}

func newAntiAmplifier(factor int, waker *sendWaker) *antiAmplifier {
	if factor <= 0 {
		factor = defaultAntiAmplificationFactor
	}
	return &antiAmplifier{factor: factor, waker: waker}
}

// onRcvd records that n bytes were received from the unvalidated address,
// adding factor*n credit while in the Normal state, and wakes any sender
// blocked on SignalCredit.
func (a *antiAmplifier) onRcvd(n int) {
	if antiAmpState(atomic.LoadUint32(&a.state)) != antiAmpNormal {
		return
	}
	atomic.AddInt64(&a.credit, int64(n*a.factor))
	a.waker.wake(SignalCredit)
}

// balance reports the bytes currently available to send: Some(MaxInt) once
// Granted, an error once Aborted, Some(credit) if credit > 0, or
// SignalCredit if the path is still Normal and out of credit.
func (a *antiAmplifier) balance() (int, error) {
	switch antiAmpState(atomic.LoadUint32(&a.state)) {
	case antiAmpGranted:
		return math.MaxInt, nil
	case antiAmpAborted:
		return 0, errAntiAmpAborted
	default:
		credit := atomic.LoadInt64(&a.credit)
		if credit <= 0 {
			return 0, errSignalCredit
		}
		return int(credit), nil
	}
}

var (
	errSignalCredit   = signalsErr(SignalCredit)
	errAntiAmpAborted = errorString("quic: path validation aborted")
)

type errorString string

func (e errorString) Error() string { return string(e) }

// signalsErr adapts a Signals value to the error interface so balance() can
// report it through a normal (int, error) return, per the contract in
// spec.md §4.6. Callers type-assert with asSignals to recover the bitset.
type signalsErr Signals

func (e signalsErr) Error() string { return "quic: send blocked: " + Signals(e).String() }

func asSignals(err error) (Signals, bool) {
	s, ok := err.(signalsErr)
	return Signals(s), ok
}

// onSent records n bytes sent against the limiter's credit while Normal.
func (a *antiAmplifier) onSent(n int) {
	if antiAmpState(atomic.LoadUint32(&a.state)) == antiAmpNormal {
		atomic.AddInt64(&a.credit, -int64(n))
	}
}

// grant transitions Normal->Granted exactly once; idempotent thereafter.
func (a *antiAmplifier) grant() {
	if atomic.CompareAndSwapUint32(&a.state, uint32(antiAmpNormal), uint32(antiAmpGranted)) {
		a.waker.wake(SignalCredit)
	}
}

// abort transitions Normal->Aborted exactly once; idempotent thereafter.
func (a *antiAmplifier) abort() {
	if atomic.CompareAndSwapUint32(&a.state, uint32(antiAmpNormal), uint32(antiAmpAborted)) {
		a.waker.wake(SignalCredit)
	}
}

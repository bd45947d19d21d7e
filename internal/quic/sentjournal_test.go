// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"testing"
	"time"
)

func TestSentJournalAckViolatesLargest(t *testing.T) {
	j := newSentJournal[guaranteedFrame]()

	g := j.newPacket()
	g.recordFrame(guaranteedFrame{})
	g.buildWithTime(time.Second, 3*time.Second)

	r := j.rotate()
	err := r.updateLargest(j.largestSent() + 2)
	r.done()

	if err == nil {
		t.Fatalf("updateLargest(largestSent+2) returned nil error, want ProtocolViolation")
	}
	qerr, ok := err.(*QuicError)
	if !ok {
		t.Fatalf("updateLargest error type = %T, want *QuicError", err)
	}
	if qerr.Kind != ErrorKindProtocolViolation {
		t.Errorf("updateLargest error kind = %v, want ProtocolViolation", qerr.Kind)
	}
	if qerr.FrameType != frameTypeAck {
		t.Errorf("updateLargest error frame type = %v, want Ack", qerr.FrameType)
	}
}

func TestSentJournalLargestAckedNeverExceedsLargestSent(t *testing.T) {
	j := newSentJournal[guaranteedFrame]()
	for i := 0; i < 3; i++ {
		g := j.newPacket()
		g.recordFrame(guaranteedFrame{})
		g.buildWithTime(time.Second, 3*time.Second)
	}

	r := j.rotate()
	if err := r.updateLargest(j.largestSent()); err != nil {
		t.Fatalf("updateLargest(largestSent) = %v, want nil", err)
	}
	r.done()

	if j.largestAcked > j.largestSent() {
		t.Fatalf("largestAcked %d exceeds largestSent %d", j.largestAcked, j.largestSent())
	}
}

func TestSentJournalPacketWithoutFramesDoesNotConsumePN(t *testing.T) {
	j := newSentJournal[guaranteedFrame]()

	g1 := j.newPacket()
	pn1 := g1.pn()
	g1.abandon()

	g2 := j.newPacket()
	pn2 := g2.pn()
	g2.abandon()

	if pn1 != pn2 {
		t.Fatalf("pn() after an empty, abandoned packet changed: %d != %d", pn1, pn2)
	}
	if len(j.records) != 0 {
		t.Fatalf("abandoned packet appended a record: %v", j.records)
	}

	// A packet that genuinely never records a frame and is not marked
	// trivial must likewise not consume a PN, even if sealed rather than
	// abandoned outright.
	g3 := j.newPacket()
	pn3 := g3.pn()
	g3.buildWithTime(time.Second, 3*time.Second)
	if pn3 != pn1 {
		t.Fatalf("pn() after a frameless sealed packet changed: %d != %d", pn3, pn1)
	}
	if len(j.records) != 0 {
		t.Fatalf("frameless, non-trivial packet appended a record: %v", j.records)
	}

	g4 := j.newPacket()
	g4.recordFrame(guaranteedFrame{})
	g4.buildWithTime(time.Second, 3*time.Second)
	if len(j.records) != 1 {
		t.Fatalf("packet with a recorded frame did not consume a PN: %v", j.records)
	}
}

func TestSentJournalOnPacketAcked(t *testing.T) {
	j := newSentJournal[guaranteedFrame]()
	g := j.newPacket()
	g.recordFrame(guaranteedFrame{})
	g.recordFrame(guaranteedFrame{})
	g.buildWithTime(time.Second, 3*time.Second)

	r := j.rotate()
	frames := r.onPacketAcked(0)
	r.done()

	if len(frames) != 2 {
		t.Fatalf("onPacketAcked returned %d frames, want 2", len(frames))
	}

	// Acking the same PN again must not return frames twice: beAcked is a
	// one-way Flighting/Retransmitted -> Acked transition.
	r2 := j.rotate()
	frames2 := r2.onPacketAcked(0)
	r2.done()
	if len(frames2) != 0 {
		t.Fatalf("re-acking an already-acked PN returned %d frames, want 0", len(frames2))
	}
}

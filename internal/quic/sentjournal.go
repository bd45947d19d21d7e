// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"sync"
	"time"
)

// sentPktStateKind tags which state a PN slot in the sent journal holds.
type sentPktStateKind uint8

const (
	pktSkipped sentPktStateKind = iota
	pktFlighting
	pktRetransmitted
	pktAcked
)

// sentPktState is the lifecycle state of one sent packet number: it walks
// (none) -> Flighting -> {Acked | Retransmitted -> (removed) | Acked}.
// Acked never transitions to Retransmitted.
type sentPktState struct {
	kind       sentPktStateKind
	nframes    int
	sentTime   time.Time
	retranTime time.Time
	expireTime time.Time
}

func (s *sentPktState) beAcked() int {
	switch s.kind {
	case pktFlighting, pktRetransmitted:
		n := s.nframes
		s.kind = pktAcked
		return n
	default:
		return 0
	}
}

func (s *sentPktState) mayLoss() int {
	switch s.kind {
	case pktFlighting:
		s.kind = pktRetransmitted
		return s.nframes
	case pktRetransmitted:
		return s.nframes
	case pktAcked:
		panic("quic: acked packet should not be lost")
	default:
		return 0
	}
}

// shouldRetransmitAfter transitions a Flighting record whose retransmission
// timer has expired to Retransmitted, and reports whether it did.
func (s *sentPktState) shouldRetransmitAfter(now time.Time) bool {
	if s.kind == pktFlighting && s.retranTime.Before(now) {
		s.kind = pktRetransmitted
		return true
	}
	return false
}

// shouldRemainAfter reports whether the record must still be retained:
// Flighting always, Retransmitted until its expireTime, never Acked or
// Skipped.
func (s *sentPktState) shouldRemainAfter(now time.Time) bool {
	switch s.kind {
	case pktFlighting:
		return true
	case pktRetransmitted:
		return s.expireTime.After(now)
	default:
		return false
	}
}

// sentJournal is the per-space record of sent packets and the frames each
// one carried, implementing C4. frames[i] belongs to whichever packet
// record consumed it; records and frames are both indexed from a logical
// base packet number so that garbage collection can drop a prefix.
type sentJournal[T any] struct {
	mu           sync.Mutex
	frames       []T // frames[0] is the first frame of records[0]
	records      []sentPktState
	recordsBase  packetNumber // PN of records[0]
	largestAcked packetNumber
}

func newSentJournal[T any]() *sentJournal[T] {
	return &sentJournal[T]{largestAcked: -1, recordsBase: 0}
}

func (j *sentJournal[T]) largestSent() packetNumber {
	return j.recordsBase + packetNumber(len(j.records)) - 1
}

// newPacket acquires the mutex and returns a guard exposing the next PN.
// The PN is consumed only if the caller records at least one frame, or
// calls recordTrivial, before the guard is sealed with buildWithTime.
func (j *sentJournal[T]) newPacket() *newPacketGuard[T] {
	j.mu.Lock()
	return &newPacketGuard[T]{j: j, originLen: len(j.frames)}
}

type newPacketGuard[T any] struct {
	j         *sentJournal[T]
	trivial   bool
	originLen int
	sealed    bool
}

// pn returns the packet number this guard will consume if sealed with
// frames recorded. Calling it repeatedly returns the same value.
func (g *newPacketGuard[T]) pn() packetNumber {
	return g.j.recordsBase + packetNumber(len(g.j.records))
}

// recordTrivial marks the packet as carrying only non-retransmittable
// frames (PADDING, PING, ACK): it still consumes a PN if nothing else is
// recorded, but the record needs no retransmission bookkeeping.
func (g *newPacketGuard[T]) recordTrivial() { g.trivial = true }

// recordFrame appends a frame to the packet under construction.
func (g *newPacketGuard[T]) recordFrame(f T) {
	g.j.frames = append(g.j.frames, f)
}

// nframes reports how many frames have been recorded on this guard so far.
func (g *newPacketGuard[T]) nframes() int {
	return len(g.j.frames) - g.originLen
}

// buildWithTime seals the record and releases the mutex. If no frames were
// recorded and the packet was not marked trivial, the packet number is not
// consumed at all: no state is pushed, and the next newPacket() call
// returns the same PN.
func (g *newPacketGuard[T]) buildWithTime(retranTimeout, expireTimeout time.Duration) {
	defer g.j.mu.Unlock()
	if g.sealed {
		return
	}
	g.sealed = true
	nframes := g.nframes()
	if nframes == 0 && !g.trivial {
		return
	}
	now := time.Now()
	var rec sentPktState
	if g.trivial && nframes == 0 {
		rec = sentPktState{kind: pktSkipped}
	} else {
		rec = sentPktState{
			kind:       pktFlighting,
			nframes:    nframes,
			sentTime:   now,
			retranTime: now.Add(retranTimeout),
			expireTime: now.Add(expireTimeout),
		}
	}
	g.j.records = append(g.j.records, rec)
}

// abandon releases the guard's lock without recording anything, as if the
// caller never called recordFrame/recordTrivial. Used when assembly aborts
// mid-build.
func (g *newPacketGuard[T]) abandon() {
	if g.sealed {
		return
	}
	g.sealed = true
	g.j.frames = g.j.frames[:g.originLen]
	g.j.mu.Unlock()
}

// rotate acquires the mutex and returns a guard for processing incoming ACK
// frames and loss timers.
func (j *sentJournal[T]) rotate() *sentRotateGuard[T] {
	j.mu.Lock()
	return &sentRotateGuard[T]{j: j}
}

type sentRotateGuard[T any] struct {
	j      *sentJournal[T]
	closed bool
}

// frameRangeFor returns the [start,end) slice indices into j.frames (local
// to the current, possibly-resized journal) that packet pn recorded.
func (j *sentJournal[T]) frameRangeFor(pn packetNumber) (start, end int, ok bool) {
	idx := int(pn - j.recordsBase)
	if idx < 0 || idx >= len(j.records) {
		return 0, 0, false
	}
	off := 0
	for i := 0; i < idx; i++ {
		off += j.records[i].nframes
	}
	return off, off + j.records[idx].nframes, true
}

// updateLargest processes the Largest Acknowledged field of an incoming ACK
// frame; it is an error for the peer to acknowledge a PN this side never
// sent.
func (g *sentRotateGuard[T]) updateLargest(largest packetNumber) error {
	if largest > g.j.largestSent() {
		return newQuicError(ErrorKindProtocolViolation, frameTypeAck,
			"ack frame largest pn is larger than the largest pn sent")
	}
	if largest > g.j.largestAcked {
		g.j.largestAcked = largest
	}
	return nil
}

// onPacketAcked transitions the record for pn to Acked and returns the
// frames it carried.
func (g *sentRotateGuard[T]) onPacketAcked(pn packetNumber) []T {
	start, end, ok := g.j.frameRangeFor(pn)
	if !ok {
		return nil
	}
	n := g.j.records[pn-g.j.recordsBase].beAcked()
	if n == 0 {
		return nil
	}
	out := make([]T, end-start)
	copy(out, g.j.frames[start:end])
	return out
}

// mayLossPacket transitions the record for pn from Flighting to
// Retransmitted (idempotent if already Retransmitted; a no-op, never
// touching state, if Acked) and returns the frames it carried.
func (g *sentRotateGuard[T]) mayLossPacket(pn packetNumber) []T {
	start, end, ok := g.j.frameRangeFor(pn)
	if !ok {
		return nil
	}
	idx := pn - g.j.recordsBase
	if g.j.records[idx].kind == pktAcked {
		return nil
	}
	n := g.j.records[idx].mayLoss()
	if n == 0 {
		return nil
	}
	out := make([]T, end-start)
	copy(out, g.j.frames[start:end])
	return out
}

// fastRetransmit scans PNs strictly less than largestAcked, transitioning
// any Flighting record whose retransmission timer has passed to
// Retransmitted, and returns the frames of every record it transitioned.
func (g *sentRotateGuard[T]) fastRetransmit() []T {
	now := time.Now()
	var out []T
	for idx := range g.j.records {
		pn := g.j.recordsBase + packetNumber(idx)
		if pn >= g.j.largestAcked {
			break
		}
		if g.j.records[idx].shouldRetransmitAfter(now) {
			start, end, _ := g.j.frameRangeFor(pn)
			out = append(out, g.j.frames[start:end]...)
		}
	}
	return out
}

// resize drops a prefix of records (and their frames) whose state no
// longer needs to be retained.
func (j *sentJournal[T]) resize() {
	now := time.Now()
	nrec, nframes := 0, 0
	for i := range j.records {
		if j.records[i].shouldRemainAfter(now) {
			break
		}
		nrec++
		nframes += j.records[i].nframes
	}
	if nrec > 0 {
		j.records = j.records[nrec:]
		j.recordsBase += packetNumber(nrec)
	}
	if nframes > 0 {
		j.frames = j.frames[nframes:]
	}
}

// done releases the rotate guard's mutex, running resize() on the way out
// exactly once.
func (g *sentRotateGuard[T]) done() {
	if g.closed {
		return
	}
	g.closed = true
	g.j.resize()
	g.j.mu.Unlock()
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"sort"
	"time"
)

// rcvdRange is one contiguous run of accepted packet numbers.
type rcvdRange struct {
	smallest, largest packetNumber
}

// recvJournal tracks the sparse set of accepted PNs in one space, bounded
// by the largest accepted, and the outstanding obligation to send an ACK.
// It implements C5.
type recvJournal struct {
	ranges          []rcvdRange // sorted ascending, disjoint, non-adjacent
	largestAccepted packetNumber
	largestTime     time.Time
	hasAny          bool

	ackElicitingSincePrevAck bool
	ackDeadline              time.Time
	hasAckDeadline           bool
}

func newRecvJournal() *recvJournal {
	return &recvJournal{largestAccepted: -1}
}

// decodePN expands a truncated packet number to the candidate nearest the
// largest accepted PN so far, per RFC 9000 Appendix A.3.
func (j *recvJournal) decodePN(truncated uint64, length int) packetNumber {
	return decodePacketNumber(j.largestAccepted, truncated, length)
}

// contains reports whether pn has already been accepted (used for dedup).
func (j *recvJournal) contains(pn packetNumber) bool {
	i := sort.Search(len(j.ranges), func(i int) bool { return j.ranges[i].largest >= pn })
	return i < len(j.ranges) && j.ranges[i].smallest <= pn
}

// registerPN inserts pn into the accepted set and, when ackEliciting,
// schedules an ACK obligation at now+ackDelay unless one is already
// outstanding and earlier.
func (j *recvJournal) registerPN(pn packetNumber, ackEliciting bool, now time.Time, ackDelay time.Duration) {
	if pn > j.largestAccepted || !j.hasAny {
		j.largestAccepted = pn
		j.largestTime = now
		j.hasAny = true
	}
	j.insert(pn)
	if ackEliciting {
		j.ackElicitingSincePrevAck = true
		due := now.Add(ackDelay)
		if !j.hasAckDeadline || due.Before(j.ackDeadline) {
			j.ackDeadline = due
			j.hasAckDeadline = true
		}
	}
}

func (j *recvJournal) insert(pn packetNumber) {
	i := sort.Search(len(j.ranges), func(i int) bool { return j.ranges[i].largest >= pn-1 })
	switch {
	case i < len(j.ranges) && j.ranges[i].smallest <= pn && pn <= j.ranges[i].largest:
		return // already present
	case i < len(j.ranges) && j.ranges[i].smallest-1 == pn:
		j.ranges[i].smallest = pn
		j.mergeLeft(i)
	case i < len(j.ranges) && j.ranges[i].largest+1 == pn:
		j.ranges[i].largest = pn
		j.mergeRight(i)
	default:
		j.ranges = append(j.ranges, rcvdRange{})
		copy(j.ranges[i+1:], j.ranges[i:])
		j.ranges[i] = rcvdRange{smallest: pn, largest: pn}
	}
}

func (j *recvJournal) mergeLeft(i int) {
	if i > 0 && j.ranges[i-1].largest+1 == j.ranges[i].smallest {
		j.ranges[i-1].largest = j.ranges[i].largest
		j.ranges = append(j.ranges[:i], j.ranges[i+1:]...)
	}
}

func (j *recvJournal) mergeRight(i int) {
	if i+1 < len(j.ranges) && j.ranges[i].largest+1 == j.ranges[i+1].smallest {
		j.ranges[i].largest = j.ranges[i+1].largest
		j.ranges = append(j.ranges[:i+1], j.ranges[i+2:]...)
	}
}

// genAckFrameUntil emits an ACK frame covering as many ranges as fit within
// budgetBytes, newest ranges first. It returns (nil, false) when not even
// the smallest possible ACK frame fits (NoMemory).
func (j *recvJournal) genAckFrameUntil(now time.Time, budgetBytes int) (*AckFrame, bool) {
	if len(j.ranges) == 0 {
		return nil, false
	}
	delay := now.Sub(j.largestTime)
	if delay < 0 {
		delay = 0
	}
	f := &AckFrame{Delay: unscaledAckDelay(delay)}
	for i := len(j.ranges) - 1; i >= 0; i-- {
		candidate := append(append([]AckRange(nil), f.Ranges...), AckRange{
			Smallest: j.ranges[i].smallest,
			Largest:  j.ranges[i].largest,
		})
		trial := &AckFrame{Delay: f.Delay, Ranges: candidate}
		if trial.EncodingSize() > budgetBytes {
			break
		}
		f.Ranges = candidate
	}
	if len(f.Ranges) == 0 {
		return nil, false
	}
	return f, true
}

// unscaledAckDelayExponent is the default ACK delay exponent (RFC 9000
// §18.2 transport parameter default).
const unscaledAckDelayExponent = 3

func unscaledAckDelay(d time.Duration) VarInt {
	return VarInt(d.Microseconds() >> unscaledAckDelayExponent)
}

// triggerAckFrame returns (largest, rcvdTime, true) when an ACK is due, or
// (_, _, false) otherwise.
func (j *recvJournal) triggerAckFrame(now time.Time) (packetNumber, time.Time, bool) {
	if !j.hasAckDeadline || now.Before(j.ackDeadline) {
		return 0, time.Time{}, false
	}
	return j.largestAccepted, j.largestTime, true
}

// sentAck clears the pending ACK obligation after an ACK frame carrying it
// has actually been sent.
func (j *recvJournal) sentAck() {
	j.hasAckDeadline = false
	j.ackElicitingSincePrevAck = false
}

// onRcvdAck purges any pending ACK obligation once the peer has acknowledged
// a packet of ours: that acknowledgement proves the peer already holds an
// up-to-date ACK from us, so there's nothing left to chase.
func (j *recvJournal) onRcvdAck(peerLargestAcked packetNumber) {
	if peerLargestAcked >= 0 {
		j.sentAck()
	}
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

// handleAck processes a received ACK frame against one space's sent
// journal, releasing acked frames and feeding fast-retransmit candidates
// back to the space that owns them. This is the direct descendant of the
// teacher's handleAckOrLoss in conn_loss.go, generalized from its single
// ACK-frame case to the full onPacketAcked/mayLossPacket/fastRetransmit
// surface the generic sentJournal now exposes.
func (c *Conn) handleAck(space numberSpace, ack *AckFrame) error {
	sj := c.sentJournalFor(space)
	if sj == nil {
		return nil
	}
	guard := sj.rotate()
	defer guard.done()

	if err := guard.updateLargest(ack.Largest()); err != nil {
		return err
	}
	var ackedFrames []guaranteedFrame
	for _, r := range ack.Ranges {
		for pn := r.Smallest; pn <= r.Largest; pn++ {
			ackedFrames = append(ackedFrames, guard.onPacketAcked(pn)...)
			c.metrics.recordAcked(space)
		}
	}
	lost := guard.fastRetransmit()
	for range lost {
		c.metrics.recordLost(space)
	}

	switch space {
	case appDataSpace:
		c.data.onAckedFrames(ackedFrames)
		c.data.onLostFrames(lost)
	case initialSpace:
		c.initial.onLostFrames(lost)
	case handshakeSpace:
		c.handshake.onLostFrames(lost)
	}
	return nil
}

func (c *Conn) sentJournalFor(space numberSpace) *sentJournal[guaranteedFrame] {
	switch space {
	case initialSpace:
		return c.initial.sent
	case handshakeSpace:
		return c.handshake.sent
	case appDataSpace:
		return c.data.sent
	default:
		return nil
	}
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"net"
	"time"
)

// Send builds the next datagram to transmit from local to remote, if any is
// ready, wrapping maybeSend behind the net.Addr pair a caller's socket loop
// already has on hand instead of the internal pathway type.
func (c *Conn) Send(now time.Time, local, remote net.Addr) (datagram []byte, next time.Time, signals Signals) {
	return c.maybeSend(now, pathway{local: local, remote: remote})
}

// Deliver hands one received UDP datagram to the connection.
func (c *Conn) Deliver(local, remote net.Addr, raw []byte) {
	c.OnDatagram(pathway{local: local, remote: remote}, raw)
}

// WakeChan returns the channel a socket loop should select on between Send
// attempts: it fires when anti-amplification credit is added or restored
// and after each received packet has been processed.
func (c *Conn) WakeChan() <-chan struct{} {
	return c.waker.C()
}

// CloseApplication begins a locally-originated application close with code
// and reason, legal once 1-RTT keys are installed.
func (c *Conn) CloseApplication(code uint64, reason string) {
	c.Close(errorFromApp(&AppError{ErrorCode: VarInt(code), Reason: reason}))
}

// IsTerminal reports whether the connection has entered Draining or
// Terminated and no further application use is possible.
func (c *Conn) IsTerminal() bool {
	return c.isTerminal()
}

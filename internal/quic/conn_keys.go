// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

// InstallInitialKeys installs the Initial-epoch key pair derived from the
// destination connection ID (RFC 9001 §5.2); read is the peer's direction,
// write this endpoint's own.
func (c *Conn) InstallInitialKeys(readHP HeaderProtectionKey, readPK PacketKey, writeHP HeaderProtectionKey, writePK PacketKey) {
	c.initial.installReadKeys(readHP, readPK)
	c.initial.installWriteKeys(writeHP, writePK)
}

// InstallHandshakeKeys installs the Handshake-epoch key pair once the TLS
// stack derives them, and marks handshakeStatus accordingly so 1-RTT probing
// and Initial-state discard logic can observe the transition.
func (c *Conn) InstallHandshakeKeys(readHP HeaderProtectionKey, readPK PacketKey, writeHP HeaderProtectionKey, writePK PacketKey) {
	c.handshake.installReadKeys(readHP, readPK)
	c.handshake.installWriteKeys(writeHP, writePK)
	c.status.setHandshakeKeysPresent(true)
}

// InstallZeroRTTKeys installs this endpoint's single-direction 0-RTT key
// pair (write for a client sending early data, read for a server accepting
// it).
func (c *Conn) InstallZeroRTTKeys(hp HeaderProtectionKey, pk PacketKey) {
	c.data.installZeroRTTKeys(hp, pk)
}

// InstallOneRTTKeys installs the initial key-phase-zero 1-RTT key pair in
// both directions, completing the handshake's key schedule.
func (c *Conn) InstallOneRTTKeys(readHP HeaderProtectionKey, readPK PacketKey, writeHP HeaderProtectionKey, writePK PacketKey) {
	c.data.installOneRTTKeys(readHP, readPK, writeHP, writePK)
}

// discardInitialKeys drops the Initial space's key material once Handshake
// keys are confirmed usable, per RFC 9001 §4.9.1: an endpoint MUST discard
// Initial keys as soon as it has sent or received a Handshake packet.
func (c *Conn) discardInitialKeys() {
	c.initial.readKeys = epochKeys{}
	c.initial.writeKeys = epochKeys{}
}

// discardHandshakeKeys drops the Handshake space's key material once the
// handshake is confirmed, per RFC 9001 §4.9.2.
func (c *Conn) discardHandshakeKeys() {
	c.handshake.readKeys = epochKeys{}
	c.handshake.writeKeys = epochKeys{}
}

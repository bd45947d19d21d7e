// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

// packetType identifies which of the five QUIC v1 packet forms a header
// describes.
type packetType byte

const (
	packetTypeInitial packetType = iota
	packetType0RTT
	packetTypeHandshake
	packetTypeRetry
	packetType1RTT
)

func (t packetType) String() string {
	switch t {
	case packetTypeInitial:
		return "Initial"
	case packetType0RTT:
		return "0-RTT"
	case packetTypeHandshake:
		return "Handshake"
	case packetTypeRetry:
		return "Retry"
	case packetType1RTT:
		return "1-RTT"
	default:
		return "unknown"
	}
}

// numberSpace identifies one of the three independent packet-number spaces.
type numberSpace byte

const (
	initialSpace numberSpace = iota
	handshakeSpace
	appDataSpace
	numberSpaceCount
)

// spaceForPacketType maps a packet type to the PN space it belongs to.
// Retry packets carry no packet number and have no associated space.
func spaceForPacketType(t packetType) numberSpace {
	switch t {
	case packetTypeInitial:
		return initialSpace
	case packetTypeHandshake:
		return handshakeSpace
	default:
		return appDataSpace
	}
}

// quicVersion1 is the only wire version this engine speaks.
const quicVersion1 = uint32(0x00000001)

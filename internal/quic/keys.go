// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

// The TLS 1.3 handshake is an external collaborator (spec.md §1): this
// engine treats it as a black box that yields directional AEAD keys for
// each epoch and signals handshake progress. HeaderProtectionKey and
// PacketKey are the narrow interfaces the wire codec needs from whatever
// TLS stack the caller wires in.

// HeaderProtectionKey removes or applies header protection, per RFC 9001
// §5.4.
type HeaderProtectionKey interface {
	// Mask derives a 5-byte header-protection mask from a ciphertext
	// sample.
	Mask(sample []byte) (mask [5]byte, err error)
}

// PacketKey seals and opens the AEAD-protected packet payload, per RFC 9001
// §5.3.
type PacketKey interface {
	Overhead() int
	Seal(dst, nonce, plaintext, aad []byte) []byte
	Open(dst, nonce, ciphertext, aad []byte) ([]byte, error)
}

// epochKeys bundles one direction's header-protection and packet keys for
// an epoch, plus (for 1-RTT only) the key phase they were installed under.
type epochKeys struct {
	hp        HeaderProtectionKey
	pk        PacketKey
	keyPhase  KeyPhaseBit
	installed bool
}

func (k *epochKeys) isSet() bool { return k != nil && k.installed }

// oneRTTKeys tracks the current and (briefly, during a key update) previous
// 1-RTT packet keys, keyed by phase, so a decrypting receiver can try the
// generation the sender claims via the key-phase bit.
type oneRTTKeys struct {
	read    [2]epochKeys // indexed by kpIndex(phase)
	write   epochKeys
	current KeyPhaseBit
}

func kpIndex(k KeyPhaseBit) int {
	if k {
		return 1
	}
	return 0
}

func (k *oneRTTKeys) installRead(phase KeyPhaseBit, hp HeaderProtectionKey, pk PacketKey) {
	k.read[kpIndex(phase)] = epochKeys{hp: hp, pk: pk, keyPhase: phase, installed: true}
}

func (k *oneRTTKeys) installWrite(phase KeyPhaseBit, hp HeaderProtectionKey, pk PacketKey) {
	k.write = epochKeys{hp: hp, pk: pk, keyPhase: phase, installed: true}
	k.current = phase
}

func (k *oneRTTKeys) readFor(phase KeyPhaseBit) *epochKeys {
	e := &k.read[kpIndex(phase)]
	if !e.installed {
		return nil
	}
	return e
}

func (k *oneRTTKeys) updateKey(hp HeaderProtectionKey, pk PacketKey) {
	next := k.write.keyPhase.next()
	k.installRead(next, hp, pk)
	k.installWrite(next, hp, pk)
}

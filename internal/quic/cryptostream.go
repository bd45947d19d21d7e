// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "sync"

// cryptoSendBuffer tracks TLS handshake bytes queued for one epoch's CRYPTO
// stream: an append-only send buffer plus the set of byte ranges still
// needing (re)transmission, grounded on qrecovery's crypto::CryptoStream
// outgoing half referenced from original_source/qconnection/src/space/data.rs.
type cryptoSendBuffer struct {
	mu      sync.Mutex
	data    []byte
	sent    uint64 // offset up to which bytes have been handed to a packet at least once
	pending []offsetRange
}

type offsetRange struct{ start, end uint64 }

func newCryptoSendBuffer() *cryptoSendBuffer { return &cryptoSendBuffer{} }

// write appends application-handshake bytes to the stream.
func (c *cryptoSendBuffer) write(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = append(c.data, p...)
}

// tryLoad emits at most one CRYPTO frame of up to maxLen payload bytes,
// preferring ranges marked pending (retransmission) over fresh bytes.
func (c *cryptoSendBuffer) tryLoad(maxLen int) (*CryptoFrame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) > 0 {
		r := c.pending[0]
		n := uint64(maxLen)
		if r.end-r.start < n {
			n = r.end - r.start
		}
		frame := &CryptoFrame{Offset: VarInt(r.start), Data: append([]byte(nil), c.data[r.start:r.start+n]...)}
		if r.start+n == r.end {
			c.pending = c.pending[1:]
		} else {
			c.pending[0].start += n
		}
		return frame, true
	}
	if c.sent >= uint64(len(c.data)) {
		return nil, false
	}
	n := uint64(maxLen)
	remain := uint64(len(c.data)) - c.sent
	if remain < n {
		n = remain
	}
	frame := &CryptoFrame{Offset: VarInt(c.sent), Data: append([]byte(nil), c.data[c.sent:c.sent+n]...)}
	c.sent += n
	return frame, true
}

// mayLossData re-queues a CRYPTO frame's byte range for retransmission.
func (c *cryptoSendBuffer) mayLossData(f *CryptoFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, offsetRange{
		start: uint64(f.Offset),
		end:   uint64(f.Offset) + uint64(len(f.Data)),
	})
}

// cryptoStream pairs the outgoing send buffer with an incoming reassembly
// buffer for one epoch's handshake byte stream.
type cryptoStream struct {
	outgoing *cryptoSendBuffer
	incoming *recvBuf
}

func newCryptoStream() *cryptoStream {
	return &cryptoStream{outgoing: newCryptoSendBuffer(), incoming: &recvBuf{}}
}

// onCryptoFrame feeds a received CRYPTO frame into the reassembly buffer.
func (s *cryptoStream) onCryptoFrame(f *CryptoFrame) {
	s.incoming.recv(uint64(f.Offset), f.Data)
}

// bufferedBytes reports bytes held in the incoming reassembly buffer, for
// the recv_buffer_bytes gauge; the caller supplies the epoch label.
func (s *cryptoStream) bufferedBytes() uint64 {
	return s.incoming.buffered()
}

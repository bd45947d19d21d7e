// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "sync"

// sendStream is the outgoing half of one application data stream: an
// append-only byte buffer plus the byte ranges outstanding for
// (re)transmission, shaped like cryptoSendBuffer but additionally subject to
// per-stream flow control.
type sendStream struct {
	id      VarInt
	fc      *flowController
	buf     *cryptoSendBuffer
	finSent bool
	finSet  bool
	finOff  uint64
}

func newSendStream(id VarInt, initialLimit uint64) *sendStream {
	return &sendStream{id: id, fc: newFlowController(initialLimit, 0), buf: newCryptoSendBuffer()}
}

func (s *sendStream) write(p []byte) { s.buf.write(p) }

func (s *sendStream) closeWrite() {
	s.buf.mu.Lock()
	s.finSet = true
	s.finOff = uint64(len(s.buf.data))
	s.buf.mu.Unlock()
}

// tryLoad emits at most one STREAM frame honoring both the per-stream flow
// limit and maxLen, returning ok=false when there is nothing eligible to
// send right now (flow-blocked or empty).
func (s *sendStream) tryLoad(maxLen int) (*StreamFrame, bool) {
	budget := s.fc.canSend()
	if budget == 0 {
		return nil, false
	}
	if uint64(maxLen) > budget {
		maxLen = int(budget)
	}
	cf, ok := s.buf.tryLoad(maxLen)
	if !ok {
		s.buf.mu.Lock()
		fin := s.finSet && !s.finSent && s.sent() >= s.finOff
		if fin {
			s.finSent = true
		}
		s.buf.mu.Unlock()
		if fin {
			return &StreamFrame{StreamID: s.id, Offset: VarInt(s.finOff), Fin: true}, true
		}
		return nil, false
	}
	s.fc.consume(uint64(len(cf.Data)))
	sf := &StreamFrame{StreamID: s.id, Offset: cf.Offset, Data: cf.Data}
	s.buf.mu.Lock()
	if s.finSet && !s.finSent && uint64(sf.Offset)+uint64(len(sf.Data)) >= s.finOff {
		sf.Fin = true
		s.finSent = true
	}
	s.buf.mu.Unlock()
	return sf, true
}

func (s *sendStream) sent() uint64 {
	s.buf.mu.Lock()
	defer s.buf.mu.Unlock()
	return s.buf.sent
}

func (s *sendStream) mayLossData(f *StreamFrame) {
	s.buf.mayLossData(&CryptoFrame{Offset: f.Offset, Data: f.Data})
	if f.Fin {
		s.buf.mu.Lock()
		s.finSent = false
		s.buf.mu.Unlock()
	}
}

// recvStream is the incoming half: a reassembly buffer plus a per-stream
// flow control accountant credited as bytes arrive.
type recvStream struct {
	buf *recvBuf
	fc  *flowController
}

func newRecvStream(initialLimit uint64) *recvStream {
	return &recvStream{buf: &recvBuf{}, fc: newFlowController(0, initialLimit)}
}

func (s *recvStream) onStreamFrame(f *StreamFrame) error {
	delta := s.buf.recv(uint64(f.Offset), f.Data)
	if delta > 0 {
		return s.fc.credit(delta)
	}
	return nil
}

// streamManager owns every stream a connection's data space knows about,
// grounded on original_source/qconnection's DataStreams sitting alongside
// the crypto stream in DataSpace, simplified to the bidirectional/bytes
// model this engine's scope covers.
type streamManager struct {
	mu    sync.Mutex
	sends map[VarInt]*sendStream
	recvs map[VarInt]*recvStream

	defaultSendLimit uint64
	defaultRecvLimit uint64
}

func newStreamManager(defaultSendLimit, defaultRecvLimit uint64) *streamManager {
	return &streamManager{
		sends:            make(map[VarInt]*sendStream),
		recvs:            make(map[VarInt]*recvStream),
		defaultSendLimit: defaultSendLimit,
		defaultRecvLimit: defaultRecvLimit,
	}
}

func (m *streamManager) openSend(id VarInt) *sendStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sends[id]
	if !ok {
		s = newSendStream(id, m.defaultSendLimit)
		m.sends[id] = s
	}
	return s
}

func (m *streamManager) onMaxStreamData(f *MaxStreamDataFrame) {
	m.mu.Lock()
	s, ok := m.sends[f.StreamID]
	m.mu.Unlock()
	if ok {
		s.fc.onMaxData(uint64(f.Max))
	}
}

func (m *streamManager) onStreamFrame(f *StreamFrame) error {
	m.mu.Lock()
	r, ok := m.recvs[f.StreamID]
	if !ok {
		r = newRecvStream(m.defaultRecvLimit)
		m.recvs[f.StreamID] = r
	}
	m.mu.Unlock()
	return r.onStreamFrame(f)
}

// bufferedBytes sums the reassembly-buffer bytes held across every receive
// stream, for the recv_buffer_bytes gauge under the "data" epoch label.
func (m *streamManager) bufferedBytes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n uint64
	for _, r := range m.recvs {
		n += r.buf.buffered()
	}
	return n
}

// tryLoadInto drains send streams, in map iteration order, into frames
// totalling no more than budget bytes, returning the frames and the number
// of stream data bytes loaded (retransmitted bytes included).
func (m *streamManager) tryLoadInto(budget int) ([]*StreamFrame, int) {
	m.mu.Lock()
	ids := make([]VarInt, 0, len(m.sends))
	for id := range m.sends {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var frames []*StreamFrame
	fresh := 0
	for _, id := range ids {
		if budget <= 0 {
			break
		}
		s := m.openSend(id)
		f, ok := s.tryLoad(budget)
		if !ok {
			continue
		}
		frames = append(frames, f)
		fresh += len(f.Data)
		budget -= f.EncodingSize()
	}
	return frames, fresh
}

func (m *streamManager) mayLossData(f *StreamFrame) {
	m.mu.Lock()
	s, ok := m.sends[f.StreamID]
	m.mu.Unlock()
	if ok {
		s.mayLossData(f)
	}
}

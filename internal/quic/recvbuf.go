// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

// recvSegment is one contiguous run of received, unread stream bytes.
// Segments in a recvBuf are strictly sorted by offset and pairwise
// disjoint: for adjacent segments a, b, a.offset+len(a.data) <= b.offset.
type recvSegment struct {
	offset uint64
	data   []byte
}

func (s *recvSegment) end() uint64 { return s.offset + uint64(len(s.data)) }

// recvBuf reassembles out-of-order byte segments of a single stream (or the
// CRYPTO stream of an epoch) into a contiguous readable prefix. It
// implements C3 of the transport engine.
type recvBuf struct {
	nread         uint64 // bytes already delivered to the reader
	largestOffset uint64 // max over segments of offset+len(data), ever seen
	segments      []recvSegment
}

// available returns the length of the contiguous prefix starting at nread.
func (b *recvBuf) available() uint64 {
	end := b.nread
	for _, seg := range b.segments {
		if seg.offset != end {
			break
		}
		end += uint64(len(seg.data))
	}
	return end - b.nread
}

// isReadable reports whether the first segment starts exactly at nread.
func (b *recvBuf) isReadable() bool {
	return len(b.segments) > 0 && b.segments[0].offset == b.nread
}

// buffered returns the number of bytes currently held in segments, whether
// or not they form a contiguous prefix ready for tryRead.
func (b *recvBuf) buffered() uint64 {
	var n uint64
	for _, seg := range b.segments {
		n += uint64(len(seg.data))
	}
	return n
}

// recv inserts a new segment of data at offset, merging and trimming
// against neighboring segments so the stored segments remain disjoint. Data
// strictly before nread is discarded. It returns the increase of
// largestOffset, which callers credit against stream/connection flow
// control. recv is idempotent: receiving the same (offset, data) twice
// yields the same state and a flow-delta of 0 on the second call.
func (b *recvBuf) recv(offset uint64, data []byte) uint64 {
	previousLargest := b.largestOffset

	start := offset
	if b.nread > start {
		start = b.nread
	}
	if skip := start - offset; skip > 0 {
		if skip >= uint64(len(data)) {
			data = nil
		} else {
			data = data[skip:]
		}
	}

	for len(data) > 0 {
		idx, exact := b.searchSegment(start)
		if exact {
			// start lands exactly on an existing segment's offset: trim the
			// overlapping prefix of data and continue past it.
			covered := uint64(len(b.segments[idx].data))
			if uint64(len(data)) < covered {
				covered = uint64(len(data))
			}
			data = data[covered:]
			start += covered
			continue
		}

		// idx is the position where a segment starting at `start` would be
		// inserted: segments[idx-1] (if any) starts before start, and
		// segments[idx] (if any) starts after start.
		if idx > 0 {
			prev := &b.segments[idx-1]
			switch {
			case start+uint64(len(data)) <= prev.end():
				// Fully covered by the previous segment.
				data = nil
				continue
			case start < prev.end():
				covered := prev.end() - start
				data = data[covered:]
				start += covered
			}
		}

		var uncovered []byte
		if idx < len(b.segments) {
			next := &b.segments[idx]
			switch {
			case start == next.offset:
				continue
			case start+uint64(len(data)) > next.offset:
				uncovered = data[:next.offset-start]
				data = data[next.offset-start:]
			default:
				uncovered = data
				data = nil
			}
		} else {
			uncovered = data
			data = nil
		}

		seg := recvSegment{offset: start, data: append([]byte(nil), uncovered...)}
		start += uint64(len(seg.data))
		if seg.end() > b.largestOffset {
			b.largestOffset = seg.end()
		}
		b.segments = append(b.segments, recvSegment{})
		copy(b.segments[idx+1:], b.segments[idx:])
		b.segments[idx] = seg
	}

	return b.largestOffset - previousLargest
}

// searchSegment returns the index of the segment whose offset equals off
// (exact=true), or the insertion index that keeps segments sorted by
// offset (exact=false).
func (b *recvBuf) searchSegment(off uint64) (idx int, exact bool) {
	lo, hi := 0, len(b.segments)
	for lo < hi {
		mid := (lo + hi) / 2
		if b.segments[mid].offset < off {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(b.segments) && b.segments[lo].offset == off {
		return lo, true
	}
	return lo, false
}

// tryRead copies as many contiguous bytes as dst can hold into dst,
// advancing nread by exactly the number of bytes copied, and returns that
// count.
func (b *recvBuf) tryRead(dst []byte) int {
	n := 0
	for len(dst) > 0 && len(b.segments) > 0 {
		seg := &b.segments[0]
		if seg.offset != b.nread {
			break
		}
		copied := copy(dst, seg.data)
		dst = dst[copied:]
		n += copied
		b.nread += uint64(copied)
		if copied == len(seg.data) {
			b.segments = b.segments[1:]
		} else {
			seg.data = seg.data[copied:]
			seg.offset += uint64(copied)
		}
	}
	return n
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "testing"

func TestRecvBufReassembly(t *testing.T) {
	var b recvBuf

	deltas := []uint64{
		b.recv(0, []byte("hell")),
		b.recv(7, []byte("world")),
		b.recv(3, []byte("lo, ")),
		b.recv(7, []byte("world!")),
	}
	want := []uint64{4, 8, 0, 1}
	for i := range want {
		if deltas[i] != want[i] {
			t.Fatalf("recv #%d flow-delta = %d, want %d (got %v)", i+1, deltas[i], want[i], deltas)
		}
	}

	dst := make([]byte, 20)
	n := b.tryRead(dst)
	if n != 13 {
		t.Fatalf("tryRead returned %d bytes, want 13", n)
	}
	if got := string(dst[:n]); got != "hello, world!" {
		t.Fatalf("tryRead = %q, want %q", got, "hello, world!")
	}
	if b.nread != 13 {
		t.Fatalf("nread = %d, want 13", b.nread)
	}
}

func TestRecvBufIdempotent(t *testing.T) {
	var b recvBuf
	b.recv(0, []byte("abc"))
	state := b.segments
	delta := b.recv(0, []byte("abc"))
	if delta != 0 {
		t.Errorf("repeat recv(0,\"abc\") flow-delta = %d, want 0", delta)
	}
	if len(b.segments) != len(state) {
		t.Errorf("repeat recv changed segment count: %d vs %d", len(b.segments), len(state))
	}
}

func TestRecvBufMonotoneAndDisjoint(t *testing.T) {
	var b recvBuf
	b.recv(5, []byte("xyz"))
	b.recv(0, []byte("ab"))
	b.recv(2, []byte("cd"))
	b.recv(20, []byte("z"))

	if b.nread > b.segments[0].offset {
		t.Errorf("nread %d exceeds first segment offset %d", b.nread, b.segments[0].offset)
	}
	if b.segments[0].offset > b.largestOffset {
		t.Errorf("first segment offset %d exceeds largestOffset %d", b.segments[0].offset, b.largestOffset)
	}
	for i := 1; i < len(b.segments); i++ {
		prev := b.segments[i-1]
		cur := b.segments[i]
		if prev.offset >= cur.offset {
			t.Errorf("segments not strictly sorted: [%d]=%d >= [%d]=%d", i-1, prev.offset, i, cur.offset)
		}
		if prev.end() > cur.offset {
			t.Errorf("segments overlap: [%d] ends at %d, [%d] starts at %d", i-1, prev.end(), i, cur.offset)
		}
	}
}

func TestRecvBufDiscardsBeforeNread(t *testing.T) {
	var b recvBuf
	b.recv(0, []byte("abcdef"))
	dst := make([]byte, 3)
	b.tryRead(dst) // nread = 3

	delta := b.recv(0, []byte("abc")) // fully stale, already read
	if delta != 0 {
		t.Errorf("recv of already-read range returned delta %d, want 0", delta)
	}
	if len(b.segments) != 1 {
		t.Errorf("stale recv introduced a new segment: %v", b.segments)
	}
}

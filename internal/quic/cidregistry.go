// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"sync"

	"github.com/rs/xid"
)

// connID is a QUIC connection ID: 0-20 opaque bytes, per RFC 9000 §5.1.
type connID []byte

// newLocalConnID mints a fresh, unique connection ID of length n using
// xid's 12-byte globally-unique, time-sortable identifiers (grounded on
// runZeroInc-conniver/runZeroInc-sockstats' use of github.com/rs/xid for
// identifier generation), truncated or zero-extended to n bytes.
func newLocalConnID(n int) connID {
	id := xid.New().Bytes() // 12 bytes
	out := make(connID, n)
	copy(out, id)
	return out
}

type localCIDEntry struct {
	seq        VarInt
	id         connID
	resetToken [16]byte
	retired    bool
}

// localCIDRegistry issues this endpoint's connection IDs via
// NEW_CONNECTION_ID and retires them on demand, tracking up to
// activeConnectionIDLimit outstanding entries (spec.md SPEC_FULL §4.11).
type localCIDRegistry struct {
	mu            sync.Mutex
	entries       []localCIDEntry
	nextSeq       VarInt
	limit         int
	cidLen        int
	initialSCID   connID
}

func newLocalCIDRegistry(initial connID, limit, cidLen int) *localCIDRegistry {
	r := &localCIDRegistry{limit: limit, cidLen: cidLen, initialSCID: initial}
	r.entries = append(r.entries, localCIDEntry{seq: 0, id: initial})
	r.nextSeq = 1
	return r
}

func (r *localCIDRegistry) initialSCIDValue() connID { return r.initialSCID }

// issueNew mints new CIDs until the registry holds up to limit
// non-retired entries, returning the NEW_CONNECTION_ID frames to send.
func (r *localCIDRegistry) issueNew() []*NewConnectionIDFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := 0
	for _, e := range r.entries {
		if !e.retired {
			active++
		}
	}
	var out []*NewConnectionIDFrame
	for active < r.limit {
		e := localCIDEntry{seq: r.nextSeq, id: newLocalConnID(r.cidLen)}
		copy(e.resetToken[:], newLocalConnID(16))
		r.nextSeq++
		r.entries = append(r.entries, e)
		out = append(out, &NewConnectionIDFrame{
			Sequence:   e.seq,
			ConnID:     append([]byte(nil), e.id...),
			ResetToken: e.resetToken,
		})
		active++
	}
	return out
}

// retire marks the entry with the given sequence number retired in
// response to a peer's RETIRE_CONNECTION_ID frame.
func (r *localCIDRegistry) retire(seq VarInt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].seq == seq {
			r.entries[i].retired = true
			return
		}
	}
}

type remoteCIDEntry struct {
	seq           VarInt
	id            connID
	resetToken    [16]byte
	retirePriorTo VarInt
	retired       bool
}

// remoteCIDRegistry tracks the peer's advertised connection IDs (spec.md
// SPEC_FULL §4.11), used for migration and path probing.
type remoteCIDRegistry struct {
	mu        sync.Mutex
	entries   []remoteCIDEntry
	latestSeq VarInt
	hasAny    bool
}

func newRemoteCIDRegistry(initial connID) *remoteCIDRegistry {
	r := &remoteCIDRegistry{}
	if initial != nil {
		r.entries = append(r.entries, remoteCIDEntry{seq: 0, id: initial})
		r.hasAny = true
	}
	return r
}

// onNewConnectionID records a peer-issued CID and returns any
// RETIRE_CONNECTION_ID frames required by its RetirePriorTo field.
func (r *remoteCIDRegistry) onNewConnectionID(f *NewConnectionIDFrame) []*RetireConnectionIDFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, remoteCIDEntry{
		seq: f.Sequence, id: append(connID(nil), f.ConnID...),
		resetToken: f.ResetToken, retirePriorTo: f.RetirePriorTo,
	})
	if f.Sequence > r.latestSeq || !r.hasAny {
		r.latestSeq = f.Sequence
		r.hasAny = true
	}
	var out []*RetireConnectionIDFrame
	for i := range r.entries {
		if !r.entries[i].retired && r.entries[i].seq < f.RetirePriorTo {
			r.entries[i].retired = true
			out = append(out, &RetireConnectionIDFrame{Sequence: r.entries[i].seq})
		}
	}
	return out
}

// latestDCID returns the most recently learned peer connection ID, if any.
func (r *remoteCIDRegistry) latestDCID() (connID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if !r.entries[i].retired {
			return r.entries[i].id, true
		}
	}
	return nil, false
}

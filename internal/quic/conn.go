// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Role distinguishes the client and server sides of a connection; several
// wire behaviors (who may send 0-RTT, anti-amplification) are role-specific.
type Role byte

const (
	RoleClient Role = iota
	RoleServer
)

// connLifecycle is the top-level state machine a Conn walks through:
// Initializing (handshake not yet begun) -> Running -> Closing -> Draining
// -> Terminated, per spec.md §4.10/§4.9.
type connLifecycle uint32

const (
	lifecycleInitializing connLifecycle = iota
	lifecycleRunning
	lifecycleClosing
	lifecycleDraining
	lifecycleTerminated
)

// Conn is the per-connection orchestrator (C11): it owns the three
// packet-number spaces, the connection ID registries, the path set, and
// routes decrypted frames to the space that owns them. Structurally this
// generalizes the teacher's Conn (internal/quic/conn_send.go,
// conn_loss.go in the reference package) from a single fixed TLS/UDP
// binding to this engine's pluggable HeaderProtectionKey/PacketKey/
// Transport collaborators.
type Conn struct {
	role Role
	log  *logrus.Entry

	lifecycle uint32 // atomic connLifecycle

	initial    *handshakeLikeSpace
	handshake  *handshakeLikeSpace
	data       *dataSpace
	status     *handshakeStatus

	localCIDs  *localCIDRegistry
	remoteCIDs *remoteCIDRegistry

	pathsMu sync.Mutex
	paths   map[pathway]*path

	waker   *sendWaker
	events  *eventBroker
	metrics *EngineMetrics

	connFlow *flowController

	term atomic.Value // *terminator, set once Close is called

	initialToken []byte
}

// ConnConfig bundles what a caller must supply to open a Conn; the TLS
// handshake, congestion controller, and network interface all remain
// external collaborators constructed elsewhere and wired in via this
// struct, per spec.md §1's scope boundary.
type ConnConfig struct {
	Role           Role
	InitialSCID    connID
	InitialDCID    connID
	Logger         *logrus.Logger
	Metrics        *EngineMetrics
	MaxAckDelay    time.Duration
	ActiveCIDLimit int
	CIDLength      int
	StreamSendWnd  uint64
	StreamRecvWnd  uint64
}

func NewConn(cfg ConnConfig) *Conn {
	if cfg.MaxAckDelay == 0 {
		cfg.MaxAckDelay = 25 * time.Millisecond
	}
	if cfg.ActiveCIDLimit == 0 {
		cfg.ActiveCIDLimit = 4
	}
	if cfg.CIDLength == 0 {
		cfg.CIDLength = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := &Conn{
		role:       cfg.Role,
		log:        logger.WithField("component", "quic.conn"),
		initial:    newHandshakeLikeSpace(packetTypeInitial, cfg.MaxAckDelay),
		handshake:  newHandshakeLikeSpace(packetTypeHandshake, cfg.MaxAckDelay),
		data:       newDataSpace(cfg.MaxAckDelay, cfg.StreamSendWnd, cfg.StreamRecvWnd),
		status:     newHandshakeStatus(),
		localCIDs:  newLocalCIDRegistry(cfg.InitialSCID, cfg.ActiveCIDLimit, cfg.CIDLength),
		remoteCIDs: newRemoteCIDRegistry(cfg.InitialDCID),
		paths:      make(map[pathway]*path),
		waker:      newSendWaker(),
		events:     newEventBroker(),
		metrics:    cfg.Metrics,
		connFlow:   newFlowController(^uint64(0), orDefaultU64(cfg.StreamRecvWnd, 1<<20)*4),
	}
	return c
}

func orDefaultU64(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

func (c *Conn) lifecycleState() connLifecycle {
	return connLifecycle(atomic.LoadUint32(&c.lifecycle))
}

func (c *Conn) setLifecycle(s connLifecycle) {
	atomic.StoreUint32(&c.lifecycle, uint32(s))
}

// getOrCreatePath returns the path for way, creating one (server-side
// unvalidated, client-side pre-validated) on first use from a given
// address pair, per spec.md §4.10's "create on demand" contract.
func (c *Conn) getOrCreatePath(way pathway, cc Transport) *path {
	c.pathsMu.Lock()
	defer c.pathsMu.Unlock()
	if p, ok := c.paths[way]; ok {
		return p
	}
	p := newPath(way, cc, c.waker, c.role == RoleServer)
	c.paths[way] = p
	c.log.WithField("server_side", c.role == RoleServer).Info("path created")
	c.events.emit(Event{Kind: EventProbedNewPath})
	return p
}

// inactivatePath removes a path, emitting PathInactivated; called once a
// path has been idle past its linger timeout or explicitly abandoned.
func (c *Conn) inactivatePath(way pathway) {
	c.pathsMu.Lock()
	_, existed := c.paths[way]
	delete(c.paths, way)
	c.pathsMu.Unlock()
	if existed {
		c.log.Debug("path inactivated")
		c.events.emit(Event{Kind: EventPathInactivated})
	}
}

// onHandshakeDone marks the handshake confirmed, discards the Handshake
// space's keys (discardHandshakeKeys) and emits Handshaked, for either
// role. Initial keys and both spaces' sent journals are left as they are.
func (c *Conn) onHandshakeDone() {
	c.status.setHandshakeConfirmed()
	c.discardHandshakeKeys()
	c.log.Info("handshake confirmed")
	c.events.emit(Event{Kind: EventHandshaked})
}

// maybeSend builds and returns the wire bytes to send on one path right
// now, speculatively assembling Initial, Handshake, and 1-RTT packets in
// that order exactly as the teacher's maybeSend coalesces them into one
// datagram, adapted to this engine's Signals-returning assembly calls
// instead of a shared packet writer object.
func (c *Conn) maybeSend(now time.Time, way pathway) (datagram []byte, next time.Time, signals Signals) {
	p := c.getOrCreatePath(way, &noopTransport{})
	budget, sendSignals, pathNext := p.sendBudget(now)
	if p.antiAmp != nil {
		if credit, err := p.antiAmp.balance(); err == nil {
			c.metrics.setAntiAmpCredit(credit)
		}
	}
	if budget == 0 {
		return nil, pathNext, sendSignals
	}

	dcid, _ := c.remoteCIDs.latestDCID()
	scid := c.localCIDs.initialSCIDValue()
	var out []byte
	var sealedAny bool
	var accumSignals Signals

	if c.initial.writeKeys.isSet() {
		if pkt, recorded, sig := c.initial.tryAssemble(dcid, scid, c.initialToken, budget, false); pkt != nil {
			if sealed, err := sealLongHeaderPacket(pkt, c.initial.writeKeys.hp, c.initial.writeKeys.pk); err == nil {
				out = append(out, sealed...)
				p.onSent(initialSpace, pkt.pn, len(sealed), true, true)
				c.metrics.recordSent(initialSpace)
				if len(recorded) == 0 {
					c.metrics.recordSkipped(initialSpace)
				}
				sealedAny = true
			}
		} else {
			accumSignals |= sig
		}
	}

	if c.handshake.writeKeys.isSet() {
		if pkt, recorded, sig := c.handshake.tryAssemble(dcid, scid, nil, budget, false); pkt != nil {
			if sealed, err := sealLongHeaderPacket(pkt, c.handshake.writeKeys.hp, c.handshake.writeKeys.pk); err == nil {
				out = append(out, sealed...)
				p.onSent(handshakeSpace, pkt.pn, len(sealed), true, true)
				c.metrics.recordSent(handshakeSpace)
				if len(recorded) == 0 {
					c.metrics.recordSkipped(handshakeSpace)
				}
				sealedAny = true
			}
		} else {
			accumSignals |= sig
		}
	}

	if c.data.isOneRTTReady() {
		needAck := func() (packetNumber, time.Time, bool) { return 0, time.Time{}, false }
		if pkt, recorded, sig := c.data.tryAssembleOneRTT(dcid, p.spin, needAck, budget); pkt != nil {
			if sealed, err := sealShortHeaderPacket(pkt, dcid, c.data.oneRTT.write.hp, c.data.oneRTT.write.pk); err == nil {
				out = append(out, sealed...)
				p.onSent(appDataSpace, pkt.pn, len(sealed), true, true)
				c.metrics.recordSent(appDataSpace)
				if len(recorded) == 0 {
					c.metrics.recordSkipped(appDataSpace)
				}
				sealedAny = true
			}
		} else {
			accumSignals |= sig
		}
	} else {
		if pkt, recorded, sig := c.data.tryAssembleZeroRTT(dcid, scid, budget); pkt != nil {
			_ = recorded
			if sealed, err := sealLongHeaderPacket(pkt, c.data.zeroRTT.hp, c.data.zeroRTT.pk); err == nil {
				out = append(out, sealed...)
				p.onSent(appDataSpace, pkt.pn, len(sealed), true, true)
				sealedAny = true
			}
		} else {
			accumSignals |= sig
		}
	}

	if c.data.isOneRTTReady() {
		var probeFrames []Frame
		probeFrames = append(probeFrames, p.challengeOut.drainUpTo(budget)...)
		probeFrames = append(probeFrames, p.responseOut.drainUpTo(budget)...)
		if len(probeFrames) > 0 {
			if pkt, _, sig := c.data.tryAssembleProbe(dcid, p.spin, probeFrames); pkt != nil {
				if sealed, err := sealShortHeaderPacket(pkt, dcid, c.data.oneRTT.write.hp, c.data.oneRTT.write.pk); err == nil {
					out = append(out, sealed...)
					p.onSent(appDataSpace, pkt.pn, len(sealed), true, true)
					sealedAny = true
				} else {
					p.challengeOut.requeue(probeFrames)
				}
			} else {
				accumSignals |= sig
				p.challengeOut.requeue(probeFrames)
			}
		}
	}

	if !sealedAny {
		return nil, next, accumSignals | sendSignals
	}
	return out, time.Time{}, 0
}

// Close begins the Closing state: records the error to send as a CCF and
// snapshots the data space's 1-RTT keys for retransmission, per
// termination.go / spec.md §4.9.
func (c *Conn) Close(err *Error) {
	if !atomic.CompareAndSwapUint32(&c.lifecycle, uint32(lifecycleRunning), uint32(lifecycleClosing)) &&
		!atomic.CompareAndSwapUint32(&c.lifecycle, uint32(lifecycleInitializing), uint32(lifecycleClosing)) {
		return
	}
	closing := c.data.close()
	dcid, _ := c.remoteCIDs.latestDCID()
	t := newTerminator(err.CloseFrame(), c.localCIDs.initialSCIDValue(), dcid, closing)
	c.term.Store(t)
	if err.Quic != nil {
		c.log.WithField("kind", err.Quic.Kind).Warn("closing with error")
		c.events.emit(Event{Kind: EventFailed, Err: err})
	} else {
		c.log.Info("closing")
		c.events.emit(Event{Kind: EventApplicationClose})
	}
}

// enterDraining moves a Closing connection to Draining and emits Terminated
// at once; no timer is armed for drainingPeriod.
func (c *Conn) enterDraining() {
	if !atomic.CompareAndSwapUint32(&c.lifecycle, uint32(lifecycleClosing), uint32(lifecycleDraining)) {
		return
	}
	if v := c.term.Load(); v != nil {
		v.(*terminator).enterDraining()
	}
	c.log.Info("entering draining")
	c.events.emit(Event{Kind: EventTerminated})
}

func (c *Conn) isTerminal() bool {
	s := c.lifecycleState()
	return s == lifecycleDraining || s == lifecycleTerminated
}

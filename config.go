// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package quic is the public surface of the engine: a client configuration
// builder and the Dial entry point. The transport engine itself lives in
// internal/quic; this package only exposes the external interfaces spec.md
// §6 describes and wires them into internal/quic's orchestrator.
package quic

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/qcore/quicengine/internal/quic"
)

// InterfaceFactory builds the UDP-socket-like binding a connection sends
// and receives datagrams through. Swappable so callers can substitute a
// QUIC-aware proxy, a test harness, or a real net.UDPConn wrapper.
type InterfaceFactory func(bind net.Addr) (net.PacketConn, error)

// TokenSink persists and retrieves NEW_TOKEN values across connections to
// the same server, enabling 0-RTT resumption.
type TokenSink interface {
	Store(serverName string, token []byte)
	Load(serverName string) ([]byte, bool)
}

// QLogSink receives structured qlog-shaped events. Config carries one, but
// Dial does not pass it to the engine, so no events reach it.
type QLogSink interface {
	Emit(event string, fields map[string]any)
}

// StreamsConcurrencyStrategy supplies the initial number of concurrent
// streams of each direction. Dial reads Config.StreamsConcurrency but does
// not pass its limits to the engine: no MAX_STREAMS value is advertised or
// grown from it.
type StreamsConcurrencyStrategy interface {
	InitialBidiLimit() uint64
	InitialUniLimit() uint64
}

// fixedStreamsStrategy is the simplest StreamsConcurrencyStrategy: a
// constant limit that never grows.
type fixedStreamsStrategy struct{ bidi, uni uint64 }

func (s fixedStreamsStrategy) InitialBidiLimit() uint64 { return s.bidi }
func (s fixedStreamsStrategy) InitialUniLimit() uint64  { return s.uni }

// TLSVerifyMode selects how the peer's certificate chain is authenticated.
type TLSVerifyMode int

const (
	TLSVerifyRootStore TLSVerifyMode = iota
	TLSVerifyWebPKI
	TLSVerifyCustom
	TLSVerifyNone
)

// ClientAuthMode selects how this endpoint authenticates itself to a peer
// requesting client certificates.
type ClientAuthMode int

const (
	ClientAuthNone ClientAuthMode = iota
	ClientAuthSingleCert
	ClientAuthResolver
)

// Config is the client configuration surface of spec.md §6: an interface
// factory, bind addresses, connection reuse policy, transport parameters,
// and the ambient logging/metrics hooks this engine's SPEC_FULL expansion
// adds on top of the distilled spec.
type Config struct {
	InterfaceFactory InterfaceFactory
	BindAddrs        []net.Addr
	ReuseAddress     bool
	ReuseConnection  bool

	PreferredVersions []uint32

	IdleTimeout      time.Duration
	MaxAckDelay      time.Duration
	ActiveCIDLimit   int
	StreamSendWindow uint64
	StreamRecvWindow uint64

	StreamsConcurrency StreamsConcurrencyStrategy

	TLSVerifyMode  TLSVerifyMode
	TLSConfig      *tls.Config
	ClientAuthMode ClientAuthMode
	ALPN           []string
	EnableKeyLog   bool

	TokenSink TokenSink
	QLogSink  QLogSink

	// Logger and Registerer are the ambient observability hooks this
	// engine's expansion of spec.md §6 adds: every Conn logs through
	// Logger (default logrus.StandardLogger()) and, if Registerer is
	// non-nil, registers its Prometheus collectors into it.
	Logger     *logrus.Logger
	Registerer prometheus.Registerer
}

// reuseCache maps a server name to the connection last dialed against it
// with ReuseConnection set. Entries are added on successful dial and are
// not removed when a connection closes or fails; Dial skips an entry whose
// Conn has been closed or is terminal and replaces it with the new one.
type reuseCache struct {
	conns map[string]*Conn
}

var defaultReuseCache = &reuseCache{conns: make(map[string]*Conn)}

// Conn is the public handle to an established connection. It owns the
// socket the engine sends and receives through and the two goroutines
// (receive loop, send loop) that drive internal/quic.Conn's Deliver/Send
// API, grounded on the x/net QUIC endpoint's listen-loop-plus-datagram-
// pool pattern (vendor/golang.org/x/net/internal/quic/endpoint.go in the
// distribution-distribution example) adapted to a single connection's
// socket instead of a shared multi-connection listener.
type Conn struct {
	inner *quic.Conn
	pc    net.PacketConn
	local, remote net.Addr

	closeOnce sync.Once
	closed    chan struct{}
}

// recvLoop reads datagrams off the socket and hands them to the engine
// until the socket is closed.
func (c *Conn) recvLoop() {
	buf := make([]byte, 65527)
	for {
		n, _, err := c.pc.ReadFrom(buf)
		if err != nil {
			return
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		c.inner.Deliver(c.local, c.remote, pkt)
	}
}

// sendLoop calls Send whenever the engine signals it has something to
// transmit, writing the resulting datagram to the socket, until the
// connection reaches a terminal state or the socket is closed.
func (c *Conn) sendLoop() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		dgram, next, _ := c.inner.Send(time.Now(), c.local, c.remote)
		if dgram != nil {
			if _, err := c.pc.WriteTo(dgram, c.remote); err != nil {
				return
			}
			continue
		}
		if c.inner.IsTerminal() {
			return
		}
		wait := time.Until(next)
		if next.IsZero() || wait <= 0 {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-c.inner.WakeChan():
		case <-timer.C:
		case <-c.closed:
			return
		}
	}
}

// Dial opens a connection to addr over the given server name, honoring
// cfg.ReuseConnection by returning a cached Conn if one exists and is
// still usable.
func Dial(ctx context.Context, addr string, serverName string, cfg *Config) (*Conn, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ReuseConnection {
		if c, ok := defaultReuseCache.conns[serverName]; ok && !c.inner.IsTerminal() {
			select {
			case <-c.closed:
			default:
				return c, nil
			}
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	strategy := cfg.StreamsConcurrency
	if strategy == nil {
		strategy = fixedStreamsStrategy{bidi: 100, uni: 100}
	}
	_ = strategy

	remoteAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	var bind net.Addr
	if len(cfg.BindAddrs) > 0 {
		bind = cfg.BindAddrs[0]
	}
	factory := cfg.InterfaceFactory
	if factory == nil {
		factory = defaultInterfaceFactory
	}
	pc, err := factory(bind)
	if err != nil {
		return nil, err
	}

	innerCfg := quic.ConnConfig{
		Role:           quic.RoleClient,
		Logger:         logger,
		Metrics:        quic.NewEngineMetrics(cfg.Registerer),
		MaxAckDelay:    orDefault(cfg.MaxAckDelay, 25*time.Millisecond),
		ActiveCIDLimit: orDefaultInt(cfg.ActiveCIDLimit, 4),
		StreamSendWnd:  orDefaultU64(cfg.StreamSendWindow, 1<<20),
		StreamRecvWnd:  orDefaultU64(cfg.StreamRecvWindow, 1<<20),
	}
	inner := quic.NewConn(innerCfg)
	c := &Conn{
		inner:  inner,
		pc:     pc,
		local:  pc.LocalAddr(),
		remote: remoteAddr,
		closed: make(chan struct{}),
	}
	go c.recvLoop()
	go c.sendLoop()

	if cfg.ReuseConnection {
		defaultReuseCache.conns[serverName] = c
	}
	return c, nil
}

// defaultInterfaceFactory binds an ordinary UDP socket, used when a Config
// does not supply its own InterfaceFactory.
func defaultInterfaceFactory(bind net.Addr) (net.PacketConn, error) {
	var laddr *net.UDPAddr
	if bind != nil {
		if u, ok := bind.(*net.UDPAddr); ok {
			laddr = u
		}
	}
	return net.ListenUDP("udp", laddr)
}

func orDefault(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultU64(v, def uint64) uint64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Close begins a graceful application-level close with the given error
// code and reason, transitioning the underlying connection to Closing,
// then stopping the send loop and closing the socket at once.
func (c *Conn) Close(errorCode uint64, reason string) error {
	c.inner.CloseApplication(errorCode, reason)
	c.closeOnce.Do(func() {
		close(c.closed)
		c.pc.Close()
	})
	return nil
}

// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics are the Prometheus collectors every Conn reports into,
// grounded on distribution-distribution's docker/go-metrics +
// prometheus/client_golang wiring and m-lab-tcp-info's direct use of
// prometheus/client_golang for transport-level counters.
type EngineMetrics struct {
	packetsSent     *prometheus.CounterVec // labels: space
	packetsAcked    *prometheus.CounterVec // labels: space
	packetsLost     *prometheus.CounterVec // labels: space
	packetsSkipped  *prometheus.CounterVec // labels: space
	antiAmpCredit   prometheus.Gauge
	recvBufferBytes *prometheus.GaugeVec // labels: epoch
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quicengine",
			Name:      "packets_sent_total",
			Help:      "Packets sent, by packet-number space.",
		}, []string{"space"}),
		packetsAcked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quicengine",
			Name:      "packets_acked_total",
			Help:      "Packets acknowledged by the peer, by packet-number space.",
		}, []string{"space"}),
		packetsLost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quicengine",
			Name:      "packets_lost_total",
			Help:      "Packets declared lost, by packet-number space.",
		}, []string{"space"}),
		packetsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quicengine",
			Name:      "packets_skipped_total",
			Help:      "Packet numbers consumed without a retained record.",
		}, []string{"space"}),
		antiAmpCredit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quicengine",
			Name:      "anti_amplification_credit_bytes",
			Help:      "Current anti-amplification send credit.",
		}),
		recvBufferBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quicengine",
			Name:      "recv_buffer_bytes",
			Help:      "Bytes buffered awaiting contiguous delivery, by epoch.",
		}, []string{"epoch"}),
	}
	if reg != nil {
		reg.MustRegister(m.packetsSent, m.packetsAcked, m.packetsLost,
			m.packetsSkipped, m.antiAmpCredit, m.recvBufferBytes)
	}
	return m
}

func (m *EngineMetrics) recordSent(space numberSpace) {
	if m == nil {
		return
	}
	m.packetsSent.WithLabelValues(space.String()).Inc()
}

func (m *EngineMetrics) recordAcked(space numberSpace) {
	if m == nil {
		return
	}
	m.packetsAcked.WithLabelValues(space.String()).Inc()
}

func (m *EngineMetrics) recordLost(space numberSpace) {
	if m == nil {
		return
	}
	m.packetsLost.WithLabelValues(space.String()).Inc()
}

// recordSkipped counts a packet number consumed by a trivial (ACK/PING-only)
// packet: one that advanced the space's sent journal without recording any
// retransmittable frame, per sentPktStateKind's pktSkipped.
func (m *EngineMetrics) recordSkipped(space numberSpace) {
	if m == nil {
		return
	}
	m.packetsSkipped.WithLabelValues(space.String()).Inc()
}

// setAntiAmpCredit reports a path's current anti-amplification send credit.
func (m *EngineMetrics) setAntiAmpCredit(credit int) {
	if m == nil {
		return
	}
	m.antiAmpCredit.Set(float64(credit))
}

// setRecvBuffered reports the bytes currently held in one epoch's
// reassembly buffer(s), across both the CRYPTO stream and (for "data") the
// application streams.
func (m *EngineMetrics) setRecvBuffered(epoch string, n uint64) {
	if m == nil {
		return
	}
	m.recvBufferBytes.WithLabelValues(epoch).Set(float64(n))
}

func (s numberSpace) String() string {
	switch s {
	case initialSpace:
		return "initial"
	case handshakeSpace:
		return "handshake"
	case appDataSpace:
		return "data"
	default:
		return "unknown"
	}
}

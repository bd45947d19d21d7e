// Copyright 2024 The qcore Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package quic

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func metricValue(t *testing.T, m prometheus.Metric) dto.Metric {
	t.Helper()
	var mm dto.Metric
	if err := m.Write(&mm); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return mm
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	return metricValue(t, c).GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	return metricValue(t, g).GetGauge().GetValue()
}

func TestEngineMetricsRecordSentAckedLostSkipped(t *testing.T) {
	m := NewEngineMetrics(nil)

	m.recordSent(initialSpace)
	m.recordSent(initialSpace)
	m.recordAcked(initialSpace)
	m.recordLost(handshakeSpace)
	m.recordSkipped(appDataSpace)

	if v := counterValue(t, m.packetsSent.WithLabelValues("initial")); v != 2 {
		t.Errorf("packetsSent[initial] = %v, want 2", v)
	}
	if v := counterValue(t, m.packetsAcked.WithLabelValues("initial")); v != 1 {
		t.Errorf("packetsAcked[initial] = %v, want 1", v)
	}
	if v := counterValue(t, m.packetsLost.WithLabelValues("handshake")); v != 1 {
		t.Errorf("packetsLost[handshake] = %v, want 1", v)
	}
	if v := counterValue(t, m.packetsSkipped.WithLabelValues("data")); v != 1 {
		t.Errorf("packetsSkipped[data] = %v, want 1", v)
	}
}

func TestEngineMetricsGauges(t *testing.T) {
	m := NewEngineMetrics(nil)

	m.setAntiAmpCredit(1200)
	if v := gaugeValue(t, m.antiAmpCredit); v != 1200 {
		t.Errorf("antiAmpCredit = %v, want 1200", v)
	}

	m.setRecvBuffered("handshake", 42)
	if v := gaugeValue(t, m.recvBufferBytes.WithLabelValues("handshake")); v != 42 {
		t.Errorf("recvBufferBytes[handshake] = %v, want 42", v)
	}
}

// A nil *EngineMetrics must absorb every recorder call: Conn.metrics is nil
// whenever ConnConfig.Metrics is left unset.
func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.recordSent(initialSpace)
	m.recordAcked(initialSpace)
	m.recordLost(initialSpace)
	m.recordSkipped(initialSpace)
	m.setAntiAmpCredit(5)
	m.setRecvBuffered("data", 5)
}

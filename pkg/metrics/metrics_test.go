package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() returned error: %v", err)
	}

	m.PersistWrite(true)
	m.BridgeCommand("MC_PLAY", "message")
	m.BridgeDropped("MC_PLAY")
	m.BridgeInbound("MC_READY")
	m.EchoSuppressed("progress")
	m.ScanResult("accepted")
	m.StationArrival("qr")
	m.Snapshot(false)
	m.ClientConnected("frame", 1)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}
	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{
		MetricPersistWrites, MetricBridgeCommands, MetricBridgeDropped, MetricBridgeInbound,
		MetricEchoSuppressed, MetricScanResults, MetricStationArrivals, MetricSnapshots, MetricConnectedClients,
	} {
		if !found[name] {
			t.Errorf("metric %s not found in gathered metrics", name)
		}
	}

	if err := m.Register(reg); err == nil {
		t.Error("duplicate Register() should fail")
	}
}

func TestMetrics_Values(t *testing.T) {
	m := NewMetrics()
	m.PersistWrite(true)
	m.PersistWrite(true)
	m.PersistWrite(false)
	m.ClientConnected("ui", 1)
	m.ClientConnected("ui", 1)
	m.ClientConnected("ui", -1)

	if got := testutil.ToFloat64(m.persistWrites.WithLabelValues(ResultSuccess)); got != 2 {
		t.Errorf("success writes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.persistWrites.WithLabelValues(ResultFailure)); got != 1 {
		t.Errorf("failed writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.clients.WithLabelValues("ui")); got != 1 {
		t.Errorf("ui clients = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.PersistWrite(true)
	m.BridgeCommand("x", "y")
	m.EchoSuppressed("play")
	m.ClientConnected("frame", 1)
}

// Package metrics provides Prometheus collectors for the tour runtime.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricPersistWrites    = "hexentour_persist_writes_total"
	MetricBridgeCommands   = "hexentour_bridge_commands_total"
	MetricBridgeDropped    = "hexentour_bridge_commands_dropped_total"
	MetricBridgeInbound    = "hexentour_bridge_inbound_total"
	MetricEchoSuppressed   = "hexentour_echo_suppressed_total"
	MetricScanResults      = "hexentour_scan_results_total"
	MetricStationArrivals  = "hexentour_station_arrivals_total"
	MetricSnapshots        = "hexentour_snapshots_total"
	MetricConnectedClients = "hexentour_connected_clients"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	persistWrites   *prometheus.CounterVec
	bridgeCommands  *prometheus.CounterVec
	bridgeDropped   *prometheus.CounterVec
	bridgeInbound   *prometheus.CounterVec
	echoSuppressed  *prometheus.CounterVec
	scanResults     *prometheus.CounterVec
	stationArrivals *prometheus.CounterVec
	snapshots       *prometheus.CounterVec
	clients         *prometheus.GaugeVec
}

// NewMetrics creates unregistered collectors; call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		persistWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricPersistWrites, Help: "Progress writes to storage by result"},
			[]string{"result"},
		),
		bridgeCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricBridgeCommands, Help: "Commands sent to the AR surface by type and transport"},
			[]string{"type", "transport"},
		),
		bridgeDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricBridgeDropped, Help: "Commands dropped because no AR surface was reachable"},
			[]string{"type"},
		),
		bridgeInbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricBridgeInbound, Help: "Messages received from the AR surface by type"},
			[]string{"type"},
		),
		echoSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricEchoSuppressed, Help: "Inbound audio events ignored as echoes of local actions"},
			[]string{"event"},
		),
		scanResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricScanResults, Help: "QR scan outcomes"},
			[]string{"result"},
		),
		stationArrivals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricStationArrivals, Help: "Station arrivals by unlock method"},
			[]string{"method"},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: MetricSnapshots, Help: "AR snapshots stored by result"},
			[]string{"result"},
		),
		clients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: MetricConnectedClients, Help: "Connected websocket clients by channel"},
			[]string{"channel"},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.persistWrites,
		m.bridgeCommands,
		m.bridgeDropped,
		m.bridgeInbound,
		m.echoSuppressed,
		m.scanResults,
		m.stationArrivals,
		m.snapshots,
		m.clients,
	}
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

func (m *Metrics) PersistWrite(ok bool) {
	if m == nil {
		return
	}
	m.persistWrites.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) BridgeCommand(msgType, transport string) {
	if m == nil {
		return
	}
	m.bridgeCommands.WithLabelValues(msgType, transport).Inc()
}

func (m *Metrics) BridgeDropped(msgType string) {
	if m == nil {
		return
	}
	m.bridgeDropped.WithLabelValues(msgType).Inc()
}

func (m *Metrics) BridgeInbound(msgType string) {
	if m == nil {
		return
	}
	m.bridgeInbound.WithLabelValues(msgType).Inc()
}

func (m *Metrics) EchoSuppressed(ev string) {
	if m == nil {
		return
	}
	m.echoSuppressed.WithLabelValues(ev).Inc()
}

// ScanResult counts a scan outcome ("accepted", "mismatch", "invalid", "unlock").
func (m *Metrics) ScanResult(res string) {
	if m == nil {
		return
	}
	m.scanResults.WithLabelValues(res).Inc()
}

// StationArrival counts an arrival by method ("qr" or "gps").
func (m *Metrics) StationArrival(method string) {
	if m == nil {
		return
	}
	m.stationArrivals.WithLabelValues(method).Inc()
}

func (m *Metrics) Snapshot(ok bool) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(result(ok)).Inc()
}

// ClientConnected adjusts the connected-clients gauge for channel by delta.
func (m *Metrics) ClientConnected(channel string, delta float64) {
	if m == nil {
		return
	}
	m.clients.WithLabelValues(channel).Add(delta)
}

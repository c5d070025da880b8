// Package metrics exposes the node's chain state as Prometheus gauges and
// counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
)

// Metrics is the set of gauges/counters a node exposes on /metrics.
type Metrics struct {
	Height                    prometheus.Gauge
	Difficulty                prometheus.Gauge
	EntryDifficultyMultiplier prometheus.Gauge
	RejectedBlocks            *prometheus.CounterVec
}

// New registers and returns a Metrics bound to reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Height: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "padlockd_chain_height",
			Help: "Current height of the top accepted block.",
		}),
		Difficulty: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "padlockd_chain_difficulty",
			Help: "Current block difficulty target.",
		}),
		EntryDifficultyMultiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "padlockd_entry_difficulty_multiplier",
			Help: "Current entry-difficulty multiplier.",
		}),
		RejectedBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "padlockd_rejected_blocks_total",
			Help: "Blocks rejected by add_block, by error kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.Height, m.Difficulty, m.EntryDifficultyMultiplier, m.RejectedBlocks)
	return m
}

// Observe updates the gauges from the current chain-info.
func (m *Metrics) Observe(info database.ChainInfo) {
	m.Height.Set(float64(info.Height))
	m.Difficulty.Set(float64(info.Difficulty))
	m.EntryDifficultyMultiplier.Set(float64(info.EntryDifficultyMultiplier))
}

// RecordRejection increments the rejection counter for a ChainError kind.
func (m *Metrics) RecordRejection(kind database.ChainErrorKind) {
	m.RejectedBlocks.WithLabelValues(kind.String()).Inc()
}

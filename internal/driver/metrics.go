package driver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the factory counters. All methods are safe on a nil
// receiver.
type Metrics struct {
	OpensTotal              *prometheus.CounterVec
	MigrationAttemptsTotal  *prometheus.CounterVec
	MigrationSuccessesTotal *prometheus.CounterVec
	RekeysTotal             *prometheus.CounterVec
	OpenConnections         *prometheus.GaugeVec
}

// NewMetrics registers the factory metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OpensTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipherdb_opens_total",
				Help: "Total number of database opens",
			},
			[]string{"db", "result"}, // success, failure
		),
		MigrationAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipherdb_migration_attempts_total",
				Help: "Total number of encryption migration attempts",
			},
			[]string{"db"},
		),
		MigrationSuccessesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipherdb_migration_successes_total",
				Help: "Total number of successful encryption migrations",
			},
			[]string{"db"},
		),
		RekeysTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cipherdb_rekeys_total",
				Help: "Total number of completed rekeys",
			},
			[]string{"db"},
		),
		OpenConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cipherdb_open_connections",
				Help: "Number of open connections",
			},
			[]string{"db"},
		),
	}
}

func (m *Metrics) open(db string, ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.OpensTotal.WithLabelValues(db, result).Inc()
}

func (m *Metrics) migrationAttempt(db string) {
	if m != nil {
		m.MigrationAttemptsTotal.WithLabelValues(db).Inc()
	}
}

func (m *Metrics) migrationSuccess(db string) {
	if m != nil {
		m.MigrationSuccessesTotal.WithLabelValues(db).Inc()
	}
}

func (m *Metrics) rekey(db string) {
	if m != nil {
		m.RekeysTotal.WithLabelValues(db).Inc()
	}
}

func (m *Metrics) connections(db string, delta float64) {
	if m != nil {
		m.OpenConnections.WithLabelValues(db).Add(delta)
	}
}

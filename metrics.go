package dbutils

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	helperAttach = "attach"
	helperToMap  = "to_map"
	helperSkinny = "skinny"
	helperOffset = "offset"
	helperRange  = "range"
)

//Metrics counts the round trips and rows of the helpers. Pass it to a call with WithMetrics.
type Metrics struct {
	Queries *prometheus.CounterVec
	Rows    *prometheus.CounterVec
}

//NewMetrics creates unregistered collectors under namespace
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dbutils",
			Name:      "queries_total",
			Help:      "Queries issued by dbutils helpers",
		}, []string{"helper"}),
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dbutils",
			Name:      "rows_total",
			Help:      "Rows loaded by dbutils helpers",
		}, []string{"helper"}),
	}
}

//Register registers the collectors on reg, or the default registerer if reg is nil. Collectors that are already
//registered are not an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{m.Queries, m.Rows} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

func (m *Metrics) query(helper string) {
	if m == nil {
		return
	}
	m.Queries.WithLabelValues(helper).Inc()
}

func (m *Metrics) rows(helper string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Rows.WithLabelValues(helper).Add(float64(n))
}

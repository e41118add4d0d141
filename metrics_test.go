package dbutils

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("should register once", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewMetrics("app")

		require.NoError(t, m.Register(reg))
		require.NoError(t, m.Register(reg), "registering again is not an error")

		m.query(helperRange)
		m.rows(helperRange, 10)

		count, err := testutil.GatherAndCount(reg, "app_dbutils_queries_total", "app_dbutils_rows_total")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, float64(10), testutil.ToFloat64(m.Rows.WithLabelValues(helperRange)))
	})

	t.Run("should ignore nil metrics", func(t *testing.T) {
		var m *Metrics
		assert.NotPanics(t, func() {
			m.query(helperAttach)
			m.rows(helperAttach, 3)
		})
	})
}

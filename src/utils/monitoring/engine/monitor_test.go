package monitor_engine

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCollectorExportsCounters(t *testing.T) {
	monitor := NewMonitor()
	monitor.GetReport().Workflow.State.TendersPaid.Add(3)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(monitor.GetPrometheusCollector()))

	families, err := registry.Gather()
	require.NoError(t, err)

	var found bool
	for _, family := range families {
		if family.GetName() != "workflow_tenders_paid" {
			continue
		}
		found = true
		require.Len(t, family.GetMetric(), 1)
		require.Equal(t, float64(3), family.GetMetric()[0].GetCounter().GetValue())
	}
	require.True(t, found)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	monitor := NewMonitor()

	router := gin.New()
	router.GET("/health", monitor.OnGetHealth)

	get := func() int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		return w.Code
	}

	require.Equal(t, http.StatusOK, get())

	// Lost audit records make the instance unhealthy
	monitor.GetReport().History.State.RecordsDropped.Inc()
	require.Equal(t, http.StatusServiceUnavailable, get())
}

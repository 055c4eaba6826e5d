package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsSuccessAndFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("pos:sale_receipt").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("pos:sale_receipt").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("pos:sale_receipt", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("pos:sale_receipt", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("pos:sale_receipt")))
}

func TestCountersIgnoreEmptyInput(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.AddReceipt("")
	metrics.AddReceipt("sale")
	metrics.AddPurged(0)
	metrics.AddPurged(3)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.receipts.WithLabelValues("sale")))
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.purged))
}

func TestNilMetricsTrackerIsNoop(t *testing.T) {
	var metrics *Metrics
	require.NoError(t, metrics.Track("job").End(nil))
	metrics.AddReceipt("sale")
	metrics.AddPurged(1)
}

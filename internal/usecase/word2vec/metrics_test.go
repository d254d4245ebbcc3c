package word2vec

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/modeld/internal/metrics"
)

func gaugeValue(t *testing.T, provider string) float64 {
	t.Helper()
	return testutil.ToFloat64(metrics.EmbedderLoaded.WithLabelValues(provider))
}

package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterPipelineMetrics_Idempotent(t *testing.T) {
	RegisterPipelineMetrics()
	RegisterPipelineMetrics()

	err := prometheus.Register(BulkItemsTotal)
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		t.Fatalf("expected AlreadyRegisteredError, got %v", err)
	}
}

func TestUpdatesTotal_Labels(t *testing.T) {
	before := testutil.ToFloat64(UpdatesTotal.WithLabelValues("ratings", StatusOK))
	UpdatesTotal.WithLabelValues("ratings", StatusOK).Inc()
	after := testutil.ToFloat64(UpdatesTotal.WithLabelValues("ratings", StatusOK))
	if after-before != 1 {
		t.Errorf("expected increment of 1, got %f", after-before)
	}
}

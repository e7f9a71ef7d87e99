package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gatherCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		require.NotEmpty(t, family.Metric)
		return family.Metric[0].GetCounter().GetValue()
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestPipelineMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.IncOrdersCreated()
	m.IncOrdersCreated()
	m.IncSettlements()
	m.IncLabelsPurchased()
	m.IncSubscriptionsActivated()

	require.Equal(t, float64(2), gatherCounter(t, reg, "orders_created_total"))
	require.Equal(t, float64(1), gatherCounter(t, reg, "settlements_total"))
	require.Equal(t, float64(1), gatherCounter(t, reg, "shipping_labels_purchased_total"))
	require.Equal(t, float64(1), gatherCounter(t, reg, "subscriptions_activated_total"))
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.IncOrdersCreated()
	m.IncSettlements()

	unregistered := NewPipelineMetrics(nil)
	unregistered.IncLabelsPurchased()
}

func TestCronJobMetricsLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("subscription-expiry", 250*time.Millisecond)
	m.IncSuccess("subscription-expiry")
	m.IncFailure("")

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, family := range families {
		byName[family.GetName()] = family
	}

	success := byName["cron_job_success_total"]
	require.NotNil(t, success)
	require.Equal(t, "subscription-expiry", success.Metric[0].GetLabel()[0].GetValue())

	failure := byName["cron_job_failure_total"]
	require.NotNil(t, failure)
	require.Equal(t, "unknown", failure.Metric[0].GetLabel()[0].GetValue())

	duration := byName["cron_job_duration_seconds"]
	require.NotNil(t, duration)
	require.Equal(t, uint64(1), duration.Metric[0].GetHistogram().GetSampleCount())
}

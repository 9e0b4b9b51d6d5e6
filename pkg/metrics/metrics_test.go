package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterCollectors(reg)

	FinalizeResults.WithLabelValues("ok").Inc()
	PinAttempts.WithLabelValues("incorrect_pin").Add(2)
	SigningDuration.Observe(0.2)

	require.Equal(t, 1.0, testutil.ToFloat64(FinalizeResults.WithLabelValues("ok")))
	require.Equal(t, 2.0, testutil.ToFloat64(PinAttempts.WithLabelValues("incorrect_pin")))
	require.Equal(t, 1, testutil.CollectAndCount(SigningDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["tandatangan_finalize_results_total"])
	require.True(t, names["tandatangan_pin_attempts_total"])
	require.True(t, names["tandatangan_pdf_signing_duration_seconds"])

	require.Panics(t, func() { RegisterCollectors(reg) })
}

package engine

import (
	"context"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/chargedesk/internal/metrics"
	"github.com/Veraticus/chargedesk/internal/model"
)

func TestDeskRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testConfig(), shiftRecords()...)

	submitted := promtest.ToFloat64(metrics.RecordsSubmitted)
	charged := promtest.ToFloat64(metrics.Transitions.WithLabelValues("Pending", "Charged"))
	malformed := promtest.ToFloat64(metrics.MalformedCharges)

	rec, err := f.desk.Submit(ctx, validSubmission())
	require.NoError(t, err)
	_, err = f.desk.Approve(ctx, rec.ID)
	require.NoError(t, err)
	_, err = f.desk.NightTotal(ctx, "")
	require.NoError(t, err)

	assert.InDelta(t, submitted+1, promtest.ToFloat64(metrics.RecordsSubmitted), 0)
	assert.InDelta(t, charged+1, promtest.ToFloat64(metrics.Transitions.WithLabelValues("Pending", "Charged")), 0)
	assert.InDelta(t, malformed+1, promtest.ToFloat64(metrics.MalformedCharges), 0)
	assert.Equal(t, model.StatusCharged, mustFind(t, f, rec.ID).Status)
}

func mustFind(t *testing.T, f *fixture, id string) model.Record {
	t.Helper()
	rec, err := f.desk.Find(context.Background(), id)
	require.NoError(t, err)
	return rec
}

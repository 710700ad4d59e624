package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestWatermarksIgnoreZeroTime(t *testing.T) {
	ts := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	RecordWebhookReceived(ts)
	RecordWebhookReceived(time.Time{})
	RecordActivityCredited(ts.Add(time.Minute))

	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(watermark.WithLabelValues(stageWebhook)))
	require.Equal(t, float64(ts.Add(time.Minute).Unix()), testutil.ToFloat64(watermark.WithLabelValues(stageCredit)))
}

package drift

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/pulse/internal/domain"
	testingutil "github.com/aristath/pulse/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminNotifier_LogsWithoutAdmin(t *testing.T) {
	logs, log := testingutil.NewLogCapture()
	sink := testingutil.NewMockNotificationSink()
	threshold := 0.2

	n := NewAdminNotifier(sink, "", log)
	err := n.NotifyDrift(context.Background(), domain.DriftReport{
		ModelID: "lstm-v3", DriftScore: 0.42, Threshold: &threshold, FeaturesDrifted: []string{"rsi"},
	})
	require.NoError(t, err)

	assert.Empty(t, sink.Notifications())
	warns := logs.Level(t, "warn")
	require.Len(t, warns, 1)
	assert.Equal(t, "lstm-v3", warns[0]["model_id"])
	assert.Equal(t, 0.42, warns[0]["drift_score"])
	assert.Equal(t, 0.2, warns[0]["threshold"])
}

func TestAdminNotifier_NotifiesAdminUser(t *testing.T) {
	_, log := testingutil.NewLogCapture()
	sink := testingutil.NewMockNotificationSink()
	threshold := 0.2

	n := NewAdminNotifier(sink, "admin", log)
	err := n.NotifyDrift(context.Background(), domain.DriftReport{
		ModelID: "lstm-v3", DriftScore: 0.42, Threshold: &threshold, FeaturesDrifted: []string{"rsi", "volume"},
	})
	require.NoError(t, err)

	got := sink.ByType(domain.NotificationModelDrift)
	require.Len(t, got, 1)
	assert.Equal(t, "admin", got[0].UserID)
	assert.Equal(t, domain.NotificationPriorityHigh, got[0].Priority)
	assert.Equal(t, "Drift score 0.420 exceeds threshold 0.200 (features: rsi, volume)", got[0].Message)
	assert.Equal(t, []string{"rsi", "volume"}, got[0].Data["features_drifted"])
}

func TestAdminNotifier_ReportsUndeliveredNotification(t *testing.T) {
	_, log := testingutil.NewLogCapture()
	sink := testingutil.NewMockNotificationSink()
	sink.SetFail(true)

	err := NewAdminNotifier(sink, "admin", log).NotifyDrift(context.Background(), domain.DriftReport{ModelID: "m"})
	assert.Error(t, err)
}

func TestRetrainingTrigger_Cooldown(t *testing.T) {
	logs, log := testingutil.NewLogCapture()
	clock := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	r := NewRetrainingTrigger(time.Hour, log)
	r.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, r.TriggerRetraining(ctx, "m1", "drift"))
	clock = clock.Add(30 * time.Minute)
	require.NoError(t, r.TriggerRetraining(ctx, "m1", "drift"))
	require.NoError(t, r.TriggerRetraining(ctx, "m2", "drift"))

	infos := logs.Level(t, "info")
	require.Len(t, infos, 2)
	assert.Equal(t, "m1", infos[0]["model_id"])
	assert.Equal(t, "m2", infos[1]["model_id"])

	clock = clock.Add(31 * time.Minute)
	require.NoError(t, r.TriggerRetraining(ctx, "m1", "drift"))
	assert.Len(t, logs.Level(t, "info"), 3)

	last, ok := r.Requested("m1")
	assert.True(t, ok)
	assert.Equal(t, clock, last)
}

func TestRetrainingTrigger_CancelledContext(t *testing.T) {
	_, log := testingutil.NewLogCapture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetrainingTrigger(0, log)
	assert.ErrorIs(t, r.TriggerRetraining(ctx, "m1", "drift"), context.Canceled)
	_, ok := r.Requested("m1")
	assert.False(t, ok)
}

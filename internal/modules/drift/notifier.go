// Package drift escalates detected model drift to operators and the
// retraining pipeline.
package drift

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/pulse/internal/domain"
	"github.com/rs/zerolog"
)

// AdminNotifier logs drift reports and, when an admin user is configured,
// files a high-priority notification for them.
type AdminNotifier struct {
	sink        domain.NotificationSink
	adminUserID string
	log         zerolog.Logger
}

// NewAdminNotifier creates an admin notifier. sink may be nil and adminUserID
// empty, in which case reports are only logged.
func NewAdminNotifier(sink domain.NotificationSink, adminUserID string, log zerolog.Logger) *AdminNotifier {
	return &AdminNotifier{
		sink:        sink,
		adminUserID: adminUserID,
		log:         log.With().Str("component", "admin_notifier").Logger(),
	}
}

// NotifyDrift records the report for operators
func (n *AdminNotifier) NotifyDrift(ctx context.Context, report domain.DriftReport) error {
	evt := n.log.Warn().
		Str("model_id", report.ModelID).
		Float64("drift_score", report.DriftScore).
		Strs("features_drifted", report.FeaturesDrifted)
	if report.Threshold != nil {
		evt = evt.Float64("threshold", *report.Threshold)
	}
	evt.Msg("Model drift reported to administrators")

	if n.sink == nil || n.adminUserID == "" {
		return nil
	}

	data := map[string]interface{}{
		"model_id":    report.ModelID,
		"drift_score": report.DriftScore,
	}
	if report.Threshold != nil {
		data["threshold"] = *report.Threshold
	}
	if len(report.FeaturesDrifted) > 0 {
		data["features_drifted"] = report.FeaturesDrifted
	}

	id := n.sink.Create(ctx, domain.Notification{
		UserID:   n.adminUserID,
		Type:     domain.NotificationModelDrift,
		Title:    fmt.Sprintf("Model drift: %s", report.ModelID),
		Message:  driftMessage(report),
		Data:     data,
		Priority: domain.NotificationPriorityHigh,
	})
	if id == "" {
		return fmt.Errorf("drift notification for model %s was not delivered", report.ModelID)
	}
	return nil
}

func driftMessage(report domain.DriftReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Drift score %.3f", report.DriftScore)
	if report.Threshold != nil {
		fmt.Fprintf(&b, " exceeds threshold %.3f", *report.Threshold)
	}
	if len(report.FeaturesDrifted) > 0 {
		fmt.Fprintf(&b, " (features: %s)", strings.Join(report.FeaturesDrifted, ", "))
	}
	return b.String()
}

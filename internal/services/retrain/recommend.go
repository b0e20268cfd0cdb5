package retrain

import (
	"fmt"
	"time"

	"TradePilot/internal/domain/models"
	xutil "TradePilot/pkg/util"
)

const (
	recommendHealthFloor = 70
	recommendMaxAge      = 30 * 24 * time.Hour
)

// Recommend inspects one model's persisted metadata and returns every
// reason retraining is warranted. Reasons are independent; a model can
// accumulate several at once. A nil meta means no model exists for the key.
func Recommend(key models.ModelKey, meta *models.BundleMeta, now time.Time) []models.RetrainRecommendation {
	if meta == nil {
		return []models.RetrainRecommendation{{
			ModelKey: key.String(),
			Priority: models.PriorityHigh,
			Reason:   "no model exists for this key",
		}}
	}

	var recs []models.RetrainRecommendation
	add := func(priority, reason string) {
		recs = append(recs, models.RetrainRecommendation{
			ModelKey: key.String(), Priority: priority, Reason: reason,
		})
	}

	if meta.HealthScore < recommendHealthFloor {
		add(models.PriorityHigh, fmt.Sprintf("health score %d below %d", meta.HealthScore, recommendHealthFloor))
	}
	if age, ok := modelAge(meta, now); ok && age > recommendMaxAge {
		add(models.PriorityMedium, fmt.Sprintf("model is %d days old", int(age.Hours()/24)))
	}
	if meta.ConfidenceCorrelation < 0 {
		add(models.PriorityCritical, fmt.Sprintf("confidence correlation is negative (%.3f)", meta.ConfidenceCorrelation))
	}
	return recs
}

func modelAge(meta *models.BundleMeta, now time.Time) (time.Duration, bool) {
	stamp := meta.LastRetrained
	if stamp == "" {
		stamp = meta.TrainingDate
	}
	// Older bundles carried unix-second timestamps; ParseTime accepts both.
	t, ok := xutil.ParseTime(stamp)
	if !ok {
		return 0, false
	}
	return now.Sub(t), true
}

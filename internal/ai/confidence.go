package ai

import (
	"context"
	"fmt"
	"math"
	"time"

	"eisenplan/internal/repository"
)

const (
	// feedbackWindowDays bounds the correction history consulted when
	// recalibrating confidence.
	feedbackWindowDays = 90
	// maxCorrectionPenalty caps how much correction history can
	// depress a score.
	maxCorrectionPenalty = 0.5
)

// Recalibrator adjusts raw classifier confidence using two signals:
// how close the scores sit to the 0.5 decision boundary, and how often
// the user has historically corrected the predicted quadrant.
type Recalibrator struct {
	feedback *repository.FeedbackRepository
	now      func() time.Time
}

func NewRecalibrator(feedback *repository.FeedbackRepository, now func() time.Time) *Recalibrator {
	if now == nil {
		now = time.Now
	}
	return &Recalibrator{feedback: feedback, now: now}
}

// Recalculate returns a copy of results with adjusted confidence.
func (r *Recalibrator) Recalculate(ctx context.Context, userID string, results []ClassifyResult) ([]ClassifyResult, error) {
	since := r.now().AddDate(0, 0, -feedbackWindowDays)
	history, err := r.feedback.ListSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("load feedback history: %w", err)
	}

	corrections := make(map[string]int)
	for _, f := range history {
		if f.AIQuadrant != f.FinalQuadrant {
			corrections[string(f.AIQuadrant)]++
		}
	}

	out := make([]ClassifyResult, len(results))
	for i, res := range results {
		// Scores near the 0.5 boundary are inherently less certain.
		impMargin := math.Abs(res.Importance - 0.5)
		urgMargin := math.Abs(res.Urgency - 0.5)
		marginFactor := 0.5 + (impMargin+urgMargin)/2

		penalty := 0.0
		if count := corrections[string(res.Quadrant)]; count > 0 {
			penalty = math.Min(maxCorrectionPenalty, math.Log2(float64(count+1))/6)
		}

		res.Confidence = math.Round(res.Confidence*marginFactor*(1-penalty)*1000) / 1000
		out[i] = res
	}
	return out, nil
}

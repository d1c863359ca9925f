// Package ai adapts the external classification service. The rest of
// the core only sees the Classifier interface; a failed or malformed
// response fails the whole batch with no partial acceptance.
package ai

import (
	"context"
	"fmt"

	"eisenplan/internal/model"
	"eisenplan/internal/parse"
)

// ClassifyInput is one task submitted for classification.
type ClassifyInput struct {
	ID      string       `json:"id"`
	RawText string       `json:"rawText"`
	Hints   *parse.Hints `json:"hints,omitempty"`
}

// ClassifyResult is the classifier's judgment for one task.
type ClassifyResult struct {
	ID         string
	Importance float64
	Urgency    float64
	Quadrant   model.Quadrant
	Confidence float64
	Reason     string
}

// Classifier scores a batch of tasks on the Eisenhower axes.
type Classifier interface {
	Classify(ctx context.Context, tasks []ClassifyInput, customPrompt string) ([]ClassifyResult, error)
}

// validateResults checks ids, clamps scores, and corrects quadrants the
// model got inconsistent with its own scores.
func validateResults(inputs []ClassifyInput, raw []rawItem) ([]ClassifyResult, error) {
	known := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		known[in.ID] = struct{}{}
	}

	results := make([]ClassifyResult, 0, len(raw))
	for _, item := range raw {
		if _, ok := known[item.ID]; !ok {
			return nil, fmt.Errorf("classifier returned unknown task id %q", item.ID)
		}

		importance := clamp01(item.Importance)
		urgency := clamp01(item.Urgency)

		quadrant := model.Quadrant(item.Quadrant)
		if !quadrant.Valid() {
			quadrant = model.QuadrantFromScores(importance, urgency)
		}

		reason := item.Reason
		if len(reason) > maxReasonLen {
			reason = reason[:maxReasonLen]
		}

		results = append(results, ClassifyResult{
			ID:         item.ID,
			Importance: importance,
			Urgency:    urgency,
			Quadrant:   quadrant,
			Confidence: clamp01(item.Confidence),
			Reason:     reason,
		})
	}
	return results, nil
}

const maxReasonLen = 200

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

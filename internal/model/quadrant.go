package model

// Quadrant is an Eisenhower Matrix bucket.
type Quadrant string

const (
	QuadrantQ1 Quadrant = "Q1" // important + urgent
	QuadrantQ2 Quadrant = "Q2" // important, not urgent
	QuadrantQ3 Quadrant = "Q3" // urgent, not important
	QuadrantQ4 Quadrant = "Q4" // neither
)

func (q Quadrant) Valid() bool {
	switch q {
	case QuadrantQ1, QuadrantQ2, QuadrantQ3, QuadrantQ4:
		return true
	}
	return false
}

func (q Quadrant) Important() bool {
	return q == QuadrantQ1 || q == QuadrantQ2
}

func (q Quadrant) Urgent() bool {
	return q == QuadrantQ1 || q == QuadrantQ3
}

// QuadrantFromFlags maps the two user-confirmed booleans onto a quadrant.
func QuadrantFromFlags(important, urgent bool) Quadrant {
	switch {
	case important && urgent:
		return QuadrantQ1
	case important:
		return QuadrantQ2
	case urgent:
		return QuadrantQ3
	default:
		return QuadrantQ4
	}
}

// QuadrantFromScores maps AI importance/urgency scores onto a quadrant
// using the 0.5 decision boundary.
func QuadrantFromScores(importance, urgency float64) Quadrant {
	return QuadrantFromFlags(importance >= 0.5, urgency >= 0.5)
}

package token

// RugAssessment is the coarse rug-pull likelihood derived from a trust
// score. Presentation-layer enrichment, not a risk model.
type RugAssessment struct {
	RugProbability int    `json:"rugProbability"`
	RugLabel       string `json:"rugLabel"`
}

// AssessRug maps a trust score to its rug probability and label.
func AssessRug(trustScore int) RugAssessment {
	p := 100 - ClampScore(trustScore)
	label := "CRITICAL"
	switch {
	case p < 25:
		label = "LOW"
	case p < 50:
		label = "MEDIUM"
	case p < 75:
		label = "HIGH"
	}
	return RugAssessment{RugProbability: p, RugLabel: label}
}

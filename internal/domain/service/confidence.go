package service

import (
	"github.com/careloop/careloop/internal/domain/knowledge"
)

// DefaultConfidenceThreshold gates human review: responses scoring below it
// are drafted for approval instead of auto-sent.
const DefaultConfidenceThreshold = 0.80

// ScoreConfidence estimates how trustworthy a generated answer is, from the
// quality of knowledge retrieval and the health of the provider that
// produced it.
//
// Base confidence is 0.50. The top retrieval score selects a band:
// above 0.85 the score maps to min(0.95, 0.60+s*0.35), above 0.75 to
// 0.50+s*0.30, otherwise 0.50+s*0.20. Two or more results add 0.05, three
// or more a further 0.03 (each capped at 1.0). A static-fallback provider
// halves the result. The final value is clamped to [0,1].
func ScoreConfidence(results []knowledge.SearchResult, provider string) float64 {
	confidence := 0.50

	if len(results) > 0 {
		topScore := results[0].Score

		switch {
		case topScore > 0.85:
			confidence = min(0.95, 0.60+topScore*0.35)
		case topScore > 0.75:
			confidence = 0.50 + topScore*0.30
		default:
			confidence = 0.50 + topScore*0.20
		}

		if len(results) >= 2 {
			confidence = min(1.0, confidence+0.05)
		}
		if len(results) >= 3 {
			confidence = min(1.0, confidence+0.03)
		}
	}

	if provider == ProviderFallback {
		confidence *= 0.5
	}

	return max(0.0, min(1.0, confidence))
}

// RequiresApproval applies the gating rule. threshold <= 0 uses the default.
func RequiresApproval(confidence, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return confidence < threshold
}

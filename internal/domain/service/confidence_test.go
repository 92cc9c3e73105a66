package service

import (
	"math"
	"math/rand"
	"testing"

	"github.com/careloop/careloop/internal/domain/knowledge"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func results(scores ...float64) []knowledge.SearchResult {
	out := make([]knowledge.SearchResult, 0, len(scores))
	for _, s := range scores {
		out = append(out, knowledge.SearchResult{Score: s})
	}
	return out
}

func TestScoreConfidence_NoResults(t *testing.T) {
	got := ScoreConfidence(nil, "openai")
	if !almostEqual(got, 0.50) {
		t.Fatalf("expected base 0.50, got %v", got)
	}
}

func TestScoreConfidence_Bands(t *testing.T) {
	cases := []struct {
		topScore float64
		want     float64
	}{
		{0.50, 0.50 + 0.50*0.20}, // low band
		{0.75, 0.50 + 0.75*0.20}, // 0.75 stays in the low band
		{0.76, 0.50 + 0.76*0.30}, // middle band
		{0.85, 0.50 + 0.85*0.30}, // 0.85 stays in the middle band
		{0.86, 0.60 + 0.86*0.35}, // high band
		{1.00, 0.95},             // high band capped at 0.95
	}

	for _, tc := range cases {
		got := ScoreConfidence(results(tc.topScore), "openai")
		if !almostEqual(got, tc.want) {
			t.Fatalf("topScore %v: expected %v, got %v", tc.topScore, tc.want, got)
		}
	}
}

func TestScoreConfidence_MultiResultBonus(t *testing.T) {
	one := ScoreConfidence(results(0.80), "openai")
	two := ScoreConfidence(results(0.80, 0.70), "openai")
	three := ScoreConfidence(results(0.80, 0.70, 0.60), "openai")

	if !almostEqual(two, one+0.05) {
		t.Fatalf("two results should add 0.05: %v vs %v", one, two)
	}
	if !almostEqual(three, one+0.08) {
		t.Fatalf("three results should add 0.08: %v vs %v", one, three)
	}
}

func TestScoreConfidence_BonusCappedAtOne(t *testing.T) {
	got := ScoreConfidence(results(1.0, 0.99, 0.98), "openai")
	if !almostEqual(got, 1.0) {
		t.Fatalf("expected cap at 1.0, got %v", got)
	}
}

func TestScoreConfidence_FallbackHalves(t *testing.T) {
	got := ScoreConfidence(nil, ProviderFallback)
	if !almostEqual(got, 0.25) {
		t.Fatalf("expected 0.25 for fallback with no results, got %v", got)
	}

	withResults := ScoreConfidence(results(0.9, 0.8), ProviderFallback)
	want := (math.Min(0.95, 0.60+0.9*0.35) + 0.05) * 0.5
	if !almostEqual(withResults, want) {
		t.Fatalf("expected %v, got %v", want, withResults)
	}
}

func TestScoreConfidence_StrongRetrieval(t *testing.T) {
	// Top score 0.9 with two results: min(0.95, 0.60+0.9*0.35)+0.05 = 0.965.
	got := ScoreConfidence(results(0.9, 0.8), "openai")
	if !almostEqual(got, 0.965) {
		t.Fatalf("expected 0.965, got %v", got)
	}
}

func TestRequiresApproval_DefaultThreshold(t *testing.T) {
	if !RequiresApproval(0.79, 0) {
		t.Fatal("0.79 should require approval at the default threshold")
	}
	if RequiresApproval(0.80, 0) {
		t.Fatal("0.80 should not require approval at the default threshold")
	}
}

func TestRequiresApproval_CustomThreshold(t *testing.T) {
	if RequiresApproval(0.70, 0.65) {
		t.Fatal("0.70 should pass a 0.65 threshold")
	}
	if !RequiresApproval(0.70, 0.95) {
		t.Fatal("0.70 should fail a 0.95 threshold")
	}
}

func TestRequiresApproval_MatchesThresholdRule(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		n := rng.Intn(4)
		rs := make([]knowledge.SearchResult, 0, n)
		for j := 0; j < n; j++ {
			rs = append(rs, knowledge.SearchResult{Score: rng.Float64()})
		}
		provider := "openai"
		if rng.Intn(4) == 0 {
			provider = ProviderFallback
		}

		confidence := ScoreConfidence(rs, provider)
		if confidence < 0 || confidence > 1 {
			t.Fatalf("confidence out of range: %v", confidence)
		}
		if RequiresApproval(confidence, 0) != (confidence < DefaultConfidenceThreshold) {
			t.Fatalf("gating disagrees with threshold at confidence %v", confidence)
		}
	}
}

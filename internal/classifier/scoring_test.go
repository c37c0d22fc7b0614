package classifier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/risco/pkg/models"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		score       float64
		category    string
		probability int
		impact      int
	}{
		{0, models.RiskLow, 1, 2},
		{24.999, models.RiskLow, 1, 2},
		{25, models.RiskMedium, 2, 3},
		{49.99, models.RiskMedium, 2, 3},
		{50, models.RiskHigh, 4, 4},
		{74.9, models.RiskHigh, 4, 4},
		{75, models.RiskCritical, 5, 5},
		{100, models.RiskCritical, 5, 5},
	}
	for _, tt := range tests {
		category, probability, impact := Categorize(tt.score)
		assert.Equal(t, tt.category, category, "score %v", tt.score)
		assert.Equal(t, tt.probability, probability, "score %v", tt.score)
		assert.Equal(t, tt.impact, impact, "score %v", tt.score)
	}
}

func TestCategorize_EveryScoreMapsToOneCategory(t *testing.T) {
	for s := 0.0; s <= 100; s += 0.25 {
		category, p, i := Categorize(s)
		require.Contains(t, models.RiskCategories, category)
		assert.True(t, p >= 1 && p <= 5)
		assert.True(t, i >= 1 && i <= 5)
	}
}

func TestTopFactors_SortedByMagnitude(t *testing.T) {
	snap := models.FeatureSnapshot{
		ValueLog:     math.Log1p(1_500_000),
		DurationDays: 420,
		Category:     "obra",
	}
	factors := TopFactors([]float64{0.10, -0.30, 0.02, 0.05}, snap)

	require.Len(t, factors, 4)
	assert.Equal(t, FactorDuration, factors[0].Factor)
	assert.Equal(t, -0.30, factors[0].SignedImpact)
	assert.Equal(t, FactorValue, factors[1].Factor)
	assert.InDelta(t, 1_500_000, factors[1].RawValue, 0.01)
	assert.Equal(t, FactorModality, factors[2].Factor)
	assert.Equal(t, "unknown", factors[2].RawValue)
	assert.Equal(t, FactorCategory, factors[3].Factor)
}

func TestTopFactors_NaNRawValues(t *testing.T) {
	snap := models.FeatureSnapshot{ValueLog: math.NaN(), DurationDays: math.NaN()}
	factors := TopFactors([]float64{0.2, 0.1, 0, 0}, snap)
	require.Len(t, factors, 4)
	assert.Equal(t, 0.0, factors[0].RawValue)
	assert.Equal(t, 0.0, factors[1].RawValue)
}

func TestRecommend(t *testing.T) {
	t.Run("high risk gets mitigation and monitoring", func(t *testing.T) {
		recs := Recommend(models.RiskCritical, nil)
		require.Len(t, recs, 2)
		assert.Equal(t, "mitigation", recs[0].Type)
		assert.Equal(t, "monitoring", recs[1].Type)
		assert.Equal(t, "high", recs[1].Priority)
	})

	t.Run("strong value and duration factors", func(t *testing.T) {
		recs := Recommend(models.RiskHigh, []models.RiskFactor{
			{Factor: FactorValue, SignedImpact: 0.2},
			{Factor: FactorDuration, SignedImpact: -0.08},
		})
		types := make([]string, len(recs))
		for i, r := range recs {
			types[i] = r.Type
		}
		assert.Equal(t, []string{"mitigation", "monitoring", "planning", "schedule"}, types)
	})

	t.Run("weak factors on low risk fall back to routine monitoring", func(t *testing.T) {
		recs := Recommend(models.RiskLow, []models.RiskFactor{
			{Factor: FactorValue, SignedImpact: 0.05},
			{Factor: FactorCategory, SignedImpact: 0.4},
		})
		require.Len(t, recs, 1)
		assert.Equal(t, "monitoring", recs[0].Type)
		assert.Equal(t, "low", recs[0].Priority)
	})
}

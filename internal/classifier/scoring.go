package classifier

import (
	"math"
	"sort"

	"github.com/kiranshivaraju/risco/internal/features"
	"github.com/kiranshivaraju/risco/pkg/models"
)

// Factor names reported in top factors, aligned with the prepared columns.
const (
	FactorValue    = "estimated_value"
	FactorDuration = "execution_duration"
	FactorCategory = "object_category"
	FactorModality = "bidding_modality"
)

var factorNames = []string{FactorValue, FactorDuration, FactorCategory, FactorModality}

// MaxTopFactors caps the number of factors reported per prediction.
const MaxTopFactors = 5

// Attribution magnitudes above which a factor triggers its recommendation.
const (
	ValueImpactThreshold    = 0.05
	DurationImpactThreshold = 0.05
)

// Categorize maps a global score in [0,100] to its category, probability
// and impact. Bands are half-open on the right; 100 is critical.
func Categorize(score float64) (category string, probability, impact int) {
	switch {
	case math.IsNaN(score):
		return models.RiskLow, 1, 2
	case score < 25:
		return models.RiskLow, 1, 2
	case score < 50:
		return models.RiskMedium, 2, 3
	case score < 75:
		return models.RiskHigh, 4, 4
	default:
		return models.RiskCritical, 5, 5
	}
}

// TopFactors ranks features by absolute attribution and returns at most
// MaxTopFactors of them with their raw, human-readable values.
func TopFactors(contrib []float64, snap models.FeatureSnapshot) []models.RiskFactor {
	raw := []any{
		rawNumber(math.Expm1(snap.ValueLog)),
		rawNumber(snap.DurationDays),
		rawCategory(snap.Category),
		rawCategory(snap.Modality),
	}

	order := make([]int, len(contrib))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(contrib[order[a]]) > math.Abs(contrib[order[b]])
	})

	n := min(MaxTopFactors, len(order), len(factorNames))
	factors := make([]models.RiskFactor, 0, n)
	for _, idx := range order[:n] {
		factors = append(factors, models.RiskFactor{
			Factor:       factorNames[idx],
			SignedImpact: contrib[idx],
			RawValue:     raw[idx],
		})
	}
	return factors
}

// Recommend derives mitigation recommendations from the category and the
// attributions of the value and duration factors.
func Recommend(category string, factors []models.RiskFactor) []models.Recommendation {
	var recs []models.Recommendation

	if category == models.RiskHigh || category == models.RiskCritical {
		recs = append(recs,
			models.Recommendation{
				Type:        "mitigation",
				Description: "Realizar análise de viabilidade técnica e financeira detalhada",
				Priority:    "high",
			},
			models.Recommendation{
				Type:        "monitoring",
				Description: "Definir marcos de acompanhamento quinzenais",
				Priority:    "high",
			},
		)
	}

	for _, f := range factors {
		switch {
		case f.Factor == FactorValue && math.Abs(f.SignedImpact) > ValueImpactThreshold:
			recs = append(recs, models.Recommendation{
				Type:        "planning",
				Description: "Avaliar o parcelamento do objeto em lotes para reduzir o risco financeiro",
				Priority:    "medium",
			})
		case f.Factor == FactorDuration && math.Abs(f.SignedImpact) > DurationImpactThreshold:
			recs = append(recs, models.Recommendation{
				Type:        "schedule",
				Description: "Adicionar margem de segurança de 15% ao cronograma",
				Priority:    "medium",
			})
		}
	}

	if len(recs) == 0 {
		recs = append(recs, models.Recommendation{
			Type:        "monitoring",
			Description: "Manter acompanhamento mensal do fornecedor",
			Priority:    "low",
		})
	}
	return recs
}

func rawNumber(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func rawCategory(v string) string {
	if v == "" {
		return features.UnknownCategory
	}
	return v
}

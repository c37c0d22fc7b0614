package dataset

import (
	"math"
	"math/rand/v2"
)

// Vocabularies drawn by the synthetic generator.
var (
	SyntheticCategories = []string{"obra", "servico", "compra"}
	SyntheticModalities = []string{"pregao", "concorrencia", "dispensa"}
)

// Heuristic used to label synthetic rows. Each risk driver adds a fixed
// number of points; a row is high risk when the noisy score reaches
// syntheticThreshold.
const (
	syntheticValueLimit    = 1_000_000.0
	syntheticDurationLimit = 360
	syntheticValuePoints   = 30.0
	syntheticDurationPts   = 20.0
	syntheticWorksPoints   = 25.0
	syntheticNoise         = 5.0
	syntheticThreshold     = 45.0

	syntheticValueMu    = 13.0
	syntheticValueSigma = 1.1
	syntheticMinDays    = 30
	syntheticMaxDays    = 900
)

// GenerateSynthetic draws n labeled rows from a fixed generative process.
// The same seed always yields the same table.
func GenerateSynthetic(n int, seed uint64) *Table {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	table := NewTable(true)
	table.Rows = make([]Row, 0, max(n, 0))

	for i := 0; i < n; i++ {
		value := math.Exp(syntheticValueMu + syntheticValueSigma*rng.NormFloat64())
		days := syntheticMinDays + rng.IntN(syntheticMaxDays-syntheticMinDays)
		category := SyntheticCategories[rng.IntN(len(SyntheticCategories))]
		modality := SyntheticModalities[rng.IntN(len(SyntheticModalities))]

		score := HeuristicScore(value, float64(days), category)
		score += (rng.Float64()*2 - 1) * syntheticNoise

		label := 0
		if score >= syntheticThreshold {
			label = 1
		}
		table.Append(Row{
			ValueLog:     math.Log1p(value),
			DurationDays: float64(days),
			Category:     category,
			Modality:     modality,
			Label:        label,
		})
	}
	return table
}

// HeuristicScore is the noise-free synthetic risk score of a procurement.
func HeuristicScore(value, durationDays float64, category string) float64 {
	score := 0.0
	if value > syntheticValueLimit {
		score += syntheticValuePoints
	}
	if durationDays > syntheticDurationLimit {
		score += syntheticDurationPts
	}
	if category == "obra" {
		score += syntheticWorksPoints
	}
	return score
}

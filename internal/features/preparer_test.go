package features

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/risco/internal/dataset"
	"github.com/kiranshivaraju/risco/pkg/models"
)

func trainingTable() *dataset.Table {
	t := dataset.NewTable(true)
	t.Append(
		dataset.Row{ValueLog: 10, DurationDays: 100, Category: "obra", Modality: "pregao", Label: 1},
		dataset.Row{ValueLog: math.NaN(), DurationDays: 30, Category: "compra", Modality: "", Label: 0},
		dataset.Row{ValueLog: 12, DurationDays: math.NaN(), Category: "", Modality: "dispensa", Label: 0},
	)
	return t
}

func TestPreparer_FitTransform(t *testing.T) {
	p := NewPreparer(PolicyExtend)
	X, err := p.FitTransform(trainingTable())
	require.NoError(t, err)

	// categories sorted: compra, obra, unknown; modalities: dispensa, pregao, unknown
	assert.Equal(t, [][]float64{
		{10, 100, 1, 1},
		{0, 30, 0, 2},
		{12, 0, 2, 0},
	}, X)

	schema := p.Schema()
	require.Len(t, schema, 4)
	assert.Equal(t, dataset.ColValueLog, schema[0].Name)
	assert.False(t, schema[1].Categorical)
	assert.True(t, schema[2].Categorical)
	assert.Equal(t, 3, schema[2].Cardinality)
}

func TestPreparer_NotFitted(t *testing.T) {
	tests := []struct {
		name     string
		encoders map[string]*Encoder
	}{
		{"no encoders", nil},
		{"renamed key", map[string]*Encoder{
			"categoria":         NewEncoder(PolicyExtend),
			dataset.ColModality: NewEncoder(PolicyExtend),
		}},
		{"nil encoder", map[string]*Encoder{
			dataset.ColCategory: NewEncoder(PolicyExtend),
			dataset.ColModality: nil,
		}},
		{"unknown policy", map[string]*Encoder{
			dataset.ColCategory: NewEncoder("drop"),
			dataset.ColModality: NewEncoder(PolicyExtend),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPreparer(PolicyExtend)
			p.Encoders = tt.encoders
			_, err := p.Transform(trainingTable())
			assert.ErrorIs(t, err, ErrNotFitted)
			_, err = p.TransformSnapshot(models.FeatureSnapshot{Category: "obra"})
			assert.ErrorIs(t, err, ErrNotFitted)
		})
	}
}

func TestPreparer_Vocabulary(t *testing.T) {
	p := NewPreparer(PolicyExtend)
	p.Fit(trainingTable())
	_, err := p.TransformSnapshot(models.FeatureSnapshot{Category: "locacao", Modality: "pregao"})
	require.NoError(t, err)

	vocab := p.Vocabulary()
	assert.Equal(t, []string{"compra", "obra", "unknown", "locacao"}, vocab[dataset.ColCategory])
	assert.Equal(t, []string{"dispensa", "pregao", "unknown"}, vocab[dataset.ColModality])
}

func TestPreparer_UnseenCategoryNeverFails(t *testing.T) {
	for _, policy := range []UnknownCategoryPolicy{PolicyExtend, PolicySentinel} {
		t.Run(string(policy), func(t *testing.T) {
			p := NewPreparer(policy)
			p.Fit(trainingTable())

			snap := models.FeatureSnapshot{ValueLog: 11, DurationDays: 60, Category: "locacao", Modality: "leilao"}
			first, err := p.TransformSnapshot(snap)
			require.NoError(t, err)
			second, err := p.TransformSnapshot(snap)
			require.NoError(t, err)

			assert.Equal(t, first, second)
			assert.Equal(t, 3.0, first[2])
			assert.Equal(t, 3.0, first[3])
		})
	}
}

func TestPreparer_JSONRoundTrip(t *testing.T) {
	p := NewPreparer(PolicySentinel)
	p.Fit(trainingTable())

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var restored Preparer
	require.NoError(t, json.Unmarshal(raw, &restored))
	assert.Equal(t, PolicySentinel, restored.Policy())

	want, err := p.Transform(trainingTable())
	require.NoError(t, err)
	got, err := restored.Transform(trainingTable())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

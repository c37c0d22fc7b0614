package classifier

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/risco/internal/dataset"
	"github.com/kiranshivaraju/risco/internal/features"
)

func syntheticMatrix(t *testing.T, n int, seed uint64) ([][]float64, []int, []features.Feature) {
	t.Helper()
	table := dataset.GenerateSynthetic(n, seed)
	prep := features.NewPreparer(features.PolicySentinel)
	X, err := prep.FitTransform(table)
	require.NoError(t, err)
	return X, table.Labels(), prep.Schema()
}

func holdoutAUC(t *testing.T, b Backend) float64 {
	t.Helper()
	X, y, schema := syntheticMatrix(t, 400, 1)
	require.NoError(t, b.Fit(X, y, schema))

	testX, testY, _ := syntheticMatrix(t, 200, 2)
	scores := make([]float64, len(testX))
	for i, x := range testX {
		scores[i] = b.PredictProba(x)
		require.GreaterOrEqual(t, scores[i], 0.0)
		require.LessOrEqual(t, scores[i], 1.0)
	}
	auc, err := AUC(scores, testY)
	require.NoError(t, err)
	return auc
}

func TestForest_LearnsSyntheticHeuristic(t *testing.T) {
	f := NewForest(ForestOptions{Trees: 30, Seed: 3})
	assert.Greater(t, holdoutAUC(t, f), 0.9)
	assert.Len(t, f.Trees, 30)
}

func TestLogistic_LearnsSyntheticHeuristic(t *testing.T) {
	l := NewLogistic(DefaultLogisticOptions())
	assert.Greater(t, holdoutAUC(t, l), 0.85)
}

func TestForest_Deterministic(t *testing.T) {
	X, y, schema := syntheticMatrix(t, 200, 5)
	a := NewForest(ForestOptions{Trees: 10, Seed: 9})
	b := NewForest(ForestOptions{Trees: 10, Seed: 9})
	require.NoError(t, a.Fit(X, y, schema))
	require.NoError(t, b.Fit(X, y, schema))
	for _, x := range X[:20] {
		assert.Equal(t, a.PredictProba(x), b.PredictProba(x))
	}
}

func TestForest_ContributionsSumToPrediction(t *testing.T) {
	X, y, schema := syntheticMatrix(t, 200, 11)
	f := NewForest(ForestOptions{Trees: 15, Seed: 1})
	require.NoError(t, f.Fit(X, y, schema))

	// Saabas decomposition: bias + contributions == prediction
	bias := 0.0
	for _, tree := range f.Trees {
		bias += tree.Nodes[0].Value
	}
	bias /= float64(len(f.Trees))

	for _, x := range X[:10] {
		sum := bias
		for _, c := range f.Contributions(x) {
			sum += c
		}
		assert.InDelta(t, f.PredictProba(x), sum, 1e-9)
	}
}

func TestBalancedWeights(t *testing.T) {
	y := []int{0, 0, 0, 1}
	tests := []struct {
		name   string
		sample []int
		want   [2]float64
	}{
		{"imbalanced", []int{0, 1, 2, 3}, [2]float64{4.0 / 6, 2}},
		{"repeated draws", []int{3, 3, 0, 1}, [2]float64{1, 1}},
		{"single class", []int{0, 1, 2}, [2]float64{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := balancedWeights(y, tt.sample)
			assert.InDelta(t, tt.want[0], got[0], 1e-12)
			assert.InDelta(t, tt.want[1], got[1], 1e-12)
		})
	}
}

func TestForest_ClassWeightedLeaves(t *testing.T) {
	// 10% positives; the minority class must carry half the weight of
	// every bootstrap sample that contains both classes.
	X := make([][]float64, 100)
	y := make([]int, 100)
	for i := range X {
		X[i] = []float64{float64(i % 7), float64(i % 3), 0, 0}
		if i%10 == 0 {
			y[i] = 1
		}
	}
	f := NewForest(ForestOptions{Trees: 20, Seed: 5})
	require.NoError(t, f.Fit(X, y, nil))
	require.NoError(t, f.Validate(len(X[0])))

	checked := 0
	for _, tree := range f.Trees {
		root := tree.Nodes[0].Value
		if root == 0 || root == 1 {
			continue
		}
		assert.InDelta(t, 0.5, root, 1e-9)
		checked++
	}
	assert.Positive(t, checked)
}

func TestBackends_SurviveJSONRoundTrip(t *testing.T) {
	X, y, schema := syntheticMatrix(t, 150, 4)
	for _, kind := range []string{BackendForest, BackendLogistic} {
		t.Run(kind, func(t *testing.T) {
			factory, err := NewBackendFactory(kind, ForestOptions{Trees: 8, Seed: 2}, DefaultLogisticOptions())
			require.NoError(t, err)
			b := factory()
			require.NoError(t, b.Fit(X, y, schema))

			raw, err := json.Marshal(b)
			require.NoError(t, err)
			restored, err := decodeBackend(kind, raw)
			require.NoError(t, err)
			for _, x := range X[:10] {
				assert.InDelta(t, b.PredictProba(x), restored.PredictProba(x), 1e-12)
			}
		})
	}
}

func TestNewBackendFactory_UnknownKind(t *testing.T) {
	_, err := NewBackendFactory("xgboost", ForestOptions{}, LogisticOptions{})
	assert.Error(t, err)
}

func TestNewExplainer(t *testing.T) {
	forest := NewForest(ForestOptions{Trees: 2})
	e, err := NewExplainer(ExplainerTree, forest, nil)
	require.NoError(t, err)
	assert.Equal(t, ExplainerTree, e.Kind())

	// logistic has no decision paths
	e, err = NewExplainer(ExplainerTree, NewLogistic(LogisticOptions{}), []float64{0, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, ExplainerLinear, e.Kind())

	_, err = NewExplainer("shap", forest, nil)
	assert.Error(t, err)
}

func TestBaseline(t *testing.T) {
	X := [][]float64{{1, 0}, {3, 2}, {5, 2}}
	assert.Equal(t, []float64{3, 2}, Baseline(X, []bool{false, true}))
	assert.Nil(t, Baseline(nil, nil))
}

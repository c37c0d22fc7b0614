package classifier

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldCount(t *testing.T) {
	k, err := FoldCount([]int{0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 5, k)

	k, err = FoldCount([]int{0, 1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 4, k)

	_, err = FoldCount([]int{1, 1, 1, 1})
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = FoldCount([]int{1})
	assert.ErrorIs(t, err, ErrInsufficientData)

	// five folds need five rows of the minority class
	_, err = FoldCount([]int{0, 0, 0, 0, 0, 0, 0, 1, 1})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestStratifiedFolds_PartitionAndBalance(t *testing.T) {
	y := make([]int, 0, 50)
	for i := 0; i < 50; i++ {
		y = append(y, i%5/4) // 10 positives
	}
	folds := StratifiedFolds(y, 5, 7)
	require.Len(t, folds, 5)

	var all []int
	for _, f := range folds {
		pos := 0
		for _, i := range f {
			pos += y[i]
		}
		assert.Equal(t, 2, pos)
		all = append(all, f...)
	}
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	assert.Equal(t, folds, StratifiedFolds(y, 5, 7))
}

func TestAUC(t *testing.T) {
	auc, err := AUC([]float64{0.1, 0.2, 0.8, 0.9}, []int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, auc, 1e-9)

	auc, err = AUC([]float64{0.9, 0.8, 0.2, 0.1}, []int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, auc, 1e-9)

	auc, err = AUC([]float64{0.1, 0.4, 0.35, 0.8}, []int{0, 0, 1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, auc, 1e-9)

	_, err = AUC([]float64{0.1, 0.2}, []int{1, 1})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestMeanAUC(t *testing.T) {
	assert.Equal(t, 0.0, MeanAUC(nil))
	assert.InDelta(t, 0.9, MeanAUC([]float64{0.8, 1.0}), 1e-12)
}

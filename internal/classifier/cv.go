package classifier

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/kiranshivaraju/risco/internal/features"
)

// MaxFolds caps the number of cross-validation folds.
const MaxFolds = 5

// FoldCount returns k = min(MaxFolds, n) and validates that every class has
// at least k members, which stratified splitting requires.
func FoldCount(y []int) (int, error) {
	k := min(MaxFolds, len(y))
	if k < 2 {
		return 0, fmt.Errorf("%w: need at least 2 rows, got %d", ErrInsufficientData, len(y))
	}
	counts := map[int]int{}
	for _, v := range y {
		counts[v]++
	}
	if len(counts) < 2 {
		return 0, fmt.Errorf("%w: label has a single class", ErrInsufficientData)
	}
	for class, c := range counts {
		if c < k {
			return 0, fmt.Errorf("%w: %d folds need at least %d rows of class %d, got %d",
				ErrInsufficientData, k, k, class, c)
		}
	}
	return k, nil
}

// StratifiedFolds shuffles each class with seed and deals its rows
// round-robin into k folds, returning the test indices of each fold.
func StratifiedFolds(y []int, k int, seed uint64) [][]int {
	rng := rand.New(rand.NewPCG(seed, 0x5eed))
	byClass := map[int][]int{}
	for i, v := range y {
		byClass[v] = append(byClass[v], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	folds := make([][]int, k)
	next := 0
	for _, c := range classes {
		rows := byClass[c]
		rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		for _, r := range rows {
			folds[next%k] = append(folds[next%k], r)
			next++
		}
	}
	return folds
}

// AUC is the area under the ROC curve of scores against labels y.
func AUC(scores []float64, y []int) (float64, error) {
	if len(scores) != len(y) {
		return 0, fmt.Errorf("auc: %d scores for %d labels", len(scores), len(y))
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	sorted := make([]float64, len(scores))
	classes := make([]bool, len(scores))
	pos := 0
	for i, o := range order {
		sorted[i] = scores[o]
		classes[i] = y[o] == 1
		if classes[i] {
			pos++
		}
	}
	if pos == 0 || pos == len(y) {
		return 0, fmt.Errorf("auc: %w: fold holds a single class", ErrInsufficientData)
	}

	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// CrossValidate fits a fresh backend per fold and returns the fold AUCs.
func CrossValidate(X [][]float64, y []int, schema []features.Feature, k int, seed uint64, newBackend BackendFactory) ([]float64, error) {
	folds := StratifiedFolds(y, k, seed)
	aucs := make([]float64, 0, k)

	for f, test := range folds {
		inTest := make(map[int]bool, len(test))
		for _, i := range test {
			inTest[i] = true
		}
		trainX := make([][]float64, 0, len(X)-len(test))
		trainY := make([]int, 0, len(X)-len(test))
		for i := range X {
			if !inTest[i] {
				trainX = append(trainX, X[i])
				trainY = append(trainY, y[i])
			}
		}

		model := newBackend()
		if err := model.Fit(trainX, trainY, schema); err != nil {
			return nil, fmt.Errorf("fold %d: fit: %w", f, err)
		}
		scores := make([]float64, len(test))
		labels := make([]int, len(test))
		for i, idx := range test {
			scores[i] = model.PredictProba(X[idx])
			labels[i] = y[idx]
		}
		auc, err := AUC(scores, labels)
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f, err)
		}
		aucs = append(aucs, auc)
	}
	return aucs, nil
}

// MeanAUC averages fold AUCs.
func MeanAUC(aucs []float64) float64 {
	if len(aucs) == 0 {
		return 0
	}
	return stat.Mean(aucs, nil)
}

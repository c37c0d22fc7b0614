package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Explainer kinds.
const (
	ExplainerTree   = "tree"
	ExplainerLinear = "linear"
)

// Explainer attributes one prediction to its input features. Attributions
// are signed: positive values push towards high risk.
type Explainer interface {
	Kind() string
	Explain(x []float64) []float64
}

// pathContributor is implemented by backends that can decompose a
// prediction along their decision paths.
type pathContributor interface {
	Contributions(x []float64) []float64
}

// NewExplainer builds the explainer for a fitted backend. A tree explainer
// requires a backend with decision paths; for any other backend the linear
// approximation is used instead.
func NewExplainer(kind string, backend Backend, baseline []float64) (Explainer, error) {
	switch kind {
	case ExplainerTree:
		if pc, ok := backend.(pathContributor); ok {
			return &TreePathExplainer{paths: pc}, nil
		}
		return &LinearExplainer{model: backend, Baseline: baseline}, nil
	case ExplainerLinear:
		return &LinearExplainer{model: backend, Baseline: baseline}, nil
	default:
		return nil, fmt.Errorf("unknown explainer %q: must be tree or linear", kind)
	}
}

// ValidateExplainerKind reports whether kind names a known explainer.
func ValidateExplainerKind(kind string) error {
	_, err := NewExplainer(kind, nil, nil)
	return err
}

// TreePathExplainer returns the exact decision-path decomposition of a
// tree ensemble.
type TreePathExplainer struct {
	paths pathContributor
}

func (e *TreePathExplainer) Kind() string { return ExplainerTree }

func (e *TreePathExplainer) Explain(x []float64) []float64 {
	return e.paths.Contributions(x)
}

// LinearExplainer is a first-order approximation that works for any
// backend: the attribution of feature j is the change in predicted
// probability when x[j] alone is reset to its training baseline.
type LinearExplainer struct {
	model    Backend
	Baseline []float64
}

func (e *LinearExplainer) Kind() string { return ExplainerLinear }

func (e *LinearExplainer) Explain(x []float64) []float64 {
	out := make([]float64, len(x))
	if e.model == nil {
		return out
	}
	full := e.model.PredictProba(x)
	reset := make([]float64, len(x))
	for j := range x {
		copy(reset, x)
		if j < len(e.Baseline) {
			reset[j] = e.Baseline[j]
		}
		out[j] = full - e.model.PredictProba(reset)
	}
	return out
}

// Baseline returns the reference row used by the linear explainer: column
// means for numeric features and the most frequent code for categorical ones.
func Baseline(X [][]float64, categorical []bool) []float64 {
	if len(X) == 0 {
		return nil
	}
	p := len(X[0])
	base := make([]float64, p)
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		if j < len(categorical) && categorical[j] {
			counts := map[float64]int{}
			best, bestCount := 0.0, -1
			for _, x := range X {
				counts[x[j]]++
			}
			for code, c := range counts {
				if c > bestCount || (c == bestCount && code < best) {
					best, bestCount = code, c
				}
			}
			base[j] = best
			continue
		}
		for i, x := range X {
			col[i] = x[j]
		}
		base[j] = stat.Mean(col, nil)
	}
	return base
}

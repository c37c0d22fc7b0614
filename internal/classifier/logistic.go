package classifier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kiranshivaraju/risco/internal/features"
)

// LogisticOptions configures the logistic regression backend.
type LogisticOptions struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	L2           float64 `json:"l2"`
}

// DefaultLogisticOptions returns the fallback backend settings.
func DefaultLogisticOptions() LogisticOptions {
	return LogisticOptions{Epochs: 500, LearningRate: 0.5, L2: 1e-3}
}

// Logistic is an L2-regularised logistic regression. Numeric columns are
// standardised and categorical columns one-hot encoded internally; codes at
// or above the fitted cardinality activate no indicator.
type Logistic struct {
	Options LogisticOptions    `json:"options"`
	Schema  []features.Feature `json:"schema"`
	Means   []float64          `json:"means"`
	Scales  []float64          `json:"scales"`
	Weights []float64          `json:"weights"`
	Bias    float64            `json:"bias"`
}

// NewLogistic returns an untrained logistic regression.
func NewLogistic(opts LogisticOptions) *Logistic {
	def := DefaultLogisticOptions()
	if opts.Epochs <= 0 {
		opts.Epochs = def.Epochs
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.L2 < 0 {
		opts.L2 = def.L2
	}
	return &Logistic{Options: opts}
}

func (l *Logistic) Kind() string { return BackendLogistic }

// Fit runs full-batch gradient descent from zero weights; it is deterministic.
func (l *Logistic) Fit(X [][]float64, y []int, schema []features.Feature) error {
	if len(X) == 0 {
		return ErrInsufficientData
	}
	l.Schema = schema
	if len(l.Schema) == 0 {
		l.Schema = make([]features.Feature, len(X[0]))
	}
	l.standardize(X)

	Z := make([][]float64, len(X))
	for i, x := range X {
		Z[i] = l.expand(x)
	}
	width := len(Z[0])
	l.Weights = make([]float64, width)
	l.Bias = 0

	n := float64(len(Z))
	grad := make([]float64, width)
	for epoch := 0; epoch < l.Options.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		for i, z := range Z {
			diff := sigmoid(floats.Dot(l.Weights, z)+l.Bias) - float64(y[i])
			for j, v := range z {
				grad[j] += diff * v
			}
			gradBias += diff
		}
		for j := range l.Weights {
			l.Weights[j] -= l.Options.LearningRate * (grad[j]/n + l.Options.L2*l.Weights[j])
		}
		l.Bias -= l.Options.LearningRate * gradBias / n
	}
	return nil
}

// PredictProba returns sigmoid(w·z + b) for the expanded row z.
func (l *Logistic) PredictProba(x []float64) float64 {
	if len(l.Weights) == 0 {
		return 0
	}
	return sigmoid(floats.Dot(l.Weights, l.expand(x)) + l.Bias)
}

// Validate checks that the stored schema, scalers and weights agree with
// each other and with a prepared row of the given width.
func (l *Logistic) Validate(width int) error {
	if len(l.Schema) != width {
		return fmt.Errorf("logistic schema has %d columns, want %d", len(l.Schema), width)
	}
	if len(l.Means) != width || len(l.Scales) != width {
		return errors.New("logistic scalers do not match schema")
	}
	expanded := 0
	for _, f := range l.Schema {
		switch {
		case !f.Categorical:
			expanded++
		case f.Cardinality < 0:
			return fmt.Errorf("logistic column %q has negative cardinality", f.Name)
		default:
			expanded += f.Cardinality
		}
	}
	if len(l.Weights) == 0 || len(l.Weights) != expanded {
		return fmt.Errorf("logistic has %d weights, want %d", len(l.Weights), expanded)
	}
	for j, scale := range l.Scales {
		if scale == 0 || math.IsNaN(scale) {
			return fmt.Errorf("logistic column %d has zero scale", j)
		}
	}
	return nil
}

func (l *Logistic) standardize(X [][]float64) {
	p := len(l.Schema)
	l.Means = make([]float64, p)
	l.Scales = make([]float64, p)
	col := make([]float64, len(X))
	for j := 0; j < p; j++ {
		if l.Schema[j].Categorical {
			l.Scales[j] = 1
			continue
		}
		for i, x := range X {
			col[i] = x[j]
		}
		l.Means[j], l.Scales[j] = stat.PopMeanStdDev(col, nil)
		if l.Scales[j] == 0 || math.IsNaN(l.Scales[j]) {
			l.Scales[j] = 1
		}
	}
}

func (l *Logistic) expand(x []float64) []float64 {
	z := make([]float64, 0, len(x)+8)
	for j, f := range l.Schema {
		if !f.Categorical {
			z = append(z, (x[j]-l.Means[j])/l.Scales[j])
			continue
		}
		onehot := make([]float64, f.Cardinality)
		if code := int(x[j]); code >= 0 && code < f.Cardinality {
			onehot[code] = 1
		}
		z = append(z, onehot...)
	}
	return z
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

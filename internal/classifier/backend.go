package classifier

import (
	"encoding/json"
	"fmt"

	"github.com/kiranshivaraju/risco/internal/features"
)

// Backend kinds.
const (
	BackendForest   = "forest"
	BackendLogistic = "logistic"
)

// Backend is a trainable binary classifier over prepared feature rows.
type Backend interface {
	// Kind returns the backend identifier stored in artifacts.
	Kind() string
	// Fit trains on X with labels y in {0,1}.
	Fit(X [][]float64, y []int, schema []features.Feature) error
	// PredictProba returns the probability of class 1 for one row.
	PredictProba(x []float64) float64
	// Validate reports whether a decoded model can score rows of width columns.
	Validate(width int) error
}

// BackendFactory returns a fresh, untrained backend.
type BackendFactory func() Backend

// NewBackendFactory resolves the backend kind once, at construction.
func NewBackendFactory(kind string, forest ForestOptions, logistic LogisticOptions) (BackendFactory, error) {
	switch kind {
	case BackendForest:
		return func() Backend { return NewForest(forest) }, nil
	case BackendLogistic:
		return func() Backend { return NewLogistic(logistic) }, nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q: must be forest or logistic", kind)
	}
}

func decodeBackend(kind string, raw json.RawMessage) (Backend, error) {
	var b Backend
	switch kind {
	case BackendForest:
		b = &Forest{}
	case BackendLogistic:
		b = &Logistic{}
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", kind)
	}
	if err := json.Unmarshal(raw, b); err != nil {
		return nil, fmt.Errorf("decode %s backend: %w", kind, err)
	}
	return b, nil
}

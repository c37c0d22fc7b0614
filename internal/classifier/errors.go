package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a table cannot support training.
	ErrInsufficientData = errors.New("insufficient training data")
	// ErrArtifactNotFound is returned by an ArtifactStore holding no artifact.
	ErrArtifactNotFound = errors.New("model artifact not found")
	// ErrModelUnavailable is returned when no model could be loaded or trained.
	ErrModelUnavailable = errors.New("risk model unavailable")
)

// TrainingQualityError rejects a candidate model whose mean cross-validated
// AUC is below the acceptance threshold. The candidate is never persisted.
type TrainingQualityError struct {
	MeanAUC   float64
	Threshold float64
	FoldAUCs  []float64
}

func (e *TrainingQualityError) Error() string {
	return fmt.Sprintf("training rejected: mean CV AUC %.4f below threshold %.2f", e.MeanAUC, e.Threshold)
}

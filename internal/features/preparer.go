// Package features turns procurement attributes into the fixed-width numeric
// matrix consumed by the risk classifier.
package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/kiranshivaraju/risco/internal/dataset"
	"github.com/kiranshivaraju/risco/pkg/models"
)

// UnknownCategory fills missing categorical values.
const UnknownCategory = "unknown"

// ErrNotFitted is returned when transforming with a preparer that has no
// fitted encoders.
var ErrNotFitted = errors.New("feature preparer not fitted")

var categoricalColumns = []string{dataset.ColCategory, dataset.ColModality}

// Feature describes one column of the prepared matrix.
type Feature struct {
	Name        string
	Categorical bool
	// Cardinality is the fitted vocabulary size for categorical columns.
	Cardinality int
}

// Preparer owns the categorical encoders of one model artifact.
type Preparer struct {
	Encoders map[string]*Encoder
	policy   UnknownCategoryPolicy
}

// NewPreparer returns an unfitted preparer.
func NewPreparer(policy UnknownCategoryPolicy) *Preparer {
	return &Preparer{policy: policy}
}

// Fit learns one encoder per categorical column from t.
func (p *Preparer) Fit(t *dataset.Table) {
	p.Encoders = make(map[string]*Encoder, len(categoricalColumns))
	for _, col := range categoricalColumns {
		values := make([]string, len(t.Rows))
		for i, r := range t.Rows {
			values[i] = categorical(r, col)
		}
		enc := NewEncoder(p.policy)
		enc.Fit(values)
		p.Encoders[col] = enc
	}
}

// Transform returns rows of [value_log, duration_days, category_code,
// modality_code]. NaN numerics become 0 and empty categories "unknown".
func (p *Preparer) Transform(t *dataset.Table) ([][]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	catEnc := p.Encoders[dataset.ColCategory]
	modEnc := p.Encoders[dataset.ColModality]

	X := make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		X[i] = []float64{
			numeric(r.ValueLog),
			numeric(r.DurationDays),
			float64(catEnc.Encode(categorical(r, dataset.ColCategory))),
			float64(modEnc.Encode(categorical(r, dataset.ColModality))),
		}
	}
	return X, nil
}

// Validate reports ErrNotFitted unless every categorical column has an
// encoder with a known policy.
func (p *Preparer) Validate() error {
	for _, col := range categoricalColumns {
		enc, ok := p.Encoders[col]
		if !ok || enc == nil {
			return fmt.Errorf("%w: no encoder for %s", ErrNotFitted, col)
		}
		if _, err := ParsePolicy(string(enc.Policy())); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotFitted, col, err)
		}
	}
	return nil
}

// Vocabulary returns the current classes of every categorical column.
func (p *Preparer) Vocabulary() map[string][]string {
	out := make(map[string][]string, len(p.Encoders))
	for col, enc := range p.Encoders {
		if enc != nil {
			out[col] = enc.Classes()
		}
	}
	return out
}

// FitTransform fits on t and transforms it.
func (p *Preparer) FitTransform(t *dataset.Table) ([][]float64, error) {
	p.Fit(t)
	return p.Transform(t)
}

// TransformSnapshot prepares a single inference sample.
func (p *Preparer) TransformSnapshot(s models.FeatureSnapshot) ([]float64, error) {
	t := dataset.NewTable(false)
	t.Append(RowFromSnapshot(s))
	X, err := p.Transform(t)
	if err != nil {
		return nil, err
	}
	return X[0], nil
}

// Schema describes the prepared columns in order.
func (p *Preparer) Schema() []Feature {
	schema := make([]Feature, 0, len(dataset.FeatureColumns))
	for _, col := range dataset.FeatureColumns {
		f := Feature{Name: col}
		if enc, ok := p.Encoders[col]; ok && enc != nil {
			f.Categorical = true
			f.Cardinality = enc.FittedSize()
		}
		schema = append(schema, f)
	}
	return schema
}

// Policy returns the unknown-category policy of new encoders.
func (p *Preparer) Policy() UnknownCategoryPolicy { return p.policy }

// RowFromSnapshot converts an inference snapshot into an unlabeled row.
func RowFromSnapshot(s models.FeatureSnapshot) dataset.Row {
	return dataset.Row{
		ValueLog:     s.ValueLog,
		DurationDays: s.DurationDays,
		Category:     s.Category,
		Modality:     s.Modality,
	}
}

func numeric(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func categorical(r dataset.Row, col string) string {
	v := r.Category
	if col == dataset.ColModality {
		v = r.Modality
	}
	if v == "" {
		return UnknownCategory
	}
	return v
}

type preparerJSON struct {
	Policy   UnknownCategoryPolicy `json:"policy"`
	Encoders map[string]*Encoder   `json:"encoders"`
}

// MarshalJSON writes the policy and fitted vocabularies.
func (p *Preparer) MarshalJSON() ([]byte, error) {
	return json.Marshal(preparerJSON{Policy: p.policy, Encoders: p.Encoders})
}

// UnmarshalJSON restores a preparer written by MarshalJSON.
func (p *Preparer) UnmarshalJSON(b []byte) error {
	var raw preparerJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.policy = raw.Policy
	p.Encoders = raw.Encoders
	return nil
}

// Package dataset assembles labeled training tables for the risk classifier,
// either from historical study/outcome pairs or from a synthetic generator.
package dataset

// Column names of a training table, in feature order followed by the label.
const (
	ColValueLog = "value_log"
	ColDuration = "duration_days"
	ColCategory = "object_category"
	ColModality = "bidding_modality"
	ColLabel    = "risco_alto"
)

// FeatureColumns are the model inputs in the fixed order used everywhere.
var FeatureColumns = []string{ColValueLog, ColDuration, ColCategory, ColModality}

// Row is one table row. Numeric fields are NaN and categorical fields are
// empty when the source attribute was missing.
type Row struct {
	ValueLog     float64
	DurationDays float64
	Category     string
	Modality     string
	Label        int
}

// Table is a column-typed set of rows. Labeled reports whether the label
// column is present.
type Table struct {
	Rows    []Row
	Labeled bool
}

// NewTable returns an empty table. Labeled tables carry the risco_alto column.
func NewTable(labeled bool) *Table {
	return &Table{Rows: []Row{}, Labeled: labeled}
}

// Columns returns the column names of t.
func (t *Table) Columns() []string {
	cols := append([]string{}, FeatureColumns...)
	if t.Labeled {
		cols = append(cols, ColLabel)
	}
	return cols
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Append adds rows to the table.
func (t *Table) Append(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Labels returns the label column. It returns nil for unlabeled tables.
func (t *Table) Labels() []int {
	if !t.Labeled {
		return nil
	}
	labels := make([]int, len(t.Rows))
	for i, r := range t.Rows {
		labels[i] = r.Label
	}
	return labels
}

// ClassCounts returns the number of rows per label value.
func (t *Table) ClassCounts() map[int]int {
	counts := make(map[int]int)
	if !t.Labeled {
		return counts
	}
	for _, r := range t.Rows {
		counts[r.Label]++
	}
	return counts
}

// HasLabelDiversity reports whether the table holds at least two label classes.
func (t *Table) HasLabelDiversity() bool {
	return len(t.ClassCounts()) >= 2
}

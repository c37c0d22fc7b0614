package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/kiranshivaraju/risco/pkg/models"
)

// AddendumRatioLimit is the share of the initial contract value above which
// addenda mark a contract as distressed.
const AddendumRatioLimit = 0.25

// OutcomeSource lists studies joined with their contract outcomes.
type OutcomeSource interface {
	ListStudyOutcomes(ctx context.Context) ([]models.StudyOutcome, error)
}

// Builder assembles training tables from historical outcomes.
type Builder struct {
	source OutcomeSource
	logger *slog.Logger
}

// NewBuilder creates a Builder reading from src.
func NewBuilder(src OutcomeSource, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{source: src, logger: logger}
}

// BuildHistorical returns one labeled row per study that has an outcome and
// at least one parseable numeric attribute. It returns an empty labeled
// table when nothing qualifies.
func (b *Builder) BuildHistorical(ctx context.Context) (*Table, error) {
	table := NewTable(true)
	if b.source == nil {
		return table, nil
	}

	pairs, err := b.source.ListStudyOutcomes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list study outcomes: %w", err)
	}

	skipped := 0
	for _, pair := range pairs {
		row, ok := RowFromOutcome(pair)
		if !ok {
			skipped++
			continue
		}
		table.Append(row)
	}

	b.logger.Info("historical dataset built",
		"rows", table.Len(),
		"skipped", skipped,
		"classes", len(table.ClassCounts()),
	)
	return table, nil
}

// RowFromOutcome converts a study/outcome pair into a labeled row. It
// reports false when the outcome is missing or the study has neither a
// parseable estimated value nor a parseable duration.
func RowFromOutcome(pair models.StudyOutcome) (Row, bool) {
	if pair.Outcome == nil {
		return Row{}, false
	}
	snap := SnapshotFromStudy(pair.Study)
	if math.IsNaN(snap.ValueLog) && math.IsNaN(snap.DurationDays) {
		return Row{}, false
	}
	return Row{
		ValueLog:     snap.ValueLog,
		DurationDays: snap.DurationDays,
		Category:     snap.Category,
		Modality:     snap.Modality,
		Label:        Label(pair.Outcome),
	}, true
}

// Label is 1 when the contract finished late or its addenda exceed
// AddendumRatioLimit of the initial value, else 0.
func Label(o *models.ContractOutcome) int {
	if o.PlannedEndDate != nil && o.ActualEndDate != nil && o.ActualEndDate.After(*o.PlannedEndDate) {
		return 1
	}
	if o.AddendumValue > AddendumRatioLimit*o.InitialValue {
		return 1
	}
	return 0
}

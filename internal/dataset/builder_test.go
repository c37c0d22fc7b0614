package dataset

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/risco/pkg/models"
)

type fakeOutcomes struct {
	pairs []models.StudyOutcome
	err   error
}

func (f fakeOutcomes) ListStudyOutcomes(_ context.Context) ([]models.StudyOutcome, error) {
	return f.pairs, f.err
}

func day(d int) *time.Time {
	t := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func pair(data map[string]any, outcome *models.ContractOutcome) models.StudyOutcome {
	return models.StudyOutcome{
		Study:   models.ProcurementStudy{ID: uuid.New(), Data: data},
		Outcome: outcome,
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name    string
		outcome models.ContractOutcome
		want    int
	}{
		{"on time, small addendum", models.ContractOutcome{InitialValue: 100, AddendumValue: 25, PlannedEndDate: day(10), ActualEndDate: day(10)}, 0},
		{"late", models.ContractOutcome{InitialValue: 100, PlannedEndDate: day(10), ActualEndDate: day(11)}, 1},
		{"addendum above limit", models.ContractOutcome{InitialValue: 100, AddendumValue: 25.01}, 1},
		{"dates missing", models.ContractOutcome{InitialValue: 100, ActualEndDate: day(20)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(&tt.outcome))
		})
	}
}

func TestBuildHistorical(t *testing.T) {
	src := fakeOutcomes{pairs: []models.StudyOutcome{
		pair(map[string]any{"valor_estimado": 100000.0, "categoria_objeto": "obra"},
			&models.ContractOutcome{InitialValue: 100000, PlannedEndDate: day(1), ActualEndDate: day(5)}),
		pair(map[string]any{"prazo_execucao_dias": 90},
			&models.ContractOutcome{InitialValue: 50000}),
		// no outcome
		pair(map[string]any{"valor_estimado": 10.0}, nil),
		// nothing numeric
		pair(map[string]any{"categoria_objeto": "compra"}, &models.ContractOutcome{}),
	}}

	table, err := NewBuilder(src, nil).BuildHistorical(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, table.Len())
	assert.True(t, table.Labeled)
	assert.Equal(t, []int{1, 0}, table.Labels())
	assert.True(t, table.HasLabelDiversity())
	assert.True(t, math.IsNaN(table.Rows[1].ValueLog))
	assert.Equal(t, 90.0, table.Rows[1].DurationDays)
}

func TestBuildHistorical_Empty(t *testing.T) {
	table, err := NewBuilder(fakeOutcomes{}, nil).BuildHistorical(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, []string{ColValueLog, ColDuration, ColCategory, ColModality, ColLabel}, table.Columns())
	assert.False(t, table.HasLabelDiversity())

	table, err = NewBuilder(nil, nil).BuildHistorical(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestBuildHistorical_SourceError(t *testing.T) {
	_, err := NewBuilder(fakeOutcomes{err: errors.New("boom")}, nil).BuildHistorical(context.Background())
	assert.Error(t, err)
}

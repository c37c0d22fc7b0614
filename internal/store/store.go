package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kiranshivaraju/risco/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// DB is the subset of *pgxpool.Pool used by the store. pgxmock pools satisfy
// it too.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetStudy(ctx context.Context, id uuid.UUID) (*models.ProcurementStudy, error)
	ListStudyOutcomes(ctx context.Context) ([]models.StudyOutcome, error)

	GetRiskAnalysisByStudy(ctx context.Context, studyID uuid.UUID) (*models.RiskAnalysis, error)
	UpsertRiskAnalysis(ctx context.Context, analysis *models.RiskAnalysis) (*models.RiskAnalysis, error)
	ListRiskAnalyses(ctx context.Context, orgID string) ([]*models.RiskAnalysis, error)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kiranshivaraju/risco/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a new PostgresStore over a pool.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// --- Studies ---

func (s *PostgresStore) GetStudy(ctx context.Context, id uuid.UUID) (*models.ProcurementStudy, error) {
	var (
		study models.ProcurementStudy
		data  []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, org_id, data, created_at FROM etps WHERE id = $1`, id,
	).Scan(&study.ID, &study.OrgID, &data, &study.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get study: %w", err)
	}
	if study.Data, err = decodeDocument(data); err != nil {
		return nil, fmt.Errorf("decode study %s: %w", id, err)
	}
	return &study, nil
}

// ListStudyOutcomes returns every study that has a contract outcome.
func (s *PostgresStore) ListStudyOutcomes(ctx context.Context) ([]models.StudyOutcome, error) {
	rows, err := s.db.Query(ctx,
		`SELECT e.id, e.org_id, e.data, e.created_at,
		        c.id, c.initial_value, c.addendum_value, c.planned_end_date, c.actual_end_date
		 FROM etps e
		 JOIN contracts c ON c.etp_id = e.id
		 ORDER BY e.created_at, e.id`)
	if err != nil {
		return nil, fmt.Errorf("list study outcomes: %w", err)
	}
	defer rows.Close()

	var pairs []models.StudyOutcome
	for rows.Next() {
		var (
			study   models.ProcurementStudy
			outcome models.ContractOutcome
			data    []byte
		)
		if err := rows.Scan(&study.ID, &study.OrgID, &data, &study.CreatedAt,
			&outcome.ID, &outcome.InitialValue, &outcome.AddendumValue,
			&outcome.PlannedEndDate, &outcome.ActualEndDate); err != nil {
			return nil, fmt.Errorf("scan study outcome: %w", err)
		}
		if study.Data, err = decodeDocument(data); err != nil {
			return nil, fmt.Errorf("decode study %s: %w", study.ID, err)
		}
		outcome.StudyID = study.ID
		pairs = append(pairs, models.StudyOutcome{Study: study, Outcome: &outcome})
	}
	return pairs, rows.Err()
}

// --- Risk Analyses ---

const analysisColumns = `r.id, r.study_id, r.global_score, r.risk_category, r.probability, r.impact,
	r.top_factors, r.recommendations, r.model_version, r.confidence_score, r.computed_at`

func (s *PostgresStore) GetRiskAnalysisByStudy(ctx context.Context, studyID uuid.UUID) (*models.RiskAnalysis, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM risk_analyses r WHERE r.study_id = $1`, studyID)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get risk analysis: %w", err)
	}
	return a, nil
}

// UpsertRiskAnalysis inserts the analysis or overwrites the current one for
// the same study. The stored id of an existing record is kept and returned.
func (s *PostgresStore) UpsertRiskAnalysis(ctx context.Context, a *models.RiskAnalysis) (*models.RiskAnalysis, error) {
	factors, err := json.Marshal(nonNil(a.TopFactors))
	if err != nil {
		return nil, fmt.Errorf("encode top factors: %w", err)
	}
	recs, err := json.Marshal(nonNil(a.Recommendations))
	if err != nil {
		return nil, fmt.Errorf("encode recommendations: %w", err)
	}

	saved := *a
	err = WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO risk_analyses (id, study_id, global_score, risk_category, probability, impact,
			     top_factors, recommendations, model_version, confidence_score, computed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (study_id) DO UPDATE SET
			     global_score = EXCLUDED.global_score,
			     risk_category = EXCLUDED.risk_category,
			     probability = EXCLUDED.probability,
			     impact = EXCLUDED.impact,
			     top_factors = EXCLUDED.top_factors,
			     recommendations = EXCLUDED.recommendations,
			     model_version = EXCLUDED.model_version,
			     confidence_score = EXCLUDED.confidence_score,
			     computed_at = EXCLUDED.computed_at
			 RETURNING id, computed_at`,
			a.ID, a.StudyID, a.GlobalScore, a.RiskCategory, a.Probability, a.Impact,
			factors, recs, a.ModelVersion, a.ConfidenceScore, a.ComputedAt,
		).Scan(&saved.ID, &saved.ComputedAt)
	})
	if err != nil {
		if isForeignKeyError(err) {
			return nil, ErrNotFound
		}
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("upsert risk analysis: %w", err)
	}
	return &saved, nil
}

// ListRiskAnalyses returns all current analyses, limited to studies of orgID
// when it is not empty.
func (s *PostgresStore) ListRiskAnalyses(ctx context.Context, orgID string) ([]*models.RiskAnalysis, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+analysisColumns+`
		 FROM risk_analyses r
		 JOIN etps e ON e.id = r.study_id
		 WHERE ($1::text = '' OR e.org_id = $1::text)
		 ORDER BY r.computed_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list risk analyses: %w", err)
	}
	defer rows.Close()

	var out []*models.RiskAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan risk analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Helpers ---

func scanAnalysis(row pgx.Row) (*models.RiskAnalysis, error) {
	var (
		a             models.RiskAnalysis
		factors, recs []byte
	)
	if err := row.Scan(&a.ID, &a.StudyID, &a.GlobalScore, &a.RiskCategory, &a.Probability, &a.Impact,
		&factors, &recs, &a.ModelVersion, &a.ConfidenceScore, &a.ComputedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(factors, &a.TopFactors); err != nil {
		return nil, fmt.Errorf("decode top factors: %w", err)
	}
	if err := json.Unmarshal(recs, &a.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	return &a, nil
}

func decodeDocument(b []byte) (map[string]any, error) {
	doc := map[string]any{}
	if len(b) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func isForeignKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503" // foreign_key_violation
	}
	return false
}

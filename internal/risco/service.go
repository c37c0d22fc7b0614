// Package risco orchestrates risk analyses of procurement studies: analyze
// or reuse, persistence, event publication and matrix aggregation.
package risco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/risco/internal/classifier"
	"github.com/kiranshivaraju/risco/internal/dataset"
	"github.com/kiranshivaraju/risco/internal/events"
	"github.com/kiranshivaraju/risco/internal/metrics"
	"github.com/kiranshivaraju/risco/internal/store"
	"github.com/kiranshivaraju/risco/pkg/models"
)

var (
	// ErrStudyNotFound is returned when the procurement study does not exist.
	ErrStudyNotFound = errors.New("study not found")
	// ErrAnalysisNotFound is returned when a study has no analysis yet.
	ErrAnalysisNotFound = errors.New("risk analysis not found")
)

const defaultPublishTimeout = 5 * time.Second

// Studies reads procurement studies owned by the planning service.
type Studies interface {
	GetStudy(ctx context.Context, id uuid.UUID) (*models.ProcurementStudy, error)
}

// Records persists the current analysis of each study.
type Records interface {
	GetRiskAnalysisByStudy(ctx context.Context, studyID uuid.UUID) (*models.RiskAnalysis, error)
	UpsertRiskAnalysis(ctx context.Context, analysis *models.RiskAnalysis) (*models.RiskAnalysis, error)
	ListRiskAnalyses(ctx context.Context, orgID string) ([]*models.RiskAnalysis, error)
}

// Analyzer scores feature snapshots.
type Analyzer interface {
	Analyze(ctx context.Context, snap models.FeatureSnapshot) (*models.Prediction, error)
	Info() classifier.ModelInfo
}

// Service runs risk analyses. All collaborators are injected at start-up.
type Service struct {
	studies        Studies
	records        Records
	publisher      events.Publisher
	analyzer       Analyzer
	metrics        *metrics.Metrics
	logger         *slog.Logger
	publishTimeout time.Duration
	now            func() time.Time
}

// NewService creates a Service. A nil publisher drops events.
func NewService(studies Studies, records Records, publisher events.Publisher, analyzer Analyzer, m *metrics.Metrics, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		studies:        studies,
		records:        records,
		publisher:      publisher,
		analyzer:       analyzer,
		metrics:        m,
		logger:         logger,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
	}
}

// Analisar returns the current analysis of a study, computing it when none
// exists or when force is set. Reprocessing overwrites the record in place.
func (s *Service) Analisar(ctx context.Context, studyID uuid.UUID, force bool) (*models.RiskAnalysis, error) {
	study, err := s.studies.GetStudy(ctx, studyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrStudyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get study: %w", err)
	}

	if !force {
		existing, err := s.records.GetRiskAnalysisByStudy(ctx, studyID)
		if err == nil {
			s.metrics.AnalysisServed("reused")
			return existing, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("get risk analysis: %w", err)
		}
	}

	pred, err := s.analyzer.Analyze(ctx, dataset.SnapshotFromStudy(*study))
	if err != nil {
		return nil, fmt.Errorf("analyze study %s: %w", studyID, err)
	}

	saved, err := s.records.UpsertRiskAnalysis(ctx, &models.RiskAnalysis{
		ID:              uuid.New(),
		StudyID:         studyID,
		GlobalScore:     pred.GlobalScore,
		RiskCategory:    pred.RiskCategory,
		Probability:     pred.Probability,
		Impact:          pred.Impact,
		TopFactors:      pred.TopFactors,
		Recommendations: pred.Recommendations,
		ModelVersion:    pred.ModelVersion,
		ConfidenceScore: pred.ConfidenceScore,
		ComputedAt:      s.now().UTC(),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrStudyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("save risk analysis: %w", err)
	}

	s.metrics.AnalysisServed("computed")
	s.logger.Info("risk analysis computed",
		"study_id", studyID,
		"record_id", saved.ID,
		"score", saved.GlobalScore,
		"category", saved.RiskCategory,
		"forced", force,
	)
	s.publish(ctx, saved)
	return saved, nil
}

// publish emits risk.computed after the record is committed. Failures are
// logged and never reach the caller.
func (s *Service) publish(ctx context.Context, a *models.RiskAnalysis) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	err := s.publisher.Publish(ctx, events.RiskComputed{
		RecordID: a.ID,
		StudyID:  a.StudyID,
		Score:    a.GlobalScore,
		Category: a.RiskCategory,
	})
	if err != nil {
		s.metrics.PublishFailed()
		s.logger.Warn("failed to publish risk.computed event",
			"record_id", a.ID,
			"study_id", a.StudyID,
			"error", err,
		)
	}
}

// Get returns the stored analysis of a study without computing one.
func (s *Service) Get(ctx context.Context, studyID uuid.UUID) (*models.RiskAnalysis, error) {
	a, err := s.records.GetRiskAnalysisByStudy(ctx, studyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get risk analysis: %w", err)
	}
	return a, nil
}

// Matriz buckets current analyses, optionally limited to one organization,
// into the probability x impact grid.
func (s *Service) Matriz(ctx context.Context, orgID string) (*models.RiskMatrix, error) {
	list, err := s.records.ListRiskAnalyses(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list risk analyses: %w", err)
	}
	return BuildMatrix(list), nil
}

// BuildMatrix aggregates analyses. Probability and impact are clipped to
// [1, 5]; the distribution always carries the four categories.
func BuildMatrix(list []*models.RiskAnalysis) *models.RiskMatrix {
	m := &models.RiskMatrix{Distribution: make(map[string]int, len(models.RiskCategories))}
	for _, c := range models.RiskCategories {
		m.Distribution[c] = 0
	}
	for _, a := range list {
		p := clip(a.Probability, 1, 5)
		i := clip(a.Impact, 1, 5)
		m.Matrix[p-1][i-1]++
		m.Distribution[a.RiskCategory]++
		m.Total++
	}
	return m
}

// ModelInfo describes the active risk model.
func (s *Service) ModelInfo() classifier.ModelInfo {
	return s.analyzer.Info()
}

func clip(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

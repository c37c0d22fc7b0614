// Package classifier trains, persists and serves the binary risk model
// behind every risk analysis.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kiranshivaraju/risco/internal/dataset"
	"github.com/kiranshivaraju/risco/internal/features"
	"github.com/kiranshivaraju/risco/internal/metrics"
	"github.com/kiranshivaraju/risco/pkg/models"
)

// Dataset sources recorded on artifacts and training metrics.
const (
	SourceHistorical = "historical"
	SourceSynthetic  = "synthetic"
	SourceManual     = "manual"
)

// DefaultMinAUC is the acceptance threshold of the training gate.
const DefaultMinAUC = 0.85

const lockPollInterval = 250 * time.Millisecond

// Options configures a Classifier.
type Options struct {
	Backend          string
	Explainer        string
	Policy           features.UnknownCategoryPolicy
	MinAUC           float64
	SyntheticSamples int
	Seed             uint64
	Forest           ForestOptions
	Logistic         LogisticOptions
	BaseVersion      string
	LockKey          string
	LockTTL          time.Duration
	LockWait         time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Backend:          BackendForest,
		Explainer:        ExplainerTree,
		Policy:           features.PolicyExtend,
		MinAUC:           DefaultMinAUC,
		SyntheticSamples: 600,
		Seed:             42,
		Forest:           DefaultForestOptions(),
		Logistic:         DefaultLogisticOptions(),
		BaseVersion:      "risco-v1",
		LockKey:          "risco:lock:training",
		LockTTL:          5 * time.Minute,
		LockWait:         2 * time.Minute,
	}
}

// HistoricalSource builds the labeled table used for bootstrap training.
type HistoricalSource interface {
	BuildHistorical(ctx context.Context) (*dataset.Table, error)
}

// Locker guards training across processes. TryLock reports false when the
// lock is held elsewhere.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(context.Context) error, ok bool, err error)
}

// LocalLocker always grants the lock. Within one process, training is
// already serialized by the classifier itself.
type LocalLocker struct{}

func (LocalLocker) TryLock(context.Context, string, time.Duration) (func(context.Context) error, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

// TrainingReport summarizes an accepted training run.
type TrainingReport struct {
	Version  string    `json:"version"`
	Source   string    `json:"source"`
	Rows     int       `json:"rows"`
	Columns  []string  `json:"columns"`
	Folds    int       `json:"folds"`
	FoldAUCs []float64 `json:"fold_aucs"`
	MeanAUC  float64   `json:"mean_auc"`
}

// ModelInfo describes the active artifact.
type ModelInfo struct {
	Ready     bool       `json:"ready"`
	Version   string     `json:"version,omitempty"`
	Backend   string     `json:"backend"`
	Explainer string     `json:"explainer"`
	Policy    string     `json:"unknown_category_policy"`
	Source    string     `json:"source,omitempty"`
	MeanAUC   float64    `json:"mean_auc,omitempty"`
	Rows      int        `json:"rows,omitempty"`
	TrainedAt *time.Time `json:"trained_at,omitempty"`
	// Vocabulary lists the known classes of each categorical column,
	// including ones added at inference under the extend policy.
	Vocabulary map[string][]string `json:"vocabulary,omitempty"`
}

// Classifier owns the active model artifact. It loads the stored artifact
// lazily and trains a bootstrap model when none exists.
type Classifier struct {
	opts       Options
	newBackend BackendFactory
	store      ArtifactStore
	source     HistoricalSource
	locker     Locker
	metrics    *metrics.Metrics
	logger     *slog.Logger

	current atomic.Pointer[Artifact]
	group   singleflight.Group
	trainMu sync.Mutex
	now     func() time.Time
}

// New validates opts and returns a Classifier with no active artifact.
// A nil locker falls back to LocalLocker.
func New(opts Options, store ArtifactStore, source HistoricalSource, locker Locker, m *metrics.Metrics, logger *slog.Logger) (*Classifier, error) {
	newBackend, err := NewBackendFactory(opts.Backend, opts.Forest, opts.Logistic)
	if err != nil {
		return nil, err
	}
	if err := ValidateExplainerKind(opts.Explainer); err != nil {
		return nil, err
	}
	if _, err := features.ParsePolicy(string(opts.Policy)); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("classifier: artifact store is required")
	}
	if locker == nil {
		locker = LocalLocker{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		opts:       opts,
		newBackend: newBackend,
		store:      store,
		source:     source,
		locker:     locker,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// EnsureReady activates a model, loading the stored artifact or training a
// bootstrap one. Concurrent callers share a single attempt.
func (c *Classifier) EnsureReady(ctx context.Context) error {
	if c.current.Load() != nil {
		return nil
	}
	_, err, _ := c.group.Do("ensure-ready", func() (any, error) {
		// training is not interruptible; one caller's deadline must not
		// abort the attempt the others are waiting on
		return nil, c.ensureReady(context.WithoutCancel(ctx))
	})
	return err
}

func (c *Classifier) ensureReady(ctx context.Context) error {
	if c.current.Load() != nil {
		return nil
	}
	if ok, err := c.loadStored(ctx); err != nil || ok {
		return err
	}

	unlock, err := c.lock(ctx)
	if err != nil {
		return err
	}
	defer c.unlock(ctx, unlock)

	// another process may have trained while we waited for the lock
	if ok, err := c.loadStored(ctx); err != nil || ok {
		return err
	}
	return c.bootstrap(ctx)
}

func (c *Classifier) loadStored(ctx context.Context) (bool, error) {
	blob, err := c.store.Load(ctx)
	if errors.Is(err, ErrArtifactNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	art, err := UnmarshalArtifact(blob)
	if err != nil {
		c.logger.Warn("stored model artifact unreadable, retraining", "error", err)
		return false, nil
	}
	c.current.Store(art)
	c.logger.Info("model artifact loaded", "version", art.Version, "backend", art.Backend.Kind())
	return true, nil
}

func (c *Classifier) bootstrap(ctx context.Context) error {
	if c.source != nil {
		table, err := c.source.BuildHistorical(ctx)
		switch {
		case err != nil:
			c.logger.Warn("historical dataset unavailable", "error", err)
		case !table.HasLabelDiversity():
			c.logger.Info("historical dataset lacks label diversity, using synthetic data", "rows", table.Len())
		default:
			_, err := c.train(ctx, table, SourceHistorical)
			if err == nil {
				return nil
			}
			c.logger.Warn("historical training failed, using synthetic data", "error", err)
		}
	}

	synthetic := dataset.GenerateSynthetic(c.opts.SyntheticSamples, c.opts.Seed)
	if _, err := c.train(ctx, synthetic, SourceSynthetic); err != nil {
		return fmt.Errorf("%w: bootstrap training: %v", ErrModelUnavailable, err)
	}
	return nil
}

// Train runs a manual training invocation on table. A rejected candidate
// leaves the active artifact untouched.
func (c *Classifier) Train(ctx context.Context, table *dataset.Table) (*TrainingReport, error) {
	return c.TrainFrom(ctx, table, SourceManual)
}

// TrainFrom is Train with an explicit source label for logs and metrics.
func (c *Classifier) TrainFrom(ctx context.Context, table *dataset.Table, source string) (*TrainingReport, error) {
	unlock, err := c.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer c.unlock(ctx, unlock)
	return c.train(ctx, table, source)
}

func (c *Classifier) train(ctx context.Context, table *dataset.Table, source string) (*TrainingReport, error) {
	c.trainMu.Lock()
	defer c.trainMu.Unlock()

	start := c.now()
	finish := func(result string, auc float64) {
		c.metrics.TrainingFinished(result, source, auc, time.Since(start))
	}

	if table == nil || !table.Labeled {
		finish("insufficient", 0)
		return nil, fmt.Errorf("%w: table has no %s column", ErrInsufficientData, dataset.ColLabel)
	}
	y := table.Labels()
	k, err := FoldCount(y)
	if err != nil {
		finish("insufficient", 0)
		return nil, err
	}

	prep := features.NewPreparer(c.opts.Policy)
	X, err := prep.FitTransform(table)
	if err != nil {
		finish("error", 0)
		return nil, fmt.Errorf("prepare features: %w", err)
	}
	schema := prep.Schema()

	aucs, err := CrossValidate(X, y, schema, k, c.opts.Seed, c.newBackend)
	if err != nil {
		finish("error", 0)
		return nil, fmt.Errorf("cross-validate: %w", err)
	}
	mean := MeanAUC(aucs)
	if mean < c.opts.MinAUC {
		finish("rejected", mean)
		c.logger.Warn("training rejected", "source", source, "mean_auc", mean, "threshold", c.opts.MinAUC)
		return nil, &TrainingQualityError{MeanAUC: mean, Threshold: c.opts.MinAUC, FoldAUCs: aucs}
	}

	model := c.newBackend()
	if err := model.Fit(X, y, schema); err != nil {
		finish("error", mean)
		return nil, fmt.Errorf("fit %s: %w", model.Kind(), err)
	}
	categorical := make([]bool, len(schema))
	for i, f := range schema {
		categorical[i] = f.Categorical
	}
	explainer, err := NewExplainer(c.opts.Explainer, model, Baseline(X, categorical))
	if err != nil {
		finish("error", mean)
		return nil, err
	}

	trainedAt := c.now().UTC()
	art := &Artifact{
		Version:   fmt.Sprintf("%s-%s", c.opts.BaseVersion, trainedAt.Format("20060102150405")),
		Backend:   model,
		Preparer:  prep,
		Explainer: explainer,
		MeanAUC:   mean,
		Rows:      table.Len(),
		Source:    source,
		TrainedAt: trainedAt,
	}
	blob, err := MarshalArtifact(art)
	if err != nil {
		finish("error", mean)
		return nil, err
	}
	if err := c.store.Save(ctx, blob); err != nil {
		finish("error", mean)
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	c.current.Store(art)
	finish("accepted", mean)

	c.logger.Info("model trained",
		"version", art.Version,
		"source", source,
		"rows", art.Rows,
		"folds", k,
		"mean_auc", mean,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &TrainingReport{
		Version:  art.Version,
		Source:   source,
		Rows:     art.Rows,
		Columns:  table.Columns(),
		Folds:    k,
		FoldAUCs: aucs,
		MeanAUC:  mean,
	}, nil
}

// Analyze scores one study snapshot with the active model.
func (c *Classifier) Analyze(ctx context.Context, snap models.FeatureSnapshot) (*models.Prediction, error) {
	if err := c.EnsureReady(ctx); err != nil {
		return nil, err
	}
	art := c.current.Load()

	x, err := art.Preparer.TransformSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("prepare snapshot: %w", err)
	}
	p := clamp01(art.Backend.PredictProba(x))
	score := 100 * p
	category, probability, impact := Categorize(score)
	factors := TopFactors(art.Explainer.Explain(x), snap)

	return &models.Prediction{
		GlobalScore:     score,
		RiskCategory:    category,
		Probability:     probability,
		Impact:          impact,
		TopFactors:      factors,
		Recommendations: Recommend(category, factors),
		ModelVersion:    art.Version,
		ConfidenceScore: math.Max(p, 1-p),
	}, nil
}

// Info reports the active artifact, or Ready=false before the first load.
func (c *Classifier) Info() ModelInfo {
	info := ModelInfo{
		Backend:   c.opts.Backend,
		Explainer: c.opts.Explainer,
		Policy:    string(c.opts.Policy),
	}
	art := c.current.Load()
	if art == nil {
		return info
	}
	trainedAt := art.TrainedAt
	info.Ready = true
	info.Version = art.Version
	info.Backend = art.Backend.Kind()
	info.Explainer = art.Explainer.Kind()
	info.Policy = string(art.Preparer.Policy())
	info.Source = art.Source
	info.MeanAUC = art.MeanAUC
	info.Rows = art.Rows
	info.TrainedAt = &trainedAt
	info.Vocabulary = art.Preparer.Vocabulary()
	return info
}

// lock waits up to LockWait for the training lock. Locker errors fail open:
// training proceeds guarded only by the in-process mutex.
func (c *Classifier) lock(ctx context.Context) (func(context.Context) error, error) {
	deadline := c.now().Add(c.opts.LockWait)
	for {
		unlock, ok, err := c.locker.TryLock(ctx, c.opts.LockKey, c.opts.LockTTL)
		if err != nil {
			c.logger.Warn("training lock unavailable, continuing without it", "error", err)
			return nil, nil
		}
		if ok {
			return unlock, nil
		}
		if !c.now().Before(deadline) {
			return nil, fmt.Errorf("%w: training lock held elsewhere", ErrModelUnavailable)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (c *Classifier) unlock(ctx context.Context, unlock func(context.Context) error) {
	if unlock == nil {
		return
	}
	if err := unlock(ctx); err != nil {
		c.logger.Warn("failed to release training lock", "error", err)
	}
}

func clamp01(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

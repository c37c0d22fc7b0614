package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kiranshivaraju/risco/internal/features"
)

// artifactFormat is bumped whenever the serialized layout changes.
const artifactFormat = 1

// Artifact is the active model: classifier, encoders, explainer and version.
type Artifact struct {
	Version   string
	Backend   Backend
	Preparer  *features.Preparer
	Explainer Explainer
	MeanAUC   float64
	Rows      int
	Source    string
	TrainedAt time.Time
}

type artifactJSON struct {
	Format    int                `json:"format"`
	Version   string             `json:"version"`
	Backend   string             `json:"backend"`
	Model     json.RawMessage    `json:"model"`
	Encoders  *features.Preparer `json:"encoders"`
	Explainer explainerJSON      `json:"explainer"`
	MeanAUC   float64            `json:"mean_auc"`
	Rows      int                `json:"rows"`
	Source    string             `json:"source"`
	TrainedAt time.Time          `json:"trained_at"`
}

type explainerJSON struct {
	Kind     string    `json:"kind"`
	Baseline []float64 `json:"baseline,omitempty"`
}

// MarshalArtifact serializes a to JSON.
func MarshalArtifact(a *Artifact) ([]byte, error) {
	model, err := json.Marshal(a.Backend)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	exp := explainerJSON{Kind: a.Explainer.Kind()}
	if le, ok := a.Explainer.(*LinearExplainer); ok {
		exp.Baseline = le.Baseline
	}
	return json.Marshal(artifactJSON{
		Format:    artifactFormat,
		Version:   a.Version,
		Backend:   a.Backend.Kind(),
		Model:     model,
		Encoders:  a.Preparer,
		Explainer: exp,
		MeanAUC:   a.MeanAUC,
		Rows:      a.Rows,
		Source:    a.Source,
		TrainedAt: a.TrainedAt,
	})
}

// UnmarshalArtifact restores an artifact and rebuilds its explainer. It
// rejects artifacts whose encoders or model could not score a snapshot.
func UnmarshalArtifact(b []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if raw.Format != artifactFormat {
		return nil, fmt.Errorf("unsupported artifact format %d", raw.Format)
	}
	if raw.Encoders == nil {
		return nil, errors.New("artifact has no encoders")
	}
	if err := raw.Encoders.Validate(); err != nil {
		return nil, fmt.Errorf("artifact encoders: %w", err)
	}
	backend, err := decodeBackend(raw.Backend, raw.Model)
	if err != nil {
		return nil, err
	}
	if err := backend.Validate(len(raw.Encoders.Schema())); err != nil {
		return nil, fmt.Errorf("artifact %s model: %w", raw.Backend, err)
	}
	explainer, err := NewExplainer(raw.Explainer.Kind, backend, raw.Explainer.Baseline)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Version:   raw.Version,
		Backend:   backend,
		Preparer:  raw.Encoders,
		Explainer: explainer,
		MeanAUC:   raw.MeanAUC,
		Rows:      raw.Rows,
		Source:    raw.Source,
		TrainedAt: raw.TrainedAt,
	}, nil
}

// ArtifactStore holds the single serialized artifact.
type ArtifactStore interface {
	// Load returns ErrArtifactNotFound when nothing has been saved.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored artifact.
	Save(ctx context.Context, blob []byte) error
}

// FileArtifactStore keeps the artifact in one file, replaced atomically.
type FileArtifactStore struct {
	path string
}

// NewFileArtifactStore creates a store writing to path.
func NewFileArtifactStore(path string) *FileArtifactStore {
	return &FileArtifactStore{path: path}
}

func (s *FileArtifactStore) Load(_ context.Context) ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return b, nil
}

func (s *FileArtifactStore) Save(_ context.Context, blob []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".risk_model-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace artifact: %w", err)
	}
	return nil
}

// BlobCache is the subset of the cache used to keep artifacts in Redis.
type BlobCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisArtifactStore keeps the artifact under one cache key with no expiry.
type RedisArtifactStore struct {
	cache BlobCache
	key   string
}

// NewRedisArtifactStore creates a store backed by c, normally a cache.RedisCache.
func NewRedisArtifactStore(c BlobCache, key string) *RedisArtifactStore {
	return &RedisArtifactStore{cache: c, key: key}
}

func (s *RedisArtifactStore) Load(ctx context.Context) ([]byte, error) {
	b, found, err := s.cache.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	if !found {
		return nil, ErrArtifactNotFound
	}
	return b, nil
}

func (s *RedisArtifactStore) Save(ctx context.Context, blob []byte) error {
	if err := s.cache.Set(ctx, s.key, blob, 0); err != nil {
		return fmt.Errorf("set artifact: %w", err)
	}
	return nil
}

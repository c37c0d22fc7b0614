package models

import (
	"time"

	"github.com/google/uuid"
)

// Risk categories, ordered by severity.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// RiskCategories lists every category in severity order.
var RiskCategories = []string{RiskLow, RiskMedium, RiskHigh, RiskCritical}

// RiskFactor is one signed feature attribution for a single prediction.
// RawValue is a float64 for numeric features and a string for categorical ones.
type RiskFactor struct {
	Factor       string  `json:"factor"`
	SignedImpact float64 `json:"signed_impact"`
	RawValue     any     `json:"raw_value"`
}

// Recommendation is a rule-based mitigation suggestion.
type Recommendation struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// RiskAnalysis is the single current risk analysis of a study.
// StudyID is unique: reprocessing overwrites the record in place.
type RiskAnalysis struct {
	ID              uuid.UUID        `db:"id"               json:"id"`
	StudyID         uuid.UUID        `db:"study_id"         json:"study_id"`
	GlobalScore     float64          `db:"global_score"     json:"global_score"`
	RiskCategory    string           `db:"risk_category"    json:"risk_category"`
	Probability     int              `db:"probability"      json:"probability"`
	Impact          int              `db:"impact"           json:"impact"`
	TopFactors      []RiskFactor     `db:"top_factors"      json:"top_factors"`
	Recommendations []Recommendation `db:"recommendations"  json:"recommendations"`
	ModelVersion    string           `db:"model_version"    json:"model_version"`
	ConfidenceScore float64          `db:"confidence_score" json:"confidence_score"`
	ComputedAt      time.Time        `db:"computed_at"      json:"computed_at"`
}

// RiskMatrix aggregates current analyses into a 5x5 probability x impact grid.
// Matrix[p-1][i-1] counts analyses with probability p and impact i.
type RiskMatrix struct {
	Matrix       [5][5]int      `json:"matriz"`
	Total        int            `json:"total_analises"`
	Distribution map[string]int `json:"distribuicao"`
}

// FeatureSnapshot is the model input derived from one study.
// Numeric fields may be NaN when the source attribute is missing.
type FeatureSnapshot struct {
	ValueLog     float64 `json:"value_log"`
	DurationDays float64 `json:"duration_days"`
	Category     string  `json:"category"`
	Modality     string  `json:"modality"`
}

// Prediction is the classifier output for one snapshot.
type Prediction struct {
	GlobalScore     float64
	RiskCategory    string
	Probability     int
	Impact          int
	TopFactors      []RiskFactor
	Recommendations []Recommendation
	ModelVersion    string
	ConfidenceScore float64
}

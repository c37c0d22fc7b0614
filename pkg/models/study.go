// Package models contains shared data models used across the Risco codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProcurementStudy is the preliminary technical study (ETP) that precedes a
// procurement. It is owned by the planning service; Risco only reads it.
// Procurement attributes live in the free-form Data document and are
// extracted with tolerant multi-key lookups.
type ProcurementStudy struct {
	ID        uuid.UUID      `db:"id"         json:"id"`
	OrgID     string         `db:"org_id"     json:"org_id"`
	Data      map[string]any `db:"data"       json:"data"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// ContractOutcome is the execution result of the contract signed for a study.
type ContractOutcome struct {
	ID             uuid.UUID  `db:"id"               json:"id"`
	StudyID        uuid.UUID  `db:"study_id"         json:"study_id"`
	InitialValue   float64    `db:"initial_value"    json:"initial_value"`
	AddendumValue  float64    `db:"addendum_value"   json:"addendum_value"`
	PlannedEndDate *time.Time `db:"planned_end_date" json:"planned_end_date,omitempty"`
	ActualEndDate  *time.Time `db:"actual_end_date"  json:"actual_end_date,omitempty"`
}

// StudyOutcome pairs a study with its contract outcome, if any.
type StudyOutcome struct {
	Study   ProcurementStudy
	Outcome *ContractOutcome
}

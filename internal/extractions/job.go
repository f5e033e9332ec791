// Package extractions runs contract extraction jobs. A job walks the section
// schema in order, asks the tenant's assistant for each section, stores one
// artifact per section, and finishes with a consolidated artifact and a
// summary. Jobs move forward only: pending, processing, then one of
// completed, failed, or cancelled.
package extractions

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Section statuses recorded in Job.SectionsStatus.
const (
	SectionPending   = "pending"
	SectionCompleted = "completed"
	SectionFailed    = "failed"
)

// Artifact names written alongside the per-section files.
const (
	ConsolidatedArtifact = "complete_extraction.json"
	SummaryArtifact      = "extraction_summary.json"
)

// ShutdownMessage is recorded on jobs cancelled by a server shutdown.
const ShutdownMessage = "Server shutdown"

// SectionsStatus maps section names to their status. It is stored as jsonb.
type SectionsStatus map[string]string

// Value implements driver.Valuer.
func (s SectionsStatus) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *SectionsStatus) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = SectionsStatus{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan sections_status: unsupported type %T", src)
	}

	out := SectionsStatus{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan sections_status: %w", err)
	}
	*s = out
	return nil
}

// Clone returns an independent copy.
func (s SectionsStatus) Clone() SectionsStatus {
	out := make(SectionsStatus, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Failed returns the names of failed sections in the given order.
func (s SectionsStatus) Failed(order []string) []string {
	failed := make([]string, 0)
	for _, name := range order {
		if s[name] == SectionFailed {
			failed = append(failed, name)
		}
	}
	return failed
}

// Job is one extraction run against one contract.
type Job struct {
	ID                uuid.UUID      `json:"id"`
	TenantID          uuid.UUID      `json:"tenantId"`
	ContractID        uuid.UUID      `json:"contractId"`
	UserID            string         `json:"userId"`
	Status            string         `json:"status"`
	OutputDirectory   string         `json:"outputDirectory"`
	TotalSections     int            `json:"totalSections"`
	CompletedSections int            `json:"completedSections"`
	CurrentSection    *string        `json:"currentSection"`
	SectionsStatus    SectionsStatus `json:"sectionsStatus"`
	TokensUsed        int            `json:"tokensUsed"`
	ErrorMessage      *string        `json:"errorMessage"`
	CreatedAt         time.Time      `json:"createdAt"`
	StartedAt         *time.Time     `json:"startedAt"`
	CompletedAt       *time.Time     `json:"completedAt"`
	CarrierName       string         `json:"carrierName"`
	ContractNumber    string         `json:"contractNumber"`
	FileName          string         `json:"fileName"`
}

// Progress returns the completed share of sections as a rounded percentage.
func (j Job) Progress() int {
	if j.TotalSections <= 0 {
		return 0
	}
	return int(math.Round(float64(j.CompletedSections) / float64(j.TotalSections) * 100))
}

// Active reports whether the job is pending or processing.
func (j Job) Active() bool {
	return IsActive(j.Status)
}

// MarshalJSON adds the computed progress percentage.
func (j Job) MarshalJSON() ([]byte, error) {
	type job Job
	return json.Marshal(struct {
		job
		Progress int `json:"progress"`
	}{job(j), j.Progress()})
}

// IsActive reports whether status is pending or processing.
func IsActive(status string) bool {
	return status == StatusPending || status == StatusProcessing
}

// IsTerminal reports whether status is completed, failed, or cancelled.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusCancelled
}

// StartCommand requests a new extraction for a contract.
type StartCommand struct {
	TenantID   uuid.UUID
	ContractID uuid.UUID
	UserID     string
}

// CreateJobCommand carries the fields of a new job row.
type CreateJobCommand struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	ContractID      uuid.UUID
	UserID          string
	TotalSections   int
	OutputDirectory string
	SectionsStatus  SectionsStatus
}

// ProgressUpdate holds optional progress fields. Nil fields are left unchanged.
type ProgressUpdate struct {
	CurrentSection    *string
	CompletedSections *int
	TokensUsed        *int
	SectionsStatus    SectionsStatus
}

// StartResponse is returned when a job is accepted.
type StartResponse struct {
	JobID   uuid.UUID `json:"jobId"`
	Status  string    `json:"status"`
	Message string    `json:"message"`
}

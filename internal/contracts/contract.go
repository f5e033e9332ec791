// Package contracts reads tenant contracts and records their extraction state.
// Contract registration and upload belong to another service; this package
// only consumes existing rows.
package contracts

import (
	"time"

	"github.com/google/uuid"
)

// Extraction states recorded on a contract.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Contract is an uploaded carrier contract.
type Contract struct {
	ID                   uuid.UUID  `json:"id"`
	TenantID             uuid.UUID  `json:"tenant_id"`
	CarrierName          string     `json:"carrier_name"`
	ContractNumber       string     `json:"contract_number"`
	FileName             string     `json:"file_name"`
	ExtractionStatus     *string    `json:"extraction_status"`
	ExtractionOutputPath *string    `json:"extraction_output_path"`
	LastExtractionJobID  *uuid.UUID `json:"last_extraction_job_id"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

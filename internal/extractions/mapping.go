package extractions

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/ratesheet/pkg/query"
	"github.com/JaimeStill/ratesheet/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "extraction_jobs", "j").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("contract_id", "ContractID").
	Project("user_id", "UserID").
	Project("status", "Status").
	Project("output_directory", "OutputDirectory").
	Project("total_sections", "TotalSections").
	Project("completed_sections", "CompletedSections").
	Project("current_section", "CurrentSection").
	Project("sections_status", "SectionsStatus").
	Project("tokens_used", "TokensUsed").
	Project("error_message", "ErrorMessage").
	Project("created_at", "CreatedAt").
	Project("started_at", "StartedAt").
	Project("completed_at", "CompletedAt").
	Join("public", "contracts", "c", "JOIN", "j.contract_id = c.id").
	Project("carrier_name", "CarrierName").
	Project("contract_number", "ContractNumber").
	Project("file_name", "FileName")

var newestFirst = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters narrows a job listing. Nil fields are ignored. CarrierName uses
// case-insensitive contains matching.
type Filters struct {
	TenantID    *uuid.UUID `json:"-"`
	ContractID  *uuid.UUID `json:"contract_id,omitempty"`
	Status      *string    `json:"status,omitempty"`
	CarrierName *string    `json:"carrier_name,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("TenantID", f.TenantID).
		WhereEquals("ContractID", f.ContractID).
		WhereEquals("Status", f.Status).
		WhereContains("CarrierName", f.CarrierName)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Malformed contract ids are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if c := values.Get("contract_id"); c != "" {
		if id, err := uuid.Parse(c); err == nil {
			f.ContractID = &id
		}
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if cn := values.Get("carrier_name"); cn != "" {
		f.CarrierName = &cn
	}

	return f
}

var activeStatuses = []any{StatusPending, StatusProcessing}

func scanJob(s repository.Scanner) (Job, error) {
	var j Job
	err := s.Scan(
		&j.ID,
		&j.TenantID,
		&j.ContractID,
		&j.UserID,
		&j.Status,
		&j.OutputDirectory,
		&j.TotalSections,
		&j.CompletedSections,
		&j.CurrentSection,
		&j.SectionsStatus,
		&j.TokensUsed,
		&j.ErrorMessage,
		&j.CreatedAt,
		&j.StartedAt,
		&j.CompletedAt,
		&j.CarrierName,
		&j.ContractNumber,
		&j.FileName,
	)
	return j, err
}

package contracts

import (
	"github.com/JaimeStill/ratesheet/pkg/query"
	"github.com/JaimeStill/ratesheet/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "contracts", "c").
	Project("id", "ID").
	Project("tenant_id", "TenantID").
	Project("carrier_name", "CarrierName").
	Project("contract_number", "ContractNumber").
	Project("file_name", "FileName").
	Project("extraction_status", "ExtractionStatus").
	Project("extraction_output_path", "ExtractionOutputPath").
	Project("last_extraction_job_id", "LastExtractionJobID").
	Project("updated_at", "UpdatedAt")

func scanContract(s repository.Scanner) (Contract, error) {
	var c Contract
	err := s.Scan(
		&c.ID,
		&c.TenantID,
		&c.CarrierName,
		&c.ContractNumber,
		&c.FileName,
		&c.ExtractionStatus,
		&c.ExtractionOutputPath,
		&c.LastExtractionJobID,
		&c.UpdatedAt,
	)
	return c, err
}

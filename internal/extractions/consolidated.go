package extractions

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type extractionMetadata struct {
	ExtractionJobID uuid.UUID `json:"extractionJobId"`
	ContractID      uuid.UUID `json:"contractId"`
	ContractNumber  string    `json:"contractNumber"`
	CarrierName     string    `json:"carrierName"`
	FileName        string    `json:"fileName"`
	ExtractionDate  time.Time `json:"extractionDate"`
	SchemaVersion   string    `json:"schemaVersion"`
}

type consolidatedArtifact struct {
	Metadata extractionMetadata `json:"metadata"`
	Sections orderedSections    `json:"sections"`
}

type extractionSummary struct {
	JobID             uuid.UUID `json:"jobId"`
	ContractID        uuid.UUID `json:"contractId"`
	ContractNumber    string    `json:"contractNumber"`
	TotalSections     int       `json:"totalSections"`
	CompletedSections int       `json:"completedSections"`
	FailedSections    []string  `json:"failedSections"`
	TotalTokensUsed   int       `json:"totalTokensUsed"`
	OutputFiles       []string  `json:"outputFiles"`
	CompletedAt       time.Time `json:"completedAt"`
}

// sectionFailure stands in for a section whose artifact could not be stored.
type sectionFailure struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

type sectionEntry struct {
	name  string
	value any
}

// orderedSections encodes as a JSON object whose keys keep schema order.
type orderedSections []sectionEntry

func (s orderedSections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, entry := range s {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(entry.name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.value)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

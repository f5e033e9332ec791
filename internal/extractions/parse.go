package extractions

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/JaimeStill/ratesheet/internal/schema"
	"github.com/JaimeStill/ratesheet/pkg/formatting"
)

const rawExcerptLimit = 500

const noJSONMessage = "No valid JSON found in response"

// ExtractedSection is the stored result of one section. Exactly one of Data
// or Error is set.
type ExtractedSection struct {
	Section     string
	Sheet       string
	RecordType  string
	Data        map[string]any
	ExtractedAt time.Time
	Error       string
	RawResponse string
}

// HasError reports whether the section could not be parsed.
func (s ExtractedSection) HasError() bool {
	return s.Error != ""
}

// MissingRequired returns the required fields flagged during validation.
func (s ExtractedSection) MissingRequired() []string {
	warnings, ok := s.Data["validation_warnings"].(map[string]any)
	if !ok {
		return nil
	}
	switch v := warnings["missing_required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type parsedSection struct {
	Section     string         `json:"section"`
	Sheet       string         `json:"sheet"`
	RecordType  string         `json:"record_type"`
	Data        map[string]any `json:"data"`
	ExtractedAt time.Time      `json:"extracted_at"`
}

type failedSection struct {
	Section     string `json:"section"`
	Sheet       string `json:"sheet"`
	RecordType  string `json:"record_type"`
	Error       string `json:"error"`
	RawResponse string `json:"raw_response"`
}

// MarshalJSON writes the parsed or the error shape.
func (s ExtractedSection) MarshalJSON() ([]byte, error) {
	if s.HasError() {
		return json.Marshal(failedSection{
			Section:     s.Section,
			Sheet:       s.Sheet,
			RecordType:  s.RecordType,
			Error:       s.Error,
			RawResponse: s.RawResponse,
		})
	}

	data := s.Data
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(parsedSection{
		Section:     s.Section,
		Sheet:       s.Sheet,
		RecordType:  s.RecordType,
		Data:        data,
		ExtractedAt: s.ExtractedAt.UTC(),
	})
}

// ParseResponse extracts the JSON object embedded in an assistant reply and
// checks it against the section's required fields. It never fails: replies
// without usable JSON produce an error section carrying a raw excerpt.
//
// Rows sections are checked on their first row only. Missing fields are
// listed under data.validation_warnings.missing_required.
func ParseResponse(raw string, section schema.Section, now time.Time) ExtractedSection {
	out := ExtractedSection{
		Section:    section.Name,
		Sheet:      section.Sheet,
		RecordType: section.RecordType,
	}

	data, err := formatting.Parse[map[string]any](raw)
	if err != nil {
		out.Error = err.Error()
		if errors.Is(err, formatting.ErrNoJSON) {
			out.Error = noJSONMessage
		}
		out.RawResponse = excerpt(raw)
		return out
	}
	if data == nil {
		out.Error = noJSONMessage
		out.RawResponse = excerpt(raw)
		return out
	}

	if missing := missingRequired(data, section); len(missing) > 0 {
		data["validation_warnings"] = map[string]any{"missing_required": missing}
	}

	out.Data = data
	out.ExtractedAt = now
	return out
}

func missingRequired(data map[string]any, section schema.Section) []string {
	record := data
	if section.IsRows() {
		rows, ok := data["rows"].([]any)
		if !ok || len(rows) == 0 {
			return nil
		}
		first, ok := rows[0].(map[string]any)
		if !ok {
			return section.RequiredFields()
		}
		record = first
	}

	var missing []string
	for _, name := range section.RequiredFields() {
		if isBlank(record[name]) {
			missing = append(missing, name)
		}
	}
	return missing
}

// isBlank treats absent, null, empty, false, and zero values as missing.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	}
	return false
}

func excerpt(raw string) string {
	if len(raw) <= rawExcerptLimit {
		return raw
	}
	r := []rune(raw)
	if len(r) <= rawExcerptLimit {
		return raw
	}
	return string(r[:rawExcerptLimit])
}

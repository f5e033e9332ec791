// Package prompts turns an extraction section into the text sent to a
// tenant's assistant. The assistant already holds the contract document, so
// prompts carry only contract metadata, never document text.
package prompts

import (
	"fmt"
	"strings"

	"github.com/JaimeStill/ratesheet/internal/schema"
)

// Rules appended to every prompt.
var baseRules = []string{
	"Dates: YYYY-MM-DD",
	"Currency: 3-letter codes",
	"UN/LOCODEs: 5-letter codes",
}

const closing = "Extract and return valid JSON only."

// ContractContext identifies the document the assistant should read.
type ContractContext struct {
	CarrierName    string
	ContractNumber string
	FileName       string
}

func (c ContractContext) reference() string {
	var parts []string
	if c.CarrierName != "" {
		parts = append(parts, "carrier "+c.CarrierName)
	}
	if c.ContractNumber != "" {
		parts = append(parts, "contract "+c.ContractNumber)
	}
	if c.FileName != "" {
		parts = append(parts, "file "+c.FileName)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Use the uploaded document for " + strings.Join(parts, ", ") + "."
}

// Build composes the extraction prompt for one section.
func Build(section schema.Section, contract ContractContext) string {
	var sb strings.Builder

	sb.WriteString(strings.TrimSpace(section.Instruction))
	sb.WriteString("\n\n")

	if ref := contract.reference(); ref != "" {
		sb.WriteString(ref)
		sb.WriteString("\n\n")
	}

	shape := "{" + fieldList(section.RequiredFields(), `"%s": ...`) + "}"
	if section.IsRows() {
		fmt.Fprintf(&sb, "Return JSON: {\"rows\": [%s]}\n", shape)
	} else {
		fmt.Fprintf(&sb, "Return JSON: %s\n", shape)
	}

	fmt.Fprintf(&sb, "Required fields: %s\n", strings.Join(section.RequiredFields(), ", "))

	sb.WriteString("\nRules:\n")
	for _, rule := range baseRules {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}
	for _, rule := range section.Rules {
		fmt.Fprintf(&sb, "- %s\n", rule)
	}

	sb.WriteString("\n")
	sb.WriteString(closing)

	return sb.String()
}

func fieldList(names []string, format string) string {
	items := make([]string, len(names))
	for i, n := range names {
		items[i] = fmt.Sprintf(format, n)
	}
	return strings.Join(items, ", ")
}

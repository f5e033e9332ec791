// Package schema holds the declarative table of extraction sections. The
// table is loaded and validated once at startup and is read-only afterwards.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Record kinds a section may produce.
const (
	RecordSingle = "single"
	RecordRows   = "rows"
)

//go:embed sections.yaml
var defaultSections []byte

//go:embed sections.schema.json
var sectionsSchema []byte

// Field describes one value the assistant is asked to extract.
type Field struct {
	Name     string   `yaml:"name" json:"name"`
	Type     string   `yaml:"type" json:"type"`
	Required bool     `yaml:"required" json:"required"`
	Pattern  string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Enum     []string `yaml:"enum,omitempty" json:"enum,omitempty"`
	Aliases  []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Default  any      `yaml:"default,omitempty" json:"default,omitempty"`
	Example  any      `yaml:"example,omitempty" json:"example,omitempty"`
	Min      *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Note     string   `yaml:"note,omitempty" json:"note,omitempty"`
}

// Section is one extraction task. Sections are processed in declaration order.
type Section struct {
	Name        string   `yaml:"name" json:"name"`
	Sheet       string   `yaml:"sheet" json:"sheet"`
	RecordType  string   `yaml:"record_type" json:"record_type"`
	Keys        []string `yaml:"keys,omitempty" json:"keys,omitempty"`
	Instruction string   `yaml:"instruction" json:"instruction"`
	Rules       []string `yaml:"rules,omitempty" json:"rules,omitempty"`
	Timeout     string   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Fields      []Field  `yaml:"fields" json:"fields"`
}

// IsRows reports whether the section yields a list of rows.
func (s Section) IsRows() bool {
	return s.RecordType == RecordRows
}

// RequiredFields returns the names of required fields in declaration order.
func (s Section) RequiredFields() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// TimeoutDuration returns the section's own timeout, or zero if unset.
func (s Section) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.Timeout)
	return d
}

// Schema is the decoded section table.
type Schema struct {
	Version        string    `yaml:"version" json:"version"`
	DateFormat     string    `yaml:"date_format" json:"date_format"`
	CurrencyFormat string    `yaml:"currency_format" json:"currency_format"`
	UNLOCODEFormat string    `yaml:"unlocode_format" json:"unlocode_format"`
	Sections       []Section `yaml:"sections" json:"sections"`
}

// Registry provides read-only access to a validated Schema.
type Registry struct {
	schema Schema
	index  map[string]int
}

// Default returns the registry built from the embedded section table.
func Default() (*Registry, error) {
	return Parse(defaultSections)
}

// Load reads a section table from path. An empty path loads the embedded table.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML (or JSON) section table.
func Parse(data []byte) (*Registry, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	index := make(map[string]int, len(s.Sections))
	for i, sec := range s.Sections {
		if _, dup := index[sec.Name]; dup {
			return nil, fmt.Errorf("duplicate section %q", sec.Name)
		}
		if sec.Timeout != "" {
			if d, err := time.ParseDuration(sec.Timeout); err != nil || d <= 0 {
				return nil, fmt.Errorf("section %s: invalid timeout %q", sec.Name, sec.Timeout)
			}
		}
		if len(sec.RequiredFields()) == 0 {
			return nil, fmt.Errorf("section %s: no required fields", sec.Name)
		}
		if sec.Sheet == "" {
			s.Sections[i].Sheet = sec.Name
		}
		index[sec.Name] = i
	}

	return &Registry{schema: s, index: index}, nil
}

// Version returns the schema version string.
func (r *Registry) Version() string {
	return r.schema.Version
}

// Len returns the number of sections.
func (r *Registry) Len() int {
	return len(r.schema.Sections)
}

// Sections returns a copy of the sections in processing order.
func (r *Registry) Sections() []Section {
	return slices.Clone(r.schema.Sections)
}

// Section looks up a section by name.
func (r *Registry) Section(name string) (Section, bool) {
	i, ok := r.index[name]
	if !ok {
		return Section{}, false
	}
	return r.schema.Sections[i], true
}

// Schema returns a copy of the full schema for presentation.
func (r *Registry) Schema() Schema {
	s := r.schema
	s.Sections = r.Sections()
	return s
}

func validateDocument(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode schema: %w", err)
	}

	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("convert schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("sections.schema.json", bytes.NewReader(sectionsSchema)); err != nil {
		return fmt.Errorf("add meta schema: %w", err)
	}
	meta, err := compiler.Compile("sections.schema.json")
	if err != nil {
		return fmt.Errorf("compile meta schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return fmt.Errorf("convert schema: %w", err)
	}
	if err := meta.Validate(doc); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	return nil
}

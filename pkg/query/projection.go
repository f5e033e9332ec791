// Package query builds parameterized PostgreSQL SELECT statements from a
// projection of view names onto table columns.
package query

import "strings"

// ProjectionMap maps view names (the names callers filter and sort by) to
// alias-qualified columns. Columns projected after Join belong to the
// joined table.
type ProjectionMap struct {
	table   string
	alias   string
	current string
	from    string
	columns map[string]string
	order   []string
}

func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	p := &ProjectionMap{
		table:   schema + "." + table + " " + alias,
		alias:   alias,
		current: alias,
		columns: make(map[string]string),
	}
	p.from = p.table
	return p
}

// Project maps column of the current table to viewName.
func (p *ProjectionMap) Project(column, viewName string) *ProjectionMap {
	qualified := p.current + "." + column
	p.columns[viewName] = qualified
	p.order = append(p.order, qualified)
	return p
}

// Join appends "kind schema.table alias ON on" to the FROM clause and makes
// alias the current table.
func (p *ProjectionMap) Join(schema, table, alias, kind, on string) *ProjectionMap {
	p.from += " " + kind + " " + schema + "." + table + " " + alias + " ON " + on
	p.current = alias
	return p
}

func (p *ProjectionMap) Alias() string { return p.alias }

// Table is the base table as "schema.table alias".
func (p *ProjectionMap) Table() string { return p.table }

// From is the FROM clause body including joins.
func (p *ProjectionMap) From() string { return p.from }

// Column returns the qualified column for viewName, or viewName itself when
// it is not mapped. Names taken from requests go through Lookup instead.
func (p *ProjectionMap) Column(viewName string) string {
	if col, ok := p.columns[viewName]; ok {
		return col
	}
	return viewName
}

func (p *ProjectionMap) Lookup(viewName string) (string, bool) {
	col, ok := p.columns[viewName]
	return col, ok
}

// Columns is the select list in projection order.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.order, ", ")
}

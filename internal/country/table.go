// Package country maps ISO 3166 country names to alpha-2 codes and back.
package country

import "strings"

// Entry pairs a country name with its two-letter code
type Entry struct {
	Name string
	Code string
}

// Table is an immutable bidirectional lookup
type Table struct {
	byName map[string]string
	byCode map[string]string
}

// NewTable builds a table from entries. Later duplicates are ignored.
func NewTable(entries []Entry) *Table {
	t := &Table{
		byName: make(map[string]string, len(entries)),
		byCode: make(map[string]string, len(entries)),
	}
	for _, e := range entries {
		name := strings.ToLower(e.Name)
		code := strings.ToUpper(e.Code)
		if _, ok := t.byName[name]; !ok {
			t.byName[name] = code
		}
		if _, ok := t.byCode[code]; !ok {
			t.byCode[code] = e.Name
		}
	}
	return t
}

var defaultTable = NewTable(iso3166)

// Default returns the table of ISO 3166 countries
func Default() *Table {
	return defaultTable
}

// CodeForName looks up a code by country name, ignoring case
func (t *Table) CodeForName(name string) (string, bool) {
	code, ok := t.byName[strings.ToLower(strings.TrimSpace(name))]
	return code, ok
}

// NameForCode looks up the country name for an exact code
func (t *Table) NameForCode(code string) (string, bool) {
	name, ok := t.byCode[code]
	return name, ok
}

// IsCode reports whether s is a known code, ignoring case
func (t *Table) IsCode(s string) bool {
	_, ok := t.byCode[strings.ToUpper(s)]
	return ok
}

// HasCodePrefix reports whether the first two characters of s form a known code
func (t *Table) HasCodePrefix(s string) bool {
	if len(s) < 2 {
		return false
	}
	return t.IsCode(s[:2])
}

// Len returns the number of codes in the table
func (t *Table) Len() int {
	return len(t.byCode)
}

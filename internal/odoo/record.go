package odoo

import (
	"github.com/shopspring/decimal"
)

// Domain is an Odoo search filter; conditions are ANDed
type Domain [][]any

// Where appends a condition
func (d Domain) Where(field, op string, value any) Domain {
	return append(d, []any{field, op, value})
}

func (d Domain) args() []any {
	out := make([]any, len(d))
	for i, c := range d {
		out[i] = c
	}
	return out
}

// Record is one row returned by search_read.
// Odoo reports unset fields as false, so every accessor tolerates it.
type Record map[string]any

// Int returns an integer field or zero
func (r Record) Int(key string) int {
	n, _ := r[key].(int)
	return n
}

// String returns a text field or ""
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Decimal returns a numeric field as a decimal
func (r Record) Decimal(key string) decimal.Decimal {
	switch v := r[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	}
	return decimal.Zero
}

// Many2One returns the id and display name of a relation field
func (r Record) Many2One(key string) (int, string) {
	pair, ok := r[key].([]any)
	if !ok || len(pair) == 0 {
		return 0, ""
	}
	id, _ := pair[0].(int)
	var name string
	if len(pair) > 1 {
		name, _ = pair[1].(string)
	}
	return id, name
}

// IDs returns the ids of a x2many field, skipping anything that is not an integer
func (r Record) IDs(key string) []int {
	list, ok := r[key].([]any)
	if !ok {
		return nil
	}
	ids := make([]int, 0, len(list))
	for _, v := range list {
		if id, ok := v.(int); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

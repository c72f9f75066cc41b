// Package resolver fills identifying fields a document left empty.
// Values already present are never overwritten.
package resolver

import (
	"strings"
	"unicode"

	"github.com/rezonia/finvoice-bridge/internal/country"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

// DefaultCountryCode is used when no other source yields a country
const DefaultCountryCode = "FI"

// Resolver derives tax identifiers and country fields
type Resolver struct {
	table        *country.Table
	countryChain Chain
}

// New creates a resolver over the given country table
func New(table *country.Table) *Resolver {
	return &Resolver{
		table: table,
		countryChain: Chain{
			IDPrefix{Table: table},
			CountryName{Table: table},
			IBANPrefix{},
			Fixed{Code: DefaultCountryCode},
		},
	}
}

// Default returns a resolver over the ISO country table
func Default() *Resolver {
	return New(country.Default())
}

// TaxIdentifier normalizes a beneficiary id to country code plus digits.
// It sets the seller's country code when that was empty.
func (r *Resolver) TaxIdentifier(seller *model.Party, raw string) string {
	id := strings.TrimSpace(raw)

	code := seller.Address.CountryCode
	if code == "" {
		code, _, _ = r.countryChain.Resolve(Input{Party: seller, TaxID: id})
		seller.Address.CountryCode = code
	}

	if r.table.HasCodePrefix(id) {
		id = id[2:]
	}
	id = strings.Map(func(c rune) rune {
		if c == '-' || unicode.IsSpace(c) {
			return -1
		}
		return c
	}, id)

	return code + id
}

// Country makes a party's country code and name consistent.
// When both are absent the code is taken from taxID.
func (r *Resolver) Country(party *model.Party, taxID string) []*model.ResolutionGap {
	var gaps []*model.ResolutionGap
	addr := &party.Address

	if addr.CountryCode == "" && addr.CountryName == "" {
		if len(taxID) >= 2 {
			addr.CountryCode = strings.ToUpper(taxID[:2])
		} else {
			gaps = append(gaps, model.NewResolutionGap("country_code", "no country source"))
		}
	}

	if addr.CountryCode == "" && addr.CountryName != "" {
		if code, ok := r.table.CodeForName(addr.CountryName); ok {
			addr.CountryCode = code
		} else {
			gaps = append(gaps, model.NewResolutionGap("country_code", "unknown country name "+addr.CountryName))
		}
	}

	if addr.CountryName == "" && addr.CountryCode != "" {
		if name, ok := r.table.NameForCode(addr.CountryCode); ok {
			addr.CountryName = name
		} else {
			gaps = append(gaps, model.NewResolutionGap("country_name", "unknown country code "+addr.CountryCode))
		}
	}

	return gaps
}

// CountryPrefix returns the upper-cased country code id starts with, or ""
func (r *Resolver) CountryPrefix(id string) string {
	id = strings.TrimSpace(id)
	if !r.table.HasCodePrefix(id) {
		return ""
	}
	return strings.ToUpper(id[:2])
}

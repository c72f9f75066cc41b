package resolver

import (
	"strings"

	"github.com/rezonia/finvoice-bridge/internal/country"
	"github.com/rezonia/finvoice-bridge/internal/model"
)

// Input is what a strategy may look at
type Input struct {
	Party *model.Party
	TaxID string
}

// Strategy derives one value or reports not found
type Strategy interface {
	Name() string
	Resolve(in Input) (string, bool)
}

// Chain evaluates strategies in order and stops at the first hit
type Chain []Strategy

// Resolve returns the first found value and the name of the strategy that produced it
func (c Chain) Resolve(in Input) (value, source string, ok bool) {
	for _, s := range c {
		if v, found := s.Resolve(in); found {
			return v, s.Name(), true
		}
	}
	return "", "", false
}

// IDPrefix takes the country code from the tax id's first two characters
type IDPrefix struct {
	Table *country.Table
}

func (IDPrefix) Name() string { return "id_prefix" }

func (s IDPrefix) Resolve(in Input) (string, bool) {
	id := strings.TrimSpace(in.TaxID)
	if !s.Table.HasCodePrefix(id) {
		return "", false
	}
	return strings.ToUpper(id[:2]), true
}

// CountryName maps the party's country name through the table
type CountryName struct {
	Table *country.Table
}

func (CountryName) Name() string { return "country_name" }

func (s CountryName) Resolve(in Input) (string, bool) {
	if in.Party == nil || in.Party.Address.CountryName == "" {
		return "", false
	}
	return s.Table.CodeForName(in.Party.Address.CountryName)
}

// IBANPrefix takes the first two characters of the party's account id
type IBANPrefix struct{}

func (IBANPrefix) Name() string { return "iban_prefix" }

func (IBANPrefix) Resolve(in Input) (string, bool) {
	if in.Party == nil {
		return "", false
	}
	acc := strings.TrimSpace(in.Party.Bank.AccountID)
	if len(acc) < 2 {
		return "", false
	}
	return strings.ToUpper(acc[:2]), true
}

// Fixed always yields Code
type Fixed struct {
	Code string
}

func (Fixed) Name() string { return "default" }

func (s Fixed) Resolve(Input) (string, bool) {
	return s.Code, s.Code != ""
}

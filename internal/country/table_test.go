package country_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/finvoice-bridge/internal/country"
)

func TestDefault_Size(t *testing.T) {
	assert.Equal(t, 248, country.Default().Len())
}

func TestCodeForName(t *testing.T) {
	tbl := country.Default()

	tests := []struct {
		name     string
		expected string
		found    bool
	}{
		{"Finland", "FI", true},
		{"finland", "FI", true},
		{"  SWEDEN ", "SE", true},
		{"United States", "US", true},
		{"Atlantis", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := tbl.CodeForName(tt.name)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestNameForCode(t *testing.T) {
	tbl := country.Default()

	name, ok := tbl.NameForCode("FI")
	assert.True(t, ok)
	assert.Equal(t, "Finland", name)

	// exact match only
	_, ok = tbl.NameForCode("fi")
	assert.False(t, ok)

	_, ok = tbl.NameForCode("XX")
	assert.False(t, ok)
}

func TestHasCodePrefix(t *testing.T) {
	tbl := country.Default()

	assert.True(t, tbl.HasCodePrefix("FI12345678"))
	assert.True(t, tbl.HasCodePrefix("fi 1234567-8"))
	assert.False(t, tbl.HasCodePrefix("1234567-8"))
	assert.False(t, tbl.HasCodePrefix("F"))
	assert.True(t, tbl.IsCode("se"))
}

func TestNewTable_Isolated(t *testing.T) {
	tbl := country.NewTable([]country.Entry{
		{Name: "Finland", Code: "fi"},
		{Name: "Suomi", Code: "FI"},
	})

	code, ok := tbl.CodeForName("suomi")
	assert.True(t, ok)
	assert.Equal(t, "FI", code)

	name, _ := tbl.NameForCode("FI")
	assert.Equal(t, "Finland", name)
	assert.Equal(t, 1, tbl.Len())

	_, ok = country.Default().CodeForName("Suomi")
	assert.False(t, ok)
}

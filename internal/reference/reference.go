// Package reference computes Finnish payment reference numbers.
package reference

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// ErrNotDigits is returned when the checksum input is empty or not numeric
var ErrNotDigits = errors.New("reference: input must be a non-empty digit string")

var weights = [3]int{7, 3, 1}

// Checksum returns the 7-3-1 check digit for digits
func Checksum(digits string) (string, error) {
	if digits == "" {
		return "", ErrNotDigits
	}
	sum := 0
	for i := 0; i < len(digits); i++ {
		c := digits[len(digits)-1-i]
		if c < '0' || c > '9' {
			return "", ErrNotDigits
		}
		sum += int(c-'0') * weights[i%3]
	}
	return string(rune('0' + (10-sum%10)%10)), nil
}

// DigitSource yields random decimal digits
type DigitSource interface {
	Digits(n int) (string, error)
}

// CryptoSource draws digits from crypto/rand
type CryptoSource struct{}

// Digits returns n random decimal digits
func (CryptoSource) Digits(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// baseLength is the size of a generated base when the seed has no trailing digits
const baseLength = 9

// Generator creates EPI references
type Generator struct {
	Source DigitSource
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{Source: CryptoSource{}}
}

// Generate builds a reference from the trailing digits of seed plus a check digit.
// A seed without trailing digits gets a random base.
func (g *Generator) Generate(seed string) (string, error) {
	base := TrailingDigits(seed)
	if base == "" {
		var err error
		base, err = g.source().Digits(baseLength)
		if err != nil {
			return "", err
		}
	}
	check, err := Checksum(base)
	if err != nil {
		return "", err
	}
	return base + check, nil
}

// MessageID returns a fresh nine digit transmission id
func (g *Generator) MessageID() (string, error) {
	return g.source().Digits(baseLength)
}

func (g *Generator) source() DigitSource {
	if g == nil || g.Source == nil {
		return CryptoSource{}
	}
	return g.Source
}

// Valid reports whether ref ends with its correct check digit
func Valid(ref string) bool {
	ref = strings.ReplaceAll(ref, " ", "")
	if len(ref) < 2 {
		return false
	}
	check, err := Checksum(ref[:len(ref)-1])
	if err != nil {
		return false
	}
	return check == ref[len(ref)-1:]
}

// TrailingDigits returns the run of ASCII digits at the end of s
func TrailingDigits(s string) string {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	return s[i:]
}

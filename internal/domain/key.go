package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// KeyStatus classifies a raw (railroad, milepost) pair.
type KeyStatus int

const (
	KeyValid KeyStatus = iota
	// KeyMissing means the railroad or milepost field was absent.
	KeyMissing
	// KeyMalformed means the milepost did not parse as a decimal even
	// after suffix stripping.
	KeyMalformed
)

// MilepostKey is the canonical fallback-matching key plus the repair
// provenance that feeds the downstream confidence flag.
type MilepostKey struct {
	Railroad string  // canonical railroad code, uppercased and alias-resolved
	Milepost float64 // numeric milepost value
	Status   KeyStatus

	// AliasResolved is set when the railroad code changed during alias
	// resolution (e.g. a historical reporting code).
	AliasResolved bool
	// SuffixStripped is set when a trailing letter suffix (spur/branch
	// marker) was removed from the milepost number.
	SuffixStripped bool
	// UnknownRailroad is set when the code was not in the alias table and
	// passed through unchanged.
	UnknownRailroad bool
}

// LowConfidence reports whether any repair fired during normalization.
func (k MilepostKey) LowConfidence() bool {
	return k.AliasResolved || k.SuffixStripped || k.UnknownRailroad
}

// KeyConfig carries the normalization policy: the railroad alias table
// and whether milepost suffix stripping is tolerated. Passed explicitly
// so key normalization stays a pure function of (input, configuration).
type KeyConfig struct {
	Aliases     AliasTable
	StripSuffix bool
}

// NormalizeKey canonicalizes a raw (railroad, milepost) pair.
// The railroad is trimmed, uppercased, and resolved through the alias
// table; the milepost is parsed as a decimal, tolerating one trailing
// letter suffix when stripping is enabled.
func NormalizeKey(railroad, milepost string, cfg KeyConfig) MilepostKey {
	railroad = strings.ToUpper(strings.TrimSpace(railroad))
	milepost = strings.TrimSpace(milepost)
	if railroad == "" || milepost == "" {
		return MilepostKey{Status: KeyMissing}
	}

	key := MilepostKey{Status: KeyValid}
	key.Railroad, key.AliasResolved, key.UnknownRailroad = cfg.Aliases.Resolve(railroad)

	numeric := milepost
	if cfg.StripSuffix {
		if stripped, ok := stripLetterSuffix(numeric); ok {
			numeric = stripped
			key.SuffixStripped = true
		}
	}

	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return MilepostKey{Status: KeyMalformed}
	}
	key.Milepost = value
	return key
}

// stripLetterSuffix removes a single trailing letter from a milepost
// string ("12.5A" -> "12.5"). Returns ok=false when there is nothing to
// strip or more than the numeric body would remain malformed anyway.
func stripLetterSuffix(s string) (string, bool) {
	runes := []rune(s)
	if len(runes) < 2 {
		return s, false
	}
	last := runes[len(runes)-1]
	if !unicode.IsLetter(last) {
		return s, false
	}
	return string(runes[:len(runes)-1]), true
}

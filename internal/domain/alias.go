package domain

import (
	"fmt"
	"strings"
)

// AliasTable maps reporting railroad codes to canonical codes. Canonical
// codes map to themselves; anything absent is an unknown code and passes
// through unresolved.
type AliasTable map[string]string

// Resolve canonicalizes an already trimmed/uppercased railroad code.
// Returns the canonical code, whether resolution changed it, and whether
// the code was unknown to the table.
func (t AliasTable) Resolve(code string) (canonical string, resolved, unknown bool) {
	mapped, ok := t[code]
	if !ok {
		return code, false, true
	}
	return mapped, mapped != code, false
}

// Validate rejects malformed alias tables before any record is processed:
// empty codes, and aliases chaining to a target that is itself an alias
// of something else (a table like A->B, B->C would make resolution
// depend on iteration order).
func (t AliasTable) Validate() error {
	for from, to := range t {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return fmt.Errorf("alias table: empty code in %q -> %q", from, to)
		}
		if from != strings.ToUpper(strings.TrimSpace(from)) {
			return fmt.Errorf("alias table: code %q is not trimmed uppercase", from)
		}
		final, ok := t[to]
		if ok && final != to {
			return fmt.Errorf("alias table: %q -> %q chains to %q", from, to, final)
		}
	}
	return nil
}

// DefaultAliases is the built-in railroad alias table: the Class I
// canonical codes plus the historical/reporting codes folded into them
// over decades of mergers. Calls allocate a fresh copy so callers can
// extend it without mutating the default.
func DefaultAliases() AliasTable {
	base := AliasTable{
		// Canonical codes map to themselves.
		"AMTK": "AMTK",
		"BNSF": "BNSF",
		"CN":   "CN",
		"CPKC": "CPKC",
		"CSXT": "CSXT",
		"KCS":  "KCS",
		"NS":   "NS",
		"UP":   "UP",

		// Historical and reporting variants.
		"ATSF": "BNSF", // Atchison, Topeka and Santa Fe
		"BN":   "BNSF", // Burlington Northern
		"CP":   "CPKC", // Canadian Pacific
		"CR":   "NS",   // Conrail (NS share)
		"CSX":  "CSXT",
		"DRGW": "UP", // Denver and Rio Grande Western
		"GTW":  "CN", // Grand Trunk Western
		"IC":   "CN", // Illinois Central
		"MP":   "UP", // Missouri Pacific
		"NW":   "NS", // Norfolk and Western
		"SOO":  "CPKC",
		"SOU":  "NS", // Southern Railway
		"SP":   "UP", // Southern Pacific
		"WC":   "CN", // Wisconsin Central
	}

	out := make(AliasTable, len(base))
	for k, v := range base {
		out[k] = v
	}
	return out
}

// Package safetylimits provides medication-class dose ceilings used by
// pattern validation. Ceilings come from a static formulary table, optionally
// refreshed from a remote formulary service behind a circuit breaker.
package safetylimits

import "strings"

// DefaultCeiling is the absolute per-dose limit applied when a medication's
// safety class is unknown.
const DefaultCeiling = 1000.0

// staticCeilings is the built-in formulary. Values are per-dose maxima in
// the medication's own units.
var staticCeilings = map[string]float64{
	"corticosteroid": 20,
	"anticoagulant":  15,
	"opioid":         120,
	"thyroid":        0.3,
	"general":        DefaultCeiling,
}

// CeilingFor returns the per-dose ceiling for a safety class. Unknown
// classes get the absolute limit rather than a rejection: the validator's
// structural bounds still apply.
func CeilingFor(class string) float64 {
	if v, ok := staticCeilings[normalize(class)]; ok {
		return v
	}
	return DefaultCeiling
}

func normalize(class string) string {
	return strings.ToLower(strings.TrimSpace(class))
}

package settlement

import (
	"strings"
)

// One leg of a settlement reference
type Leg struct {
	Label     string `json:"label"`
	Signature string `json:"signature"`
}

// Splits references like "TX1:<sig> TX2:<sig>" into legs.
// A plain signature is a single leg without a label.
func ParseReference(reference string) (out []Leg) {
	for _, part := range strings.Fields(reference) {
		label, signature, found := strings.Cut(part, ":")
		if !found {
			out = append(out, Leg{Signature: part})
			continue
		}
		out = append(out, Leg{Label: label, Signature: signature})
	}
	return
}

// Signature identifying the settlement on the ledger, the last leg of multi-leg references
func PrimarySignature(reference string) string {
	legs := ParseReference(reference)
	if len(legs) == 0 {
		return ""
	}
	return legs[len(legs)-1].Signature
}

// Package category normalises event category labels and resolves their map colours.
package category

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sentinel is the catch-all label. It only becomes a feature's primary category
// when no other label is available.
const Sentinel = "Other"

// Normalize returns the lookup and filter key for a raw label: NFC-composed,
// trimmed and lowercased. Empty input yields "".
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
}

// Primary returns the first label that is neither blank nor the sentinel,
// trimmed. Without such a label it falls back to the first raw label, and to
// the sentinel when that is empty too.
func Primary(categories []string) string {
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c != "" && c != Sentinel {
			return c
		}
	}
	if len(categories) > 0 && categories[0] != "" {
		return categories[0]
	}
	return Sentinel
}

// Key is Normalize(Primary(categories)).
func Key(categories []string) string {
	return Normalize(Primary(categories))
}

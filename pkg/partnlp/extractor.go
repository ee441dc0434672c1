// Package partnlp extracts appliance part and model identifiers from
// unstructured customer text using regex patterns.
//
// Extraction is deliberately simple: when a message mentions several parts or
// models, the first occurrence by position wins.
package partnlp

import (
	"regexp"
	"strings"
)

var (
	// "PS" followed by seven or more digits, any case.
	partRe = regexp.MustCompile(`(?i)ps\d{7,}`)
	// Three upper-case letters, digits, then optional trailing alphanumerics.
	// Case-sensitive on the original text.
	modelRe = regexp.MustCompile(`\b([A-Z]{3}\d+[A-Z0-9]*)\b`)
)

// Entities holds identifiers found in a message. Empty strings mean absent.
type Entities struct {
	PartID  string
	ModelID string
}

// HasPart reports whether a part identifier was found.
func (e Entities) HasPart() bool { return e.PartID != "" }

// HasModel reports whether a model identifier was found.
func (e Entities) HasModel() bool { return e.ModelID != "" }

// Extract returns the first part identifier (upper-cased) and the first model
// identifier in text.
func Extract(text string) Entities {
	var e Entities
	if m := partRe.FindString(text); m != "" {
		e.PartID = strings.ToUpper(m)
	}
	if m := modelRe.FindStringSubmatch(text); m != nil {
		e.ModelID = m[1]
	}
	return e
}

// ContainsAny reports whether s contains any of the keywords as a substring.
// Callers pass already lower-cased text.
func ContainsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

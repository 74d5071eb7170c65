// Package labels converts between the raw label text users type and the
// parsed label list stored with each account.
package labels

import (
	"strings"

	"github.com/split73/SaaSoft-test/store"
)

// Separator splits labels in raw input
const Separator = ";"

// Parse splits raw on Separator, trimming whitespace and dropping empty parts.
// Order and duplicates are kept.
func Parse(raw string) []store.AccountLabel {
	result := []store.AccountLabel{}
	for _, part := range strings.Split(raw, Separator) {
		text := strings.TrimSpace(part)
		if text == "" {
			continue
		}
		result = append(result, store.AccountLabel{Text: text})
	}
	return result
}

// Format renders labels back into raw input form
func Format(labels []store.AccountLabel) string {
	texts := make([]string, 0, len(labels))
	for _, l := range labels {
		texts = append(texts, l.Text)
	}
	return strings.Join(texts, Separator+" ")
}

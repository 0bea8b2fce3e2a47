package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// the registry spells place names with the traditional 臺, people often
// type the common 台.
var variantReplacer = strings.NewReplacer("台", "臺")

// NormalizeName folds a place name into the form used by the registry so
// user input can be compared against it.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, "")
	return variantReplacer.Replace(name)
}

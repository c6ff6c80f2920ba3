// utils/validation.go
package utils

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone strips separators and reports whether what is left is a
// valid international number.
func NormalizePhone(phone string) (string, bool) {
	cleaned := phoneSeparators.Replace(strings.TrimSpace(phone))
	return cleaned, phonePattern.MatchString(cleaned)
}

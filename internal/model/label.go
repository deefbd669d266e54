package model

import "strings"

// NormalizeLabel lower-cases and trims a detection class label.
// Every class comparison in the service goes through it.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

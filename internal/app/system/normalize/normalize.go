// Package normalize holds small helpers that put user-supplied strings into
// canonical form before they are stored or compared.
package normalize

import "strings"

// Email trims whitespace and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace. Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role trims and lowercases a role string.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Currency trims and lowercases an ISO currency code the way the payment
// gateway expects it ("usd", "eur").
func Currency(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

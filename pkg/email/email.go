// Package email derives presentable names from addresses. HR feeds are not
// always complete; a greeting built from the address beats "Hello ,".
package email

import (
	"strings"
	"unicode"
)

// DeriveNameFromEmail splits an address's local part into a first and last
// name, capitalized. Falls back to "User" when the address yields nothing.
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

// GreetingName picks a short name for addressing someone: the first word of
// the display name when present, otherwise a name derived from the address.
func GreetingName(displayName, address string) string {
	if fields := strings.Fields(displayName); len(fields) > 0 {
		return fields[0]
	}
	first, _ := DeriveNameFromEmail(address)
	return first
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

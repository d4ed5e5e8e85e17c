package service

import "strings"

// Length cap per tag token. Overlong tokens are dropped entirely, never
// truncated.
const maxTagLength = 60

// SanitizeTags normalizes a space-delimited tag string: lower-cases every
// token, drops tokens over the length cap and collapses whitespace to
// single spaces. Idempotent, sanitizing twice changes nothing.
func SanitizeTags(tags string) string {
	fields := strings.Fields(tags)

	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if len(f) > maxTagLength {
			continue
		}

		kept = append(kept, f)
	}

	return strings.Join(kept, " ")
}

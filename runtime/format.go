package runtime

import (
	"regexp"
	"strings"
	"unicode"
)

var snakeCaseRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// IsSnakeCase reports whether name is a valid action or task name.
func IsSnakeCase(name string) bool {
	return snakeCaseRe.MatchString(name)
}

// SnakeCase converts names like "sendGreeting", "send-greeting" or
// "send.greeting" to "send_greeting". It is used to suggest a valid name.
func SnakeCase(name string) string {
	var sb strings.Builder
	prevLower := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '-' || r == '.' || r == ' ':
			sb.WriteByte('_')
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			sb.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	out := strings.Trim(sb.String(), "_")
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return out
}

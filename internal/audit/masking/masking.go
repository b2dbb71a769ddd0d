package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = []string{"password", "secret", "token", "authorization"}

// MaskSecret redacts a secret while keeping the last four characters.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskSensitive copies metadata, redacting values whose key looks like a
// credential. Nested maps are walked.
func MaskSensitive(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if isSensitive(trimmed) {
			if s, ok := value.(string); ok {
				out[trimmed] = MaskSecret(s)
			} else {
				out[trimmed] = maskToken
			}
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[trimmed] = MaskSensitive(nested)
			continue
		}
		out[trimmed] = value
	}
	return out
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

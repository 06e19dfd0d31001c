package insight

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON finds the first complete JSON object in a provider response,
// tolerating markdown fences and surrounding prose.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		ch := response[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}

	return ""
}

// decodeStrict extracts the JSON object from a provider response and
// unmarshals it into v. Any failure is a malformed-response error, which
// callers treat as a provider failure rather than a partial insight.
func decodeStrict(response string, v any) error {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// coerceEnum normalizes a provider-supplied label against the allowed set,
// case-insensitively. Returns the canonical form or an error.
func coerceEnum(value string, allowed ...string) (string, error) {
	trimmed := strings.TrimSpace(value)
	for _, a := range allowed {
		if strings.EqualFold(trimmed, a) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in %v", ErrMalformedResponse, value, allowed)
}

// requireList rejects empty required list fields.
func requireList(name string, list []string) error {
	if len(list) == 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedResponse, name)
	}
	for _, item := range list {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%w: empty entry in %s", ErrMalformedResponse, name)
		}
	}
	return nil
}

// requireText rejects empty required string fields.
func requireText(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: missing %s", ErrMalformedResponse, name)
	}
	return nil
}

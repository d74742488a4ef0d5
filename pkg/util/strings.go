package util

import (
	"fmt"
	"strings"
)

// SplitCommaSeparated splits a comma-separated string and trims whitespace from each element.
// Empty input returns nil.
func SplitCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// ParseAssignments parses "name=value" arguments into an ordered list of
// pairs. Names are lowercased and a leading "$" is dropped so that
// "$TX_MTU=9000" and "tx_mtu=9000" are equivalent.
func ParseAssignments(args []string) ([][2]string, error) {
	out := make([][2]string, 0, len(args))
	for _, a := range args {
		name, value, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid assignment %q: expected name=value", a)
		}
		out = append(out, [2]string{NormalizeFieldName(name), strings.TrimSpace(value)})
	}
	return out, nil
}

// NormalizeFieldName maps a user-supplied field name to the lowercase
// form without the "$" prefix.
func NormalizeFieldName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "$"))
}

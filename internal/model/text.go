package model

import "strings"

func lower(s string) string {
	return strings.ToLower(s)
}

func containsAny(text string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

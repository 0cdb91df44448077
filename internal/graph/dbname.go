package graph

import (
	"regexp"
	"strings"
)

const maxDatabaseNameLen = 63

var dbNameDisallowed = regexp.MustCompile(`[^a-z0-9.-]`)

// deriveDatabaseName builds a valid, predictable database name from the
// domain row, e.g. "db-2825f09f-chat.acme.ai".
func deriveDatabaseName(domainID, domainName string) string {
	idPart := strings.ReplaceAll(domainID, "-", "")
	if len(idPart) > 8 {
		idPart = idPart[:8]
	}
	return sanitizeDatabaseName(idPart + "-" + domainName)
}

// sanitizeDatabaseName lowercases, replaces disallowed characters with
// hyphens, forces a leading letter, and caps the length at 63.
func sanitizeDatabaseName(s string) string {
	s = strings.ToLower(s)
	s = dbNameDisallowed.ReplaceAllString(s, "-")
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		s = "db-" + s
	}
	if len(s) > maxDatabaseNameLen {
		s = s[:maxDatabaseNameLen]
	}
	return s
}

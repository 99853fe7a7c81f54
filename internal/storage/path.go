package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var componentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// Transcript formats and the file extension each is stored under.
const (
	FormatJSON    = "json"
	FormatParquet = "parquet"
)

// TranscriptPath is the object key of an archived transcript. Keys derive
// from the session id alone so a transcript can be found again after the
// session has left memory.
func TranscriptPath(sessionID, format string) (string, error) {
	if err := ValidateComponent(sessionID, "session id"); err != nil {
		return "", err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case FormatJSON, FormatParquet:
	default:
		return "", fmt.Errorf("unsupported transcript format %q", format)
	}
	return path.Join("sessions", sessionID, "transcript."+format), nil
}

// ValidateComponent rejects values that are unsafe as a single key segment.
func ValidateComponent(value, field string) error {
	if !componentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}

package secrets

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError lists required environment variables that are unset or
// blank.
type ValidationError struct {
	Missing []string
	Empty   []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Empty) > 0 {
		parts = append(parts, fmt.Sprintf("empty values for required environment variables: %s", strings.Join(e.Empty, ", ")))
	}
	return strings.Join(parts, "; ")
}

// ValidateRequired checks that every named environment variable is set to
// a non-blank value, reporting offenders in the order given.
func ValidateRequired(keys ...string) error {
	var missing, empty []string
	for _, key := range keys {
		value, ok := os.LookupEnv(key)
		switch {
		case !ok:
			missing = append(missing, key)
		case strings.TrimSpace(value) == "":
			empty = append(empty, key)
		}
	}
	if len(missing) > 0 || len(empty) > 0 {
		return &ValidationError{Missing: missing, Empty: empty}
	}
	return nil
}

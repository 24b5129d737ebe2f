package persistence

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// normalizeIdentifier trims the input and enforces a lowercase snake_case table or column name.
// DDL built from it is still quoted with pgx.Identifier.
func normalizeIdentifier(kind, input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("%s name is required", kind)
	}

	if !identifierPattern.MatchString(trimmed) {
		return "", fmt.Errorf("invalid %s name %q: must match ^[a-z][a-z0-9_]*$", kind, trimmed)
	}

	return trimmed, nil
}

// validateRepairTarget checks the table and every optional column before any SQL runs.
func validateRepairTarget(table string, columns []OptionalColumn) (string, error) {
	name, err := normalizeIdentifier("table", table)
	if err != nil {
		return "", err
	}

	var errs []error
	for _, col := range columns {
		if _, err := normalizeIdentifier("column", col.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return name, errors.Join(errs...)
}

package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTestDatabasePattern matches the reserved names of scratch and CI databases.
const DefaultTestDatabasePattern = `(?i)(^test_|_test$|^test$)`

// DatabaseFilter decides which registered databases take part in a login scan.
type DatabaseFilter struct {
	reserved *regexp.Regexp
}

// NewDatabaseFilter compiles pattern; an empty pattern falls back to DefaultTestDatabasePattern.
func NewDatabaseFilter(pattern string) (*DatabaseFilter, error) {
	if strings.TrimSpace(pattern) == "" {
		pattern = DefaultTestDatabasePattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile test database pattern: %w", err)
	}
	return &DatabaseFilter{reserved: re}, nil
}

// Skip reports whether identifier is absent or reserved for tests.
func (f *DatabaseFilter) Skip(identifier *string) bool {
	if identifier == nil {
		return true
	}
	name := strings.TrimSpace(*identifier)
	if name == "" {
		return true
	}
	return f.reserved.MatchString(name)
}

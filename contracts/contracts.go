// Package contracts embeds the OpenAPI documents served and enforced by the API.
package contracts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed auth.yaml
var authYAML []byte

// AuthYAML returns the raw auth contract.
func AuthYAML() []byte {
	return authYAML
}

// LoadAuth parses and validates the auth contract.
func LoadAuth() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(authYAML)
	if err != nil {
		return nil, fmt.Errorf("load auth contract: %w", err)
	}
	if err := spec.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate auth contract: %w", err)
	}
	return spec, nil
}

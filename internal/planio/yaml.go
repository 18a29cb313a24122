package planio

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/harrison/conductor/internal/models"
)

// YAMLParser parses a plan document written as YAML, matching the
// teacher's stack choice (gopkg.in/yaml.v3) used throughout its own
// config and plan loaders.
type YAMLParser struct{}

// NewYAMLParser constructs a YAMLParser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

// Parse decodes a wirePlan from r and converts it to a models.Plan.
func (p *YAMLParser) Parse(r io.Reader) (*models.Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read yaml plan: %w", err)
	}

	var wire wirePlan
	if err := yaml.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parse yaml plan: %w", err)
	}
	if wire.Name == "" {
		return nil, fmt.Errorf("yaml plan: name is required")
	}
	if len(wire.Tasks) == 0 {
		return nil, fmt.Errorf("yaml plan: at least one task is required")
	}

	return wire.toPlan(), nil
}

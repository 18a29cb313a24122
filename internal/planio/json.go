package planio

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/harrison/conductor/internal/models"
)

// JSONParser parses a plan document written as JSON, per SPEC_FULL.md §6's
// "Plan parsing" ambient-stack requirement — encoding/json over the same
// wirePlan schema the YAML parser uses.
type JSONParser struct{}

// NewJSONParser constructs a JSONParser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// Parse decodes a wirePlan from r and converts it to a models.Plan.
func (p *JSONParser) Parse(r io.Reader) (*models.Plan, error) {
	var wire wirePlan
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("parse json plan: %w", err)
	}
	if wire.Name == "" {
		return nil, fmt.Errorf("json plan: name is required")
	}
	if len(wire.Tasks) == 0 {
		return nil, fmt.Errorf("json plan: at least one task is required")
	}

	return wire.toPlan(), nil
}

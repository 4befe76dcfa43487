package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema produces the JSON Schema describing the configuration file.
// Useful for editor validation of config files.
func GenerateSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		// Config files use the yaml/toml field names, which match the json tags
		ExpandedStruct: true,
		DoNotReference: false,
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "stakewatch configuration"
	schema.Description = "Configuration schema for the stakewatch staking event crawler"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}

	return data, nil
}

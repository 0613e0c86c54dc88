package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefinitionFile is the file name looked up by Load.
const DefinitionFile = "skill.yaml"

// Parse decodes a skill definition. Unknown keys are rejected.
func Parse(data []byte) (*Definition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse skill definition: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("skill definition is empty")
	}

	var def Definition
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &def,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode skill definition: %w", err)
	}
	return &def, nil
}

// Load reads and parses dir/skill.yaml.
func Load(dir string) (*Definition, error) {
	data, err := os.ReadFile(filepath.Join(dir, DefinitionFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read skill definition: %w", err)
	}
	return Parse(data)
}

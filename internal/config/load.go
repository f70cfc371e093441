package config

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"go.yaml.in/yaml/v3"
)

// LoadFile reads path, interpolates ${NAME} environment references, parses
// the YAML document and validates it, returning the fully converted Config.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: reading %q: %w", ErrConfig, path, err)
	}

	return Parse(data)
}

// Parse runs the full load pipeline over an in-memory YAML document: env
// interpolation, unmarshal, structural validation, and conversion into the
// public Config type.
func Parse(data []byte) (Config, error) {
	interpolated, err := interpolateEnv(data)
	if err != nil {
		return Config{}, err
	}

	var raw rawConfig
	if err := yaml.Unmarshal(interpolated, &raw); err != nil {
		return Config{}, fmt.Errorf("%w: invalid yaml: %w", ErrConfig, err)
	}

	if raw.ExplorerURL == "" {
		return Config{}, fmt.Errorf("%w: explorer_url is required", ErrConfig)
	}

	if _, ok := raw.MessageTemplates["default"]; !ok {
		return Config{}, fmt.Errorf("%w: message_templates must define a %q entry", ErrConfig, "default")
	}

	programs, err := toPrograms(raw.Programs)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Programs:         programs,
		Notifications:    raw.Notifications,
		ExplorerURL:      raw.ExplorerURL,
		MessageTemplates: raw.MessageTemplates,
	}, nil
}

func toPrograms(raw map[string]rawProgramSpec) (map[string]ProgramSpec, error) {
	programs := make(map[string]ProgramSpec, len(raw))

	for alias, rawSpec := range raw {
		if _, ok := recognizedProgramAliases[alias]; !ok {
			return nil, fmt.Errorf("%w: unrecognized program alias %q", ErrConfig, alias)
		}

		programID, err := solana.PublicKeyFromBase58(rawSpec.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("%w: program %q: invalid program_id %q: %w", ErrConfig, alias, rawSpec.ProgramID, err)
		}

		instructions := make(map[string]InstructionRule, len(rawSpec.Instructions))
		for instructionName, rawRule := range rawSpec.Instructions {
			rule, err := rawRule.toInstructionRule(alias, instructionName)
			if err != nil {
				return nil, err
			}
			instructions[instructionName] = rule
		}

		programs[alias] = ProgramSpec{
			ProgramID:    programID,
			Instructions: instructions,
		}
	}

	return programs, nil
}

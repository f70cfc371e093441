package stream

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/tierwatch/tierwatch/internal/config"
	"github.com/tierwatch/tierwatch/internal/decode"
)

// buildRegistry wires one decode.ProgramDecoder per configured program alias
// and returns the reverse lookup the Stream Driver needs to recover a
// program's alias from the raw instruction's ProgramID.
func buildRegistry(cfg config.Config) (*decode.Registry, map[solana.PublicKey]string, error) {
	var decoders []decode.ProgramDecoder
	aliasByProgramID := make(map[solana.PublicKey]string, len(cfg.Programs))

	for alias, spec := range cfg.Programs {
		switch alias {
		case "spl_stake_pool":
			decoders = append(decoders, decode.NewStakePoolDecoder(spec.ProgramID))
		case "jito_vault":
			decoders = append(decoders, decode.NewVaultDecoder(spec.ProgramID))
		default:
			return nil, nil, fmt.Errorf("stream: no decoder wired for program alias %q", alias)
		}

		aliasByProgramID[spec.ProgramID] = alias
	}

	return decode.NewRegistry(decoders...), aliasByProgramID, nil
}

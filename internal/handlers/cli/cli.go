// Package cli adapts the teacher's urfave/cli/v3 command wiring to a
// single long-running "run" command: load the policy config and ambient
// settings, build the decode/classify/policy/notify pipeline, and drive it
// through internal/stream until an interrupt or a fatal stream error.
package cli

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
)

// Run initializes and executes the tierwatch CLI application.
func Run(ctx context.Context) error {
	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "tierwatch",
		Description:           "Monitors spl_stake_pool and jito_vault instructions and dispatches threshold notifications.",
		Usage:                 "tierwatch [command] [flags]",
		Commands: []*cli.Command{
			runCommand(),
		},
	}

	return app.Run(ctx, os.Args)
}

// Copyright (c) 2025 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Shadytel/pyossi/internal/config"
)

func initCmd(_ context.Context, opts *globalOptions) *cobra.Command {
	var (
		genOpts config.GenerateOptions
		force   bool
	)

	cmd := &cobra.Command{
		Use:          "init",
		Short:        "Write a default configuration file.",
		Example:      "ossid init --transport ssh --ssh-address console.example.net:22",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := afero.Exists(appFs, opts.configPath)
			if err != nil {
				return err
			}

			if exists && !force {
				return fmt.Errorf("%s already exists, use --force to replace it", opts.configPath)
			}

			if genOpts.HomeDir == "" {
				//nolint:errcheck // an empty home only affects the known_hosts default
				genOpts.HomeDir, _ = os.UserHomeDir()
			}

			if _, err := config.Generate(appFs, opts.configPath, genOpts); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", opts.configPath)

			return nil
		},
	}

	cmd.Flags().StringVar((*string)(&genOpts.Transport), "transport", string(config.TransportExec),
		"How to reach the switch (exec or ssh)")
	cmd.Flags().StringVar(&genOpts.ExecCommand, "exec-command", "",
		"Command carrying the session for the exec transport")
	cmd.Flags().StringSliceVar(&genOpts.ExecArgs, "exec-args", nil,
		"Arguments of the exec command, comma separated")
	cmd.Flags().StringVar(&genOpts.SSHAddress, "ssh-address", "",
		"host:port of the console server for the ssh transport")
	cmd.Flags().StringVar(&genOpts.Listen, "listen", "",
		"Address of the HTTP gateway")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration file")

	return cmd
}

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
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Shadytel/pyossi/internal/config"
)

// appFs is the filesystem the configuration is read from and written to.
var appFs = afero.NewOsFs()

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
	logLevel   string
	logFile    string
	logColor   bool
}

func RootCmd(ctx context.Context) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "ossid",
		Short: "ossid - administer a telephony switch over OSSI.",
		// Silence because we want to use our logger instead
		SilenceErrors:     true,
		SilenceUsage:      true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	defaultConfig := config.DefaultPath
	if path, ok := os.LookupEnv("OSSID_CONFIG"); ok {
		defaultConfig = path
	}

	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().BoolP("help", "h", false,
		"Help information about a command")
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfig,
		"Path to the configuration file (env OSSID_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Minimum log level, overrides the configuration")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "",
		"Write logs to this file instead of the terminal")
	cmd.PersistentFlags().BoolVar(&opts.logColor, "log-color", false,
		"Colorize log output")

	cmd.AddCommand(initCmd(ctx, opts))
	cmd.AddCommand(serveCmd(ctx, opts))
	cmd.AddCommand(queryCmd(ctx, opts))

	cmd.InitDefaultHelpCmd()

	return cmd
}

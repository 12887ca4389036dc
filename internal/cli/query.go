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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Shadytel/pyossi/internal/broker"
	"github.com/Shadytel/pyossi/internal/ossi"
)

func queryCmd(ctx context.Context, opts *globalOptions) *cobra.Command {
	var (
		fields []string
		data   map[string]string
	)

	cmd := &cobra.Command{
		Use:   "query <verb> <noun> [identifier]",
		Short: "Run a single command on the switch and print the response.",
		Example: `  ossid query list station --fields extn,name
  ossid query change station 1234 --data name="Jane Doe"`,
		Args:         cobra.RangeArgs(2, 3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := parseCommand(args, fields, data)
			if err != nil {
				return err
			}

			return runQuery(ctx, cmd, opts, command)
		},
	}

	cmd.Flags().StringSliceVarP(&fields, "fields", "f", nil,
		"Fields to read, comma separated")
	cmd.Flags().StringToStringVarP(&data, "data", "d", nil,
		"Field values to write, as name=value")

	return cmd
}

func parseCommand(args []string, fields []string, data map[string]string) (ossi.Command, error) {
	verb, err := ossi.ParseVerb(args[0])
	if err != nil {
		return ossi.Command{}, err
	}

	noun, err := ossi.ParseNoun(args[1])
	if err != nil {
		return ossi.Command{}, err
	}

	cmd := ossi.Command{Verb: verb, Noun: noun}

	if len(args) > 2 {
		cmd.Identifier = args[2]
	}

	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			cmd.Fields = append(cmd.Fields, f)
		}
	}

	for name, value := range data {
		cmd.Data = append(cmd.Data, ossi.FieldValue{Name: name, Value: value})
	}

	sort.Slice(cmd.Data, func(i, j int) bool { return cmd.Data[i].Name < cmd.Data[j].Name })

	return cmd, nil
}

func runQuery(ctx context.Context, cmd *cobra.Command, opts *globalOptions, command ossi.Command) error {
	cfg, err := loadConfig(opts, configExplicit(cmd))
	if err != nil {
		return err
	}

	// stdout carries the response.
	cleanup, err := setupLogger(logLevel(opts, cfg), opts.logFile, opts.logColor, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	//nolint:errcheck // nothing to do about it at exit
	defer cleanup()

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	dial, err := dialerFactory(cfg)
	if err != nil {
		return err
	}

	b := broker.New(registry, dial, brokerOptions(cfg)...)

	if err := b.Start(ctx); err != nil {
		return err
	}

	//nolint:errcheck // the session is going away anyway
	defer b.Close()

	log.Debug().Str("command", command.String()).Msg("Running command")

	resp, err := b.Submit(ctx, command)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")

	return encoder.Encode(resp)
}

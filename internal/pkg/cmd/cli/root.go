/*
 * Copyright 2024 The Labman Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"github.com/certlab/labman/internal/pkg/cmd/cli/costs"
	"github.com/certlab/labman/internal/pkg/cmd/cli/labs"
	"github.com/certlab/labman/internal/pkg/cmd/cli/sessions"
	"github.com/certlab/labman/internal/pkg/cmd/cli/template"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/printer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const longUsage = `Labman launches ephemeral AWS lab environments for
certification practice.

Labs are declared in catalog files which describe the CloudFormation
templates to provision, the order to provision them in, and how long the
whole thing is allowed to live. Starting a lab creates a session: its
templates are statically checked against the security rules every lab must
satisfy, its hourly cost is estimated and compared with your budget, and
only then are stacks created, in dependency order, tagged so they can
always be traced back to the session that owns them.

Sessions expire. The sweeper deletes stacks belonging to expired or
forgotten sessions, which is what keeps practising for a certification from
quietly turning into a monthly bill.

Use labman to:

  * Browse a catalog of practice labs and start them with one command.
  * Keep every lab resource tagged, time-boxed and attributable.
  * Catch overly-permissive templates (open security groups, wildcard IAM,
    public buckets) before they're ever created.
  * See what a lab will cost per hour before agreeing to run it.
  * Guarantee cleanup: delete one session, or sweep everything that has
    outlived its TTL.
`

func NewCommand(name string) *cobra.Command {

	var logLevel string
	var jsonLogs bool
	var catalogDir string

	cmd := &cobra.Command{
		Use:   name,
		Short: "Ephemeral AWS certification labs",
		Long:  longUsage,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			err := config.Load(config.ViperConfig)
			if err != nil {
				return errors.WithStack(err)
			}

			if cmd.Flags().Changed("log-level") {
				config.CurrentConfig.LogLevel = logLevel
			}
			if cmd.Flags().Changed("json-logs") {
				config.CurrentConfig.JsonLogs = jsonLogs
			}
			if cmd.Flags().Changed("catalog-dir") {
				config.CurrentConfig.CatalogDir = catalogDir
			}

			log.ConfigureLogger(config.CurrentConfig.LogLevel,
				config.CurrentConfig.JsonLogs)
			printer.SetOutput(cmd.OutOrStdout())

			return nil
		},
	}

	out := cmd.OutOrStdout()

	cmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "none",
		"log level. One of none|trace|debug|info|warn|error")
	cmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false,
		"whether to emit JSON-formatted logs")
	cmd.PersistentFlags().StringVar(&catalogDir, "catalog-dir", "",
		"directory containing lab descriptors (overrides the config file)")

	cmd.AddCommand(
		newVersionCmd(out),
		newCompletionCmd(out),
		newSweepCmd(out),
		sessions.NewSessionCmds(out),
		labs.NewLabsCmds(out),
		template.NewTemplateCmds(out),
		costs.NewCostCmds(out),
	)

	return cmd
}

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
	"context"
	"io"

	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/printer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type sweepCmd struct {
	out io.Writer
}

func newSweepCmd(out io.Writer) *cobra.Command {

	c := &sweepCmd{out: out}

	command := &cobra.Command{
		Use:   "sweep [flags]",
		Short: "Destroy expired and orphaned stacks",
		Long: `Scan CloudFormation for stacks carrying session tags and destroy any
whose session has expired or no longer exists, then mark the affected
sessions terminated. Intended to run on a schedule as a safety net for
sessions whose cleanup never ran.`,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New("too many arguments supplied")
			}
			return c.run()
		},
	}

	return command
}

func (c *sweepCmd) run() error {
	ctx := context.Background()

	mgr, err := utils.BuildManager(ctx, false)
	if err != nil {
		return errors.WithStack(err)
	}

	destroyed, err := mgr.Sweep(ctx)

	for _, stackName := range destroyed {
		_, _ = printer.Fprintf("[red]Destroyed stack '[bold]%s[reset][red]'\n",
			stackName)
	}

	if err != nil {
		return errors.WithStack(err)
	}

	if len(destroyed) == 0 {
		_, _ = printer.Fprintln("[green]Nothing to sweep")
	} else {
		_, _ = printer.Fprintf("[green]Swept [bold]%d[reset][green] stack(s)\n",
			len(destroyed))
	}

	return nil
}

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

package sessions

import (
	"context"
	"fmt"
	"io"
	"os/user"
	"sort"
	"time"

	"github.com/certlab/labman/internal/pkg/cmd"
	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/cost"
	"github.com/certlab/labman/internal/pkg/manager"
	"github.com/certlab/labman/internal/pkg/printer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type startCmd struct {
	out       io.Writer
	labId     string
	owner     string
	ttl       string
	varsFiles cmd.Files
	dryRun    bool
	force     bool
}

func newStartCmd(out io.Writer) *cobra.Command {

	c := &startCmd{out: out}

	command := &cobra.Command{
		Use:   "start [flags] lab-id",
		Short: "Start a lab session",
		Long: `Start a session of a lab from the catalog, e.g.:

	$ labman session start cicd-101

The lab's templates are validated and cost-estimated first. Validation
errors and blown budgets abort the launch unless --force is given.
`,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("the ID of the lab to start is required")
			} else if len(args) > 1 {
				return errors.New("too many arguments supplied")
			}
			c.labId = args[0]
			return c.run()
		},
	}

	f := command.Flags()
	f.BoolVarP(&c.dryRun, "dry-run", "n", false,
		"validate and estimate but don't create any stacks")
	f.BoolVar(&c.force, "force", false,
		"start despite validation errors or a blown budget")
	f.StringVarP(&c.owner, "owner", "o", "",
		"who the session belongs to (defaults to the current OS user)")
	f.StringVarP(&c.ttl, "ttl", "t", "",
		"session lifetime, e.g. 4h (defaults to the lab's TTL)")
	f.VarP(&c.varsFiles, "vars-file", "f",
		"YAML vars files merged over the lab's vars (can specify multiple "+
			"files, comma-separated; later files take precedence)")
	return command
}

func (c *startCmd) run() error {
	ctx := context.Background()

	owner := c.owner
	if owner == "" {
		currentUser, err := user.Current()
		if err != nil {
			return errors.Wrap(err, "No --owner given and the current user "+
				"couldn't be determined")
		}
		owner = currentUser.Username
	}

	var ttl time.Duration
	if c.ttl != "" {
		parsed, err := time.ParseDuration(c.ttl)
		if err != nil {
			return errors.Wrapf(err, "Invalid ttl '%s'", c.ttl)
		}
		ttl = parsed
	}

	mgr, err := utils.BuildManager(ctx, c.dryRun)
	if err != nil {
		return errors.WithStack(err)
	}

	sess, err := mgr.Start(ctx, manager.StartOptions{
		LabId:     c.labId,
		Owner:     owner,
		Ttl:       ttl,
		VarsFiles: c.varsFiles,
		DryRun:    c.dryRun,
		Force:     c.force,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if c.dryRun {
		_, err = printer.Fprintf("[green]Dry run of lab '%s' succeeded\n", c.labId)
		return errors.WithStack(err)
	}

	_, err = printer.Fprintf("[green]Session [bold]%s[reset][green] of lab "+
		"'%s' is active\n", sess.ShortId(), sess.LabId)
	if err != nil {
		return errors.WithStack(err)
	}

	fmt.Fprintf(c.out, "Expires at: %s\n", sess.ExpiresAt.Format(time.RFC1123))
	fmt.Fprintf(c.out, "Estimated cost: %s/hour (%s total)\n",
		cost.FormatUSD(sess.HourlyCostUSD), cost.FormatUSD(sess.EstimatedTotalUSD()))

	if len(sess.Outputs) > 0 {
		fmt.Fprintln(c.out, "Outputs:")
		keys := make([]string, 0)
		for key := range sess.Outputs {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(c.out, "  %s = %s\n", key, sess.Outputs[key])
		}
	}

	return nil
}

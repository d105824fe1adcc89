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

package costs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/certlab/labman/internal/pkg/cmd"
	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/cost"
	"github.com/certlab/labman/internal/pkg/printer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type estimateCmd struct {
	out       io.Writer
	labId     string
	ttl       time.Duration
	varsFiles cmd.Files
}

func newEstimateCmd(out io.Writer) *cobra.Command {

	c := &estimateCmd{out: out}

	command := &cobra.Command{
		Use:   "estimate [flags] lab-id",
		Short: "Estimate the cost of running a lab",
		Long: `Estimate the hourly and total cost of a lab's stacks by mapping
each template resource to a rough on-demand rate. Resource types without a
rate are listed so the estimate can be read as a lower bound.`,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("the ID of the lab is required")
			} else if len(args) > 1 {
				return errors.New("too many arguments supplied")
			}
			c.labId = args[0]
			return c.run()
		},
	}

	f := command.Flags()
	f.DurationVarP(&c.ttl, "ttl", "t", 0,
		"session length to total the estimate over (defaults to the lab's TTL)")
	f.VarP(&c.varsFiles, "vars-file", "f",
		"YAML vars files merged over the lab's vars (can specify multiple "+
			"files, comma-separated; later files take precedence)")
	return command
}

func (c *estimateCmd) run() error {
	ctx := context.Background()

	mgr, err := utils.BuildManager(ctx, true)
	if err != nil {
		return errors.WithStack(err)
	}

	estimate, ttl, err := mgr.EstimateLab(c.labId, c.ttl, c.varsFiles)
	if err != nil {
		return errors.WithStack(err)
	}

	_, _ = printer.Fprintf("[white]Cost estimate for lab '[bold]%s[reset][white]'\n\n",
		c.labId)

	w := tabwriter.NewWriter(c.out, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TEMPLATE\tRESOURCE\tTYPE\tHOURLY")

	for _, templateEstimate := range estimate.Templates {
		for _, resourceEstimate := range templateEstimate.Resources {
			hourly := cost.FormatUSD(resourceEstimate.HourlyUSD)
			if !resourceEstimate.Mapped {
				hourly = "?"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", templateEstimate.TemplateId,
				resourceEstimate.LogicalId, resourceEstimate.ResourceType, hourly)
		}
	}
	err = w.Flush()
	if err != nil {
		return errors.WithStack(err)
	}

	_, _ = fmt.Fprintln(c.out)
	_, _ = printer.Fprintf("[white]Hourly rate: [bold]%s[reset]\n",
		cost.FormatUSD(estimate.HourlyUSD))
	_, _ = printer.Fprintf("[white]Total over %s: [bold]%s[reset]\n", ttl,
		cost.FormatUSD(cost.SessionTotalUSD(estimate.HourlyUSD, ttl)))

	if len(estimate.UnmappedTypes) > 0 {
		_, _ = printer.Fprintf("\n[yellow]No rates for: %s\n",
			strings.Join(estimate.UnmappedTypes, ", "))
	}

	return nil
}

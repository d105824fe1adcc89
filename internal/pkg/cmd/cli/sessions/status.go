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
	"sort"
	"time"

	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/cost"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type statusCmd struct {
	out       io.Writer
	sessionId string
}

func newStatusCmd(out io.Writer) *cobra.Command {

	c := &statusCmd{out: out}

	command := &cobra.Command{
		Use:   "status [flags] session-id",
		Short: "Show the details of a session",
		Long: `Show a session's state, expiry, cost and stack outputs. The ID may be
abbreviated to any unique prefix.`,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("the ID of the session is required")
			} else if len(args) > 1 {
				return errors.New("too many arguments supplied")
			}
			c.sessionId = args[0]
			return c.run()
		},
	}

	return command
}

func (c *statusCmd) run() error {
	ctx := context.Background()

	mgr, err := utils.BuildManager(ctx, true)
	if err != nil {
		return errors.WithStack(err)
	}

	sess, err := mgr.Status(ctx, c.sessionId)
	if err != nil {
		return errors.WithStack(err)
	}

	fmt.Fprintf(c.out, "Session:    %s\n", sess.Id)
	fmt.Fprintf(c.out, "Lab:        %s\n", sess.LabId)
	fmt.Fprintf(c.out, "Owner:      %s\n", sess.Owner)
	fmt.Fprintf(c.out, "Region:     %s\n", sess.Region)
	fmt.Fprintf(c.out, "State:      %s\n", sess.State)
	fmt.Fprintf(c.out, "Started:    %s\n", sess.CreatedAt.Format(time.RFC1123))
	fmt.Fprintf(c.out, "Expires:    %s", sess.ExpiresAt.Format(time.RFC1123))
	if sess.Expired() {
		fmt.Fprintf(c.out, " (expired)")
	} else if remaining := sess.Remaining(); remaining > 0 {
		fmt.Fprintf(c.out, " (%s remaining)", remaining.Round(time.Minute))
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "Cost:       %s/hour (%s total)\n",
		cost.FormatUSD(sess.HourlyCostUSD), cost.FormatUSD(sess.EstimatedTotalUSD()))

	if len(sess.StackNames) > 0 {
		fmt.Fprintln(c.out, "Stacks:")
		templateIds := make([]string, 0)
		for templateId := range sess.StackNames {
			templateIds = append(templateIds, templateId)
		}
		sort.Strings(templateIds)
		for _, templateId := range templateIds {
			fmt.Fprintf(c.out, "  %s: %s\n", templateId, sess.StackNames[templateId])
		}
	}

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

	if len(sess.History) > 0 {
		fmt.Fprintln(c.out, "History:")
		for _, transition := range sess.History {
			line := fmt.Sprintf("  %s  %s -> %s",
				transition.At.Format(time.RFC3339), transition.From, transition.To)
			if transition.Reason != "" {
				line = fmt.Sprintf("%s (%s)", line, transition.Reason)
			}
			fmt.Fprintln(c.out, line)
		}
	}

	return nil
}

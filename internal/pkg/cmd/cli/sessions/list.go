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
	"text/tabwriter"

	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type listCmd struct {
	out   io.Writer
	state string
	all   bool
}

func newListCmd(out io.Writer) *cobra.Command {

	c := &listCmd{out: out}

	command := &cobra.Command{
		Use:   "list [flags]",
		Short: "List lab sessions",
		Long:  `List sessions, newest first. Terminated sessions are hidden unless --all is given.`,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New("too many arguments supplied")
			}
			return c.run()
		},
	}

	f := command.Flags()
	f.StringVarP(&c.state, "state", "s", "", "only show sessions in this state")
	f.BoolVarP(&c.all, "all", "a", false, "include terminated sessions")
	return command
}

func (c *listCmd) run() error {
	ctx := context.Background()

	var stateFilter session.State
	if c.state != "" {
		parsed, err := session.ParseState(c.state)
		if err != nil {
			return errors.WithStack(err)
		}
		stateFilter = parsed
	}

	mgr, err := utils.BuildManager(ctx, true)
	if err != nil {
		return errors.WithStack(err)
	}

	sessions, err := mgr.List(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	writer := tabwriter.NewWriter(c.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tLAB\tOWNER\tSTATE\tSTARTED\tEXPIRES")

	shown := 0
	for _, sess := range sessions {
		if stateFilter != "" && sess.State != stateFilter {
			continue
		}
		if !c.all && stateFilter == "" && sess.State == session.StateTerminated {
			continue
		}

		expires := humanize.Time(sess.ExpiresAt)
		if sess.Expired() && !sess.State.Terminal() {
			expires = fmt.Sprintf("%s (expired)", expires)
		}

		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n", sess.ShortId(),
			sess.LabId, sess.Owner, sess.State, humanize.Time(sess.CreatedAt),
			expires)
		shown++
	}

	err = writer.Flush()
	if err != nil {
		return errors.WithStack(err)
	}

	if shown == 0 {
		fmt.Fprintln(c.out, "No sessions. Start one with 'labman session start <lab-id>'.")
	}

	return nil
}

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
	"io"

	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/printer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type cleanupCmd struct {
	out       io.Writer
	sessionId string
}

func newCleanupCmd(out io.Writer) *cobra.Command {

	c := &cleanupCmd{out: out}

	command := &cobra.Command{
		Use:   "cleanup [flags] session-id",
		Short: "Tear down a session's stacks",
		Long: `Delete every stack a session owns, dependents before dependencies.
Buckets are emptied first so CloudFormation can delete them. The session
record is kept (marked terminated) so its history stays inspectable.`,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("the ID of the session to clean up is required")
			} else if len(args) > 1 {
				return errors.New("too many arguments supplied")
			}
			c.sessionId = args[0]
			return c.run()
		},
	}

	return command
}

func (c *cleanupCmd) run() error {
	ctx := context.Background()

	mgr, err := utils.BuildManager(ctx, false)
	if err != nil {
		return errors.WithStack(err)
	}

	sess, err := mgr.Cleanup(ctx, c.sessionId)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = printer.Fprintf("[green]Session '%s' terminated. %d stack(s) "+
		"deleted.\n", sess.ShortId(), len(sess.StackNames))
	return errors.WithStack(err)
}

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
	"time"

	"io"

	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/printer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type extendCmd struct {
	out       io.Writer
	sessionId string
	extra     string
}

func newExtendCmd(out io.Writer) *cobra.Command {

	c := &extendCmd{out: out}

	command := &cobra.Command{
		Use:   "extend [flags] session-id duration",
		Short: "Push a session's expiry time out",
		Long: `Give a session more time before the sweeper reclaims it, e.g.:

	$ labman session extend 3b24a10f 1h
`,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) < 2 {
				return errors.New("the session ID and the extra duration are required")
			} else if len(args) > 2 {
				return errors.New("too many arguments supplied")
			}
			c.sessionId = args[0]
			c.extra = args[1]
			return c.run()
		},
	}

	return command
}

func (c *extendCmd) run() error {
	ctx := context.Background()

	extra, err := time.ParseDuration(c.extra)
	if err != nil {
		return errors.Wrapf(err, "Invalid duration '%s'", c.extra)
	}

	mgr, err := utils.BuildManager(ctx, true)
	if err != nil {
		return errors.WithStack(err)
	}

	sess, err := mgr.Extend(ctx, c.sessionId, extra)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = printer.Fprintf("[green]Session '%s' extended until %s\n",
		sess.ShortId(), sess.ExpiresAt.Format(time.RFC1123))
	return errors.WithStack(err)
}

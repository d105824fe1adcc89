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
	"strings"

	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/session"
	"github.com/pkg/errors"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
)

type openCmd struct {
	out       io.Writer
	sessionId string
	printOnly bool
}

func newOpenCmd(out io.Writer) *cobra.Command {

	c := &openCmd{out: out}

	command := &cobra.Command{
		Use:   "open [flags] session-id",
		Short: "Open a session in the browser",
		Long: `Open the session's lab in the default browser. If a stack exported an
output whose name ends in 'Url' that address is opened, otherwise the
CloudFormation console for the session's region.`,
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

	f := command.Flags()
	f.BoolVarP(&c.printOnly, "print", "p", false,
		"print the URL instead of opening a browser")
	return command
}

func (c *openCmd) run() error {
	ctx := context.Background()

	mgr, err := utils.BuildManager(ctx, true)
	if err != nil {
		return errors.WithStack(err)
	}

	sess, err := mgr.Status(ctx, c.sessionId)
	if err != nil {
		return errors.WithStack(err)
	}

	url := sessionUrl(sess)

	if c.printOnly {
		fmt.Fprintln(c.out, url)
		return nil
	}

	fmt.Fprintf(c.out, "Opening %s...\n", url)
	return errors.WithStack(open.Run(url))
}

// Prefers an output named like a URL; falls back to the CloudFormation
// console filtered to the session's stacks
func sessionUrl(sess *session.Session) string {
	keys := make([]string, 0)
	for key := range sess.Outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if strings.HasSuffix(strings.ToLower(key), "url") {
			return sess.Outputs[key]
		}
	}

	return fmt.Sprintf("https://%s.console.aws.amazon.com/cloudformation/home"+
		"?region=%s", sess.Region, sess.Region)
}

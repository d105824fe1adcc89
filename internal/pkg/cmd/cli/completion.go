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
	"io"

	"github.com/spf13/cobra"
)

func newCompletionCmd(out io.Writer) *cobra.Command {
	c := &cobra.Command{
		Use:   "completion",
		Short: "Generate bash completions for labman",
		Long: `To load completion run

. <(labman completion)

To configure your bash shell to load completions for each session add to your bashrc

# ~/.bashrc or ~/.profile
. <(labman completion)
`,
		RunE: func(command *cobra.Command, args []string) error {
			return command.Root().GenBashCompletion(out)
		},
	}

	c.Aliases = []string{"completions"}

	return c
}

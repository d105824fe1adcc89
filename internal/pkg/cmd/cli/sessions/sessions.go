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

// Commands for working with lab sessions.
package sessions

import (
	"io"

	"github.com/spf13/cobra"
)

func NewSessionCmds(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session [command]",
		Short: "Start, inspect and clean up lab sessions",
		Long:  `Manage the lifecycle of lab sessions.`,
	}

	cmd.Aliases = []string{"sessions"}

	cmd.AddCommand(
		newStartCmd(out),
		newListCmd(out),
		newStatusCmd(out),
		newExtendCmd(out),
		newCleanupCmd(out),
		newOpenCmd(out),
	)

	return cmd
}

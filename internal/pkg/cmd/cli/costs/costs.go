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
	"io"

	"github.com/spf13/cobra"
)

func NewCostCmds(out io.Writer) *cobra.Command {
	command := &cobra.Command{
		Use:     "cost [command]",
		Aliases: []string{"costs"},
		Short:   "Estimate lab costs",
		Long:    `Estimate the running cost of labs before starting a session.`,
	}

	command.AddCommand(
		newEstimateCmd(out),
	)

	return command
}

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

// Commands for browsing the lab catalog.
package labs

import (
	"io"

	"github.com/spf13/cobra"
)

func NewLabsCmds(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labs [command]",
		Short: "Browse the lab catalog",
		Long:  `Work with the catalog of available labs.`,
	}

	cmd.AddCommand(
		newListCmd(out),
	)

	return cmd
}

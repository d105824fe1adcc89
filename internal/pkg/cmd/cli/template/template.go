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

// Commands for checking and previewing CloudFormation templates.
package template

import (
	"io"

	"github.com/spf13/cobra"
)

func NewTemplateCmds(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template [command]",
		Short: "Validate and render lab templates",
		Long:  `Statically check CloudFormation templates and preview rendered lab templates.`,
	}

	cmd.AddCommand(
		newValidateCmd(out),
		newRenderCmd(out),
	)

	return cmd
}

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

package template

import (
	"fmt"
	"io"

	"github.com/certlab/labman/internal/pkg/cmd"
	"github.com/certlab/labman/internal/pkg/config"
	"github.com/certlab/labman/internal/pkg/printer"
	"github.com/certlab/labman/internal/pkg/validate"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type validateCmd struct {
	out   io.Writer
	paths []string
	files cmd.Files
}

func newValidateCmd(out io.Writer) *cobra.Command {

	c := &validateCmd{out: out}

	command := &cobra.Command{
		Use:   "validate [flags] path...",
		Short: "Statically check CloudFormation templates",
		Long: `Run the security and hygiene rules against one or more templates, e.g.:

	$ labman template validate labs/templates/*.yaml

Findings with error severity make the command exit non-zero; warnings don't.
`,
		RunE: func(command *cobra.Command, args []string) error {
			c.paths = append(args, c.files...)
			if len(c.paths) < 1 {
				return errors.New("at least one template path is required")
			}
			return c.run()
		},
	}

	f := command.Flags()
	f.VarP(&c.files, "file", "f",
		"paths to templates to validate (can specify multiple files, comma-separated)")
	return command
}

func (c *validateCmd) run() error {
	validator := validate.New(config.CurrentConfig.Validation)

	failed := 0
	for _, path := range c.paths {
		result, err := validator.ValidateFile(path)
		if err != nil {
			return errors.WithStack(err)
		}

		if len(result.Findings) == 0 {
			_, err = printer.Fprintf("[green]OK[reset]      %s\n", path)
			if err != nil {
				return errors.WithStack(err)
			}
			continue
		}

		if result.OK() {
			_, err = printer.Fprintf("[yellow]WARN[reset]    %s\n", path)
		} else {
			_, err = printer.Fprintf("[red]FAILED[reset]  %s\n", path)
			failed++
		}
		if err != nil {
			return errors.WithStack(err)
		}

		for _, finding := range result.Findings {
			fmt.Fprintf(c.out, "        %s\n", finding.String())
		}
	}

	if failed > 0 {
		return errors.New(fmt.Sprintf("%d template(s) failed validation", failed))
	}

	return nil
}

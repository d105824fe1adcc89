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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/certlab/labman/internal/pkg/cmd"
	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type renderCmd struct {
	out       io.Writer
	labId     string
	outDir    string
	varsFiles cmd.Files
}

func newRenderCmd(out io.Writer) *cobra.Command {

	c := &renderCmd{out: out}

	command := &cobra.Command{
		Use:   "render [flags] lab-id",
		Short: "Render a lab's templates",
		Long: `Render a lab's templates with its vars, without provisioning anything.
Stack output references render as placeholders since no stacks exist.
Templates are printed to stdout unless --out-dir is given.`,
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("the ID of the lab is required")
			} else if len(args) > 1 {
				return errors.New("too many arguments supplied")
			}
			c.labId = args[0]
			return c.run()
		},
	}

	f := command.Flags()
	f.StringVarP(&c.outDir, "out-dir", "d", "",
		"write rendered templates to this directory instead of stdout")
	f.VarP(&c.varsFiles, "vars-file", "f",
		"YAML vars files merged over the lab's vars (can specify multiple "+
			"files, comma-separated; later files take precedence)")
	return command
}

func (c *renderCmd) run() error {
	ctx := context.Background()

	mgr, err := utils.BuildManager(ctx, true)
	if err != nil {
		return errors.WithStack(err)
	}

	rendered, err := mgr.RenderTemplates(c.labId, c.varsFiles)
	if err != nil {
		return errors.WithStack(err)
	}

	templateIds := make([]string, 0)
	for templateId := range rendered {
		templateIds = append(templateIds, templateId)
	}
	sort.Strings(templateIds)

	if c.outDir == "" {
		for _, templateId := range templateIds {
			fmt.Fprintf(c.out, "--- # template: %s\n%s\n", templateId,
				rendered[templateId])
		}
		return nil
	}

	err = os.MkdirAll(c.outDir, 0755)
	if err != nil {
		return errors.WithStack(err)
	}

	for _, templateId := range templateIds {
		path := filepath.Join(c.outDir, fmt.Sprintf("%s.yaml", templateId))
		err = os.WriteFile(path, []byte(rendered[templateId]), 0644)
		if err != nil {
			return errors.Wrapf(err, "Error writing '%s'", path)
		}
		fmt.Fprintf(c.out, "Wrote %s\n", path)
	}

	return nil
}

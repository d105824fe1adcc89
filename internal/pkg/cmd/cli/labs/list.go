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

package labs

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/certlab/labman/internal/pkg/cmd/cli/utils"
	"github.com/certlab/labman/internal/pkg/lab"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type listCmd struct {
	out      io.Writer
	category string
}

func newListCmd(out io.Writer) *cobra.Command {

	c := &listCmd{out: out}

	command := &cobra.Command{
		Use:   "list [flags]",
		Short: "List the labs in the catalog",
		Long: fmt.Sprintf(`List available labs, optionally filtered by category.

Categories: %s`, strings.Join(lab.Categories, ", ")),
		RunE: func(command *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New("too many arguments supplied")
			}
			return c.run()
		},
	}

	f := command.Flags()
	f.StringVarP(&c.category, "category", "c", "", "only show labs in this category")
	return command
}

func (c *listCmd) run() error {
	catalog, err := utils.LoadCatalog()
	if err != nil {
		return errors.WithStack(err)
	}

	labs := catalog.List(c.category)
	if len(labs) == 0 {
		fmt.Fprintln(c.out, "No labs found")
		return nil
	}

	writer := tabwriter.NewWriter(c.out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tNAME\tCATEGORY\tTTL\tTEMPLATES")

	for _, labObj := range labs {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%d\n", labObj.Id(), labObj.Name(),
			labObj.Category(), labObj.Ttl(), len(labObj.Templates()))
	}

	return errors.WithStack(writer.Flush())
}

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
	"fmt"
	"io"

	"github.com/certlab/labman/internal/pkg/version"
	"github.com/spf13/cobra"
)

type versionCmd struct {
	out     io.Writer
	concise bool
}

func newVersionCmd(out io.Writer) *cobra.Command {
	c := &versionCmd{out: out}

	command := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of labman",
		Long:  `All software has versions. This is labman's.`,
		Run: func(command *cobra.Command, args []string) {
			if c.concise {
				fmt.Fprintf(c.out, version.Version)
			} else {
				fmt.Fprintln(c.out, "Build Date:", version.BuildDate)
				fmt.Fprintln(c.out, "Git Commit:", version.GitCommit)
				fmt.Fprintln(c.out, "Version:", version.Version)
				fmt.Fprintln(c.out, "Go Version:", version.GoVersion)
				fmt.Fprintln(c.out, "OS / Arch:", version.OsArch)
			}
		},
	}

	f := command.Flags()
	f.BoolVarP(&c.concise, "concise", "c", false, "only print the version")

	return command
}

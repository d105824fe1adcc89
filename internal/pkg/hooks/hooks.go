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

// Package hooks runs the shell commands a lab descriptor declares around
// provisioning and teardown.
package hooks

import (
	"bytes"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/certlab/labman/internal/pkg/utils"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"
)

const hookTimeoutSeconds = 300

// Runs hook commands with the session's details in the environment
type Runner struct {
	// directory commands run in, normally the lab's directory
	Dir string
	// extra env vars, e.g. session ID and stack outputs
	EnvVars map[string]string
	DryRun  bool
}

// Runs each command in order, stopping at the first failure
func (r *Runner) Run(commands []string) error {
	for _, command := range commands {
		err := r.runOne(command)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (r *Runner) runOne(command string) error {
	parts, err := shellwords.Parse(command)
	if err != nil {
		return errors.Wrapf(err, "Error parsing hook command '%s'", command)
	}

	if len(parts) == 0 {
		return nil
	}

	log.Logger.Infof("Running hook: %s", command)

	var stdoutBuf, stderrBuf bytes.Buffer
	err = utils.ExecCommand(parts[0], parts[1:], r.EnvVars, &stdoutBuf,
		&stderrBuf, r.Dir, hookTimeoutSeconds, r.DryRun)
	if err != nil {
		return errors.Wrapf(err, "Hook '%s' failed", command)
	}

	if stdoutBuf.Len() > 0 {
		log.Logger.Debugf("Hook stdout: %s", stdoutBuf.String())
	}

	return nil
}

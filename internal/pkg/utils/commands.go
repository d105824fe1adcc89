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

package utils

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/certlab/labman/internal/pkg/log"
	"github.com/pkg/errors"
)

// Executes a command with an optional timeout, writing stdout and stderr to
// buffers. If `dryRun` is true, a log message of what would have been
// executed is emitted instead.
func ExecCommand(command string, args []string, envVars map[string]string,
	stdoutBuf *bytes.Buffer, stderrBuf *bytes.Buffer, dir string,
	timeoutSeconds int, dryRun bool) error {

	// reset the buffers in case they've already been used
	stdoutBuf.Reset()
	stderrBuf.Reset()

	strEnvVars := make([]string, 0)
	for k, v := range envVars {
		strEnvVars = append(strEnvVars, strings.Join([]string{k, v}, "="))
	}

	var cmd *exec.Cmd

	if timeoutSeconds > 0 {
		log.Logger.Debugf("%s command will be run with a timeout of %d seconds",
			command, timeoutSeconds)

		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(timeoutSeconds)*time.Second)
		defer cancel()

		cmd = exec.CommandContext(ctx, command, args...)
	} else {
		cmd = exec.Command(command, args...)
	}

	cmd.Dir = dir
	cmd.Env = append(os.Environ(), strEnvVars...)
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	if dryRun {
		log.Logger.Infof("Dry run. Would run command in directory '%s': %s %s",
			dir, command, strings.Join(args, " "))
		return nil
	}

	log.Logger.Debugf("Executing command in directory '%s': %s %s", dir,
		command, strings.Join(args, " "))

	err := cmd.Run()
	if err != nil {
		return errors.Wrapf(err, "Error running command '%s %s'. Stdout: %s, "+
			"stderr: %s", command, strings.Join(args, " "), stdoutBuf.String(),
			stderrBuf.String())
	}

	if timeoutSeconds > 0 && cmd.ProcessState != nil && !cmd.ProcessState.Exited() {
		return errors.New(fmt.Sprintf("Command '%s' timed out after %d seconds",
			command, timeoutSeconds))
	}

	return nil
}

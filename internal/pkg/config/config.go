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

package config

import (
	"os"
	"os/user"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var CurrentConfig *Conf
var ViperConfig *viper.Viper

func init() {
	ViperConfig = initViper("LABMAN")
}

func initViper(appName string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(appName)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// global defaults
	v.SetDefault("json-logs", false)
	v.SetDefault("log-level", "info")
	v.SetDefault("num-workers", 5)
	v.SetDefault("catalog-dir", "labs")
	v.SetDefault("sessions.backend", "local")
	v.SetDefault("sessions.default-ttl", "4h")
	v.SetDefault("budget.max-hourly", 5.0)
	v.SetDefault("budget.max-session", 20.0)
	v.SetDefault("validation.max-resources", 50)
	v.SetDefault("validation.allowed-ingress-ports", []int{22, 80, 443})
	v.SetDefault("validation.required-tags", []string{"Project", "Environment"})
	v.SetDefault("provision.poll-interval-seconds", 10)
	v.SetDefault("provision.timeout-seconds", 1800)

	v.SetConfigName("labman")

	// add look-up paths (from highest priority to lowest)
	// current working directory
	cwd, err := os.Getwd()
	if err == nil {
		v.AddConfigPath(cwd)
	}

	// user's home dir (if we can retrieve it)
	usr, err := user.Current()
	if err == nil {
		v.AddConfigPath(path.Join(usr.HomeDir, ".labman"))
	}

	v.AddConfigPath("/etc/labman")

	// add the directory containing this binary
	v.AddConfigPath(".")

	return v
}

// Load/Reload the configuration. A missing config file isn't an error, it
// just means all values come from defaults and the environment.
func Load(viperConfig *viper.Viper) error {
	var newConf *Conf

	err := viperConfig.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return errors.Wrapf(err, "Error loading configuration")
		}
	}

	err = viperConfig.Unmarshal(&newConf)
	if err != nil {
		return errors.Wrapf(err, "Error unmarshalling config")
	}

	CurrentConfig = newConf

	return nil
}

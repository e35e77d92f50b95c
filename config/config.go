/*
 * rhizome
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package config loads the recognized startup keys (spec.md 6) and
exposes them through the same Str/Int/Bool accessor shape as the
teacher's config package, backed by spf13/viper instead of a hand-rolled
file reader so JSON/YAML/env-var sources all resolve through one layer.
Configuration is loaded once at process start and treated as immutable
thereafter (spec.md 6: "Loaded at process start; immutable thereafter").
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"devt.de/krotik/common/errorutil"
)

/*
Known configuration keys (spec.md 6).
*/
const (
	UseRDMA            = "UseRDMA"
	RDMAThreshold      = "RDMAThreshold"
	NumServer          = "NumServer"
	NumEngines         = "NumEngines"
	NumProxies         = "NumProxies"
	MTThreshold        = "MTThreshold"
	EnableWorkstealing = "EnableWorkstealing"
	EnableVattr        = "EnableVattr"
	InputFolder        = "InputFolder"

	// Keys beyond spec.md 6's core list, needed to actually stand a
	// cluster member up: where it listens, and who it gossips with.
	ListenHost   = "ListenHost"
	ListenPort   = "ListenPort"
	ClusterSeeds = "ClusterSeeds" // comma-separated host:port list
	ServerID     = "ServerID"     // this process's index within NumServer
)

/*
DefaultConfig is the default configuration, used whenever a key is
absent from the loaded file/environment.
*/
var DefaultConfig = map[string]interface{}{
	UseRDMA:            false,
	RDMAThreshold:       10000,
	NumServer:          1,
	NumEngines:         4,
	NumProxies:         2,
	MTThreshold:        1000,
	EnableWorkstealing: true,
	EnableVattr:        false,
	InputFolder:        "input",
	ListenHost:         "localhost",
	ListenPort:         9090,
	ClusterSeeds:       "",
	ServerID:           0,
}

/*
Config is the actual configuration in use once Load/LoadDefaultConfig
has run.
*/
var Config map[string]interface{}

/*
Load reads configFile (JSON or YAML, inferred from its extension) and
environment variables prefixed RHIZOME_ (e.g. RHIZOME_NUMENGINES) over
DefaultConfig. A missing configFile is not an error - the defaults (and
any matching environment variables) still apply.
*/
func Load(configFile string) error {
	v := viper.New()

	for key, val := range DefaultConfig {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix("RHIZOME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			_, isNotFoundErr := err.(viper.ConfigFileNotFoundError)
			if !isNotFoundErr && !os.IsNotExist(err) {
				return fmt.Errorf("loading config file %s: %w", configFile, err)
			}
		}
	}

	data := make(map[string]interface{}, len(DefaultConfig))
	for key := range DefaultConfig {
		data[key] = v.Get(key)
	}

	Config = data
	return nil
}

/*
LoadDefaultConfig loads the default configuration, ignoring any config
file or environment variables - used by tests and embedders that want a
known-good baseline.
*/
func LoadDefaultConfig() {
	data := make(map[string]interface{}, len(DefaultConfig))
	for k, v := range DefaultConfig {
		data[k] = v
	}
	Config = data
}

/*
Str reads a config value as a string.
*/
func Str(key string) string {
	return fmt.Sprint(Config[key])
}

/*
Int reads a config value as an int.
*/
func Int(key string) int64 {
	switch v := Config[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	}

	ret, err := strconv.ParseInt(fmt.Sprint(Config[key]), 10, 64)
	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Bool reads a config value as a bool.
*/
func Bool(key string) bool {
	if v, ok := Config[key].(bool); ok {
		return v
	}

	ret, err := strconv.ParseBool(fmt.Sprint(Config[key]))
	errorutil.AssertTrue(err == nil,
		fmt.Sprintf("Could not parse config key %v: %v", key, err))

	return ret
}

/*
Seeds splits ClusterSeeds into its individual host:port entries.
*/
func Seeds() []string {
	raw := Str(ClusterSeeds)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	seeds := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			seeds = append(seeds, p)
		}
	}
	return seeds
}

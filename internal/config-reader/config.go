// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// Package config reads the [ofscp] section of the command line tool's TOML file.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/komkom/toml"
	"github.com/pkg/errors"

	"github.com/rorumall/go-ofscp/network"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HomeEnv overrides the state directory.
const HomeEnv = "OFSCP_HOME"

type ConfigBool bool

type Config struct {
	Home       string `json:"home,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Handle     string `json:"handle,omitempty"`
	DeviceName string `json:"device,omitempty"`

	MetricsAddress string     `json:"metrics,omitempty"`
	RequireSigned  ConfigBool `json:"require-signed"`

	MaxAttempts  int     `json:"max-attempts,omitempty"`
	InitialDelay string  `json:"initial-delay,omitempty"`
	MaxDelay     string  `json:"max-delay,omitempty"`
	Multiplier   float64 `json:"multiplier,omitempty"`
	QueueSize    uint    `json:"queue-size,omitempty"`

	// Presence holds every key that was set in the file, so that explicit
	// zero values can be told apart from missing ones.
	Presence map[string]interface{} `json:"-"`
}

type fileConfig struct {
	OFSCP Config `json:"ofscp"`
}

func (config Config) Has(flagname string) bool {
	_, ok := config.Presence[flagname]
	return ok
}

// Read decodes configPath. The boolean is false if there is no such file.
func Read(configPath string, logger log.Logger) (Config, bool, error) {
	var conf fileConfig
	if logger == nil {
		logger = log.NewNopLogger()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		level.Debug(logger).Log("event", "read config", "msg", "no config detected", "path", configPath)
		return conf.OFSCP, false, nil
	}

	level.Info(logger).Log("event", "read config", "msg", "config detected", "path", configPath)

	// 1) first we unmarshal into struct for type checks
	decoder := json.NewDecoder(toml.New(bytes.NewBuffer(data)))
	if err := decoder.Decode(&conf); err != nil {
		return conf.OFSCP, true, errors.Wrapf(err, "config: failed to decode %s", configPath)
	}

	// 2) then we unmarshal into a map for presence check (to make sure bools are treated correctly)
	presence := make(map[string]interface{})
	decoder = json.NewDecoder(toml.New(bytes.NewBuffer(data)))
	if err := decoder.Decode(&presence); err != nil {
		return conf.OFSCP, true, errors.Wrap(err, "config: failed to decode into presence map")
	}
	if section, ok := presence["ofscp"].(map[string]interface{}); ok {
		conf.OFSCP.Presence = section
	} else {
		level.Warn(logger).Log("event", "read config", "msg", "no [ofscp] detected in config file - I am not reading anything from the config file", "path", configPath)
		conf.OFSCP.Presence = make(map[string]interface{})
	}

	if conf.OFSCP.Home != "" {
		conf.OFSCP.Home, err = ExpandPath(conf.OFSCP.Home)
		if err != nil {
			return conf.OFSCP, true, err
		}
	}
	return conf.OFSCP, true, nil
}

// Policy overlays the reconnect settings of the file onto the defaults.
func (config Config) Policy() (network.ReconnectPolicy, error) {
	p := network.DefaultReconnectPolicy()
	if config.Has("max-attempts") {
		p.MaxAttempts = config.MaxAttempts
	}
	if config.InitialDelay != "" {
		d, err := time.ParseDuration(config.InitialDelay)
		if err != nil {
			return p, errors.Wrap(err, "config: bad initial-delay")
		}
		p.InitialDelay = d
	}
	if config.MaxDelay != "" {
		d, err := time.ParseDuration(config.MaxDelay)
		if err != nil {
			return p, errors.Wrap(err, "config: bad max-delay")
		}
		p.MaxDelay = d
	}
	if config.Multiplier != 0 {
		p.Multiplier = config.Multiplier
	}
	return p, nil
}

// DefaultHome is $OFSCP_HOME or ~/.ofscp.
func DefaultHome() (string, error) {
	if h := os.Getenv(HomeEnv); h != "" {
		return ExpandPath(h)
	}
	return ExpandPath("~/.ofscp")
}

// ExpandPath makes sure the following type of path expansions take place:
// * ~/.ofscp		=> /home/<user>/.ofscp
// * .ofscp		=> /home/<user>/.ofscp
// * /stuff/.ofscp	=> /stuff/.ofscp
func ExpandPath(p string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "config: could not get user home directory")
	}

	if strings.HasPrefix(p, "~") {
		p = strings.Replace(p, "~", home, 1)
	}

	// not relative path, not absolute path =>
	// place relative to home dir "~/<here>"
	if !filepath.IsAbs(p) {
		p = filepath.Join(home, p)
	}

	return p, nil
}

func (booly ConfigBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(booly))
}

func (booly *ConfigBool) UnmarshalJSON(b []byte) error {
	// unmarshal into interface{} first, as a bool can't be unmarshaled into a string
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.Wrap(err, "config: unmarshal config bool")
	}

	// go through a type assertion dance, capturing the two cases:
	// 1. if the config value is a proper boolean, and
	// 2. if the config value is a boolish string (e.g. "true" or "1")
	var temp bool
	if val, ok := v.(bool); ok {
		temp = val
	} else if s, ok := v.(string); ok {
		temp = booleanIsTrue(s)
		if !temp {
			// catch strings that cause a false value, but which aren't boolish
			if s != "false" && s != "0" && s != "no" && s != "off" {
				return errors.Errorf("config: non-boolean string %q", s)
			}
		}
	}
	*booly = ConfigBool(temp)

	return nil
}

func booleanIsTrue(s string) bool {
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

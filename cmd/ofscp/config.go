// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

package main

import (
	"os"

	config "github.com/rorumall/go-ofscp/internal/config-reader"
)

func readEnvironmentVariables(conf *config.Config) {
	if val := os.Getenv("OFSCP_PROVIDER"); val != "" {
		conf.Provider = val
		conf.Presence["provider"] = true
	}

	if val := os.Getenv("OFSCP_HANDLE"); val != "" {
		conf.Handle = val
		conf.Presence["handle"] = true
	}

	if val := os.Getenv("OFSCP_DEVICE"); val != "" {
		conf.DeviceName = val
		conf.Presence["device"] = true
	}

	if val := os.Getenv("OFSCP_METRICS"); val != "" {
		conf.MetricsAddress = val
		conf.Presence["metrics"] = true
	}
}

func readConfigAndEnv(configPath string) (config.Config, error) {
	conf, _, err := config.Read(configPath, log)
	if err != nil {
		return conf, err
	}
	if conf.Presence == nil {
		conf.Presence = make(map[string]interface{})
	}
	readEnvironmentVariables(&conf)
	return conf, nil
}

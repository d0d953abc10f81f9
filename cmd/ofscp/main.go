// SPDX-FileCopyrightText: 2026 The go-ofscp Authors
//
// SPDX-License-Identifier: MIT

// ofscp is a command line client for OFSCP providers
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/log/term"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	config "github.com/rorumall/go-ofscp/internal/config-reader"
	"github.com/rorumall/go-ofscp/keys"
)

// Version and Build are set by ldflags
var (
	Version = "snapshot"
	Build   = ""
)

var (
	longctx      context.Context
	shutdownFunc func()

	log kitlog.Logger

	conf config.Config
)

func init() {
	log = term.NewColorLogger(os.Stderr, kitlog.NewLogfmtLogger, colorFn)
}

var app = cli.App{
	Name:    "ofscp",
	Usage:   "sign in to OFSCP providers, read and write channels",
	Version: "alpha1",

	Flags: []cli.Flag{
		&cli.StringFlag{Name: "home", Usage: "state directory (default $OFSCP_HOME or ~/.ofscp)"},
		&cli.StringFlag{Name: "config", Usage: "config file (default <home>/config.toml)"},
		&cli.StringFlag{Name: "provider", Usage: "provider host, like chat.example or localhost:8080"},
		&cli.StringFlag{Name: "metrics", Usage: "serve prometheus metrics on this address"},
		&cli.BoolFlag{Name: "require-signed", Usage: "fail instead of sending unsigned requests"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"vv"}, Usage: "log frames and requests"},
		&cli.StringFlag{Name: "timeout", Value: "", Usage: "pass a durration (like 3s or 5m) after which it times out, empty string to disable"},
	},

	Before: initCLI,
	Commands: []*cli.Command{
		keygenCmd,
		loginCmd,
		signCmd,
		historyCmd,
		listenCmd,
		sendCmd,
	},
}

// Color by error type
func colorFn(keyvals ...interface{}) term.FgBgColor {
	for i := 1; i < len(keyvals); i += 2 {
		if _, ok := keyvals[i].(error); ok {
			return term.FgBgColor{Fg: term.Red}
		}
	}
	return term.FgBgColor{}
}

func main() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("%s (rev: %s, built: %s)\n", c.App.Version, Version, Build)
	}

	if err := app.Run(os.Args); err != nil {
		level.Error(log).Log("run-failure", err)
		os.Exit(1)
	}
}

func initCLI(ctx *cli.Context) error {
	if !ctx.Bool("verbose") {
		log = level.NewFilter(log, level.AllowInfo())
	}

	home := ctx.String("home")
	if home == "" {
		var err error
		home, err = config.DefaultHome()
		if err != nil {
			return err
		}
	}

	configPath := ctx.String("config")
	if configPath == "" {
		configPath = filepath.Join(home, "config.toml")
	}
	var err error
	conf, err = readConfigAndEnv(configPath)
	if err != nil {
		return err
	}
	if conf.Home == "" || ctx.IsSet("home") {
		conf.Home = home
	}
	if ctx.IsSet("provider") {
		conf.Provider = ctx.String("provider")
	}
	if ctx.IsSet("metrics") {
		conf.MetricsAddress = ctx.String("metrics")
	}
	if ctx.IsSet("require-signed") {
		conf.RequireSigned = config.ConfigBool(ctx.Bool("require-signed"))
	}

	dstr := ctx.String("timeout")
	if dstr != "" {
		d, err := time.ParseDuration(dstr)
		if err != nil {
			return err
		}
		longctx, shutdownFunc = context.WithTimeout(context.Background(), d)
	} else {
		longctx, shutdownFunc = context.WithCancel(context.Background())
	}

	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-signalc
		level.Warn(log).Log("event", "shutting down", "sig", s)
		shutdownFunc()
		time.Sleep(1 * time.Second)
		os.Exit(0)
	}()

	startMetrics(conf.MetricsAddress)
	return nil
}

func openStore() (*keys.Store, error) {
	return keys.NewStore(filepath.Join(conf.Home, "keys"))
}

func requireProvider() (string, error) {
	if conf.Provider == "" {
		return "", errors.New("no provider given (use --provider, OFSCP_PROVIDER or the config file)")
	}
	return conf.Provider, nil
}

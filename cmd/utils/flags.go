// Copyright 2015 The go-ethereum Authors
// This file is part of go-ethereum.
//
// go-ethereum is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-ethereum is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-ethereum. If not, see <http://www.gnu.org/licenses/>.

// Package utils contains internal helper functions for vidar commands.
package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vidar-chain/vidar/internal/flags"
	"github.com/vidar-chain/vidar/vidar/vidarconfig"
)

// These are all the command line flags we support.
// The flags are defined here so their names and help texts
// are the same for all commands.

var (
	// General settings
	DataDirFlag = &cli.StringFlag{
		Name:     "datadir",
		Usage:    "Data directory for the databases (empty = in-memory)",
		Category: flags.NodeCategory,
	}
	DatabaseCacheFlag = &cli.IntFlag{
		Name:     "db.cache",
		Usage:    "Megabytes of memory allocated to database caching",
		Value:    vidarconfig.Defaults.DatabaseCache,
		Category: flags.NodeCategory,
	}
	DatabaseHandlesFlag = &cli.IntFlag{
		Name:     "db.handles",
		Usage:    "Number of file descriptors reserved for the database",
		Value:    vidarconfig.Defaults.DatabaseHandles,
		Category: flags.NodeCategory,
	}
	RefCacheTTLFlag = &cli.DurationFlag{
		Name:     "refcache.ttl",
		Usage:    "Idle time after which quarantined headers become purgeable",
		Value:    vidarconfig.Defaults.RefCacheTTL,
		Category: flags.NodeCategory,
	}
	PendingHeadersFlag = &cli.IntFlag{
		Name:     "quarantine.pending",
		Usage:    "Maximum number of ancestors to park orphaned headers under",
		Value:    vidarconfig.Defaults.PendingHeaders,
		Category: flags.NodeCategory,
	}

	// Logging settings
	VerbosityFlag = &cli.IntFlag{
		Name:     "verbosity",
		Usage:    "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value:    3,
		Category: flags.LoggingCategory,
	}
	LogFileFlag = &cli.StringFlag{
		Name:     "log.file",
		Usage:    "Write logs to a file, rotated at 100MB",
		Category: flags.LoggingCategory,
	}
)

// NodeFlags is the flag group configuring the chain service.
var NodeFlags = []cli.Flag{
	DataDirFlag,
	DatabaseCacheFlag,
	DatabaseHandlesFlag,
	RefCacheTTLFlag,
	PendingHeadersFlag,
}

// LoggingFlags is the flag group configuring log output.
var LoggingFlags = []cli.Flag{
	VerbosityFlag,
	LogFileFlag,
}

// SetVidarConfig applies the command line flags to the service config.
func SetVidarConfig(ctx *cli.Context, cfg *vidarconfig.Config) {
	if ctx.IsSet(DatabaseCacheFlag.Name) {
		cfg.DatabaseCache = ctx.Int(DatabaseCacheFlag.Name)
	}
	cfg.DatabaseHandles = ctx.Int(DatabaseHandlesFlag.Name)
	if ctx.IsSet(RefCacheTTLFlag.Name) {
		cfg.RefCacheTTL = ctx.Duration(RefCacheTTLFlag.Name)
	}
	if ctx.IsSet(PendingHeadersFlag.Name) {
		cfg.PendingHeaders = ctx.Int(PendingHeadersFlag.Name)
	}
}

// SetupLogger configures the root logger from the logging flags.
func SetupLogger(ctx *cli.Context) {
	var (
		output   = io.Writer(os.Stderr)
		usecolor = isatty.IsTerminal(os.Stderr.Fd()) && os.Getenv("TERM") != "dumb"
	)
	if file := ctx.String(LogFileFlag.Name); file != "" {
		output = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 10,
			Compress:   true,
		}
		usecolor = false
	} else if usecolor {
		output = colorable.NewColorableStderr()
	}
	handler := log.StreamHandler(output, log.TerminalFormat(usecolor))
	log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(ctx.Int(VerbosityFlag.Name)), handler))
}

// Fatalf formats a message to standard error and exits the program.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

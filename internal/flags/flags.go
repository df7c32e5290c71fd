// Package flags holds the cli flag plumbing shared by the vidar commands.
package flags

import (
	"github.com/urfave/cli/v2"

	"github.com/vidar-chain/vidar/params"
)

// Flag categories, in the order they show up in help listings.
const (
	NodeCategory    = "NODE"
	LoggingCategory = "LOGGING AND DEBUGGING"
	MiscCategory    = "MISC"
)

// NewApp creates an app with sane defaults.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Version = params.VersionWithMeta
	app.Usage = usage
	app.HideVersion = false
	return app
}

// Merge merges the given flag slices.
func Merge(groups ...[]cli.Flag) []cli.Flag {
	var ret []cli.Flag
	for _, group := range groups {
		ret = append(ret, group...)
	}
	return ret
}

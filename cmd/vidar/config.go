package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"unicode"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/vidar-chain/vidar/cmd/utils"
	"github.com/vidar-chain/vidar/internal/flags"
	"github.com/vidar-chain/vidar/vidar"
	"github.com/vidar-chain/vidar/vidar/vidarconfig"
)

var configFileFlag = &cli.StringFlag{
	Name:     "config",
	Usage:    "TOML configuration file",
	Category: flags.NodeCategory,
}

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type vidarNodeConfig struct {
	DataDir string
	Vidar   vidarconfig.Config
}

func loadConfig(file string, cfg *vidarNodeConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeService loads the vidar configuration and creates the chain service.
func makeService(ctx *cli.Context) *vidar.Vidar {
	// Load defaults.
	cfg := vidarNodeConfig{
		Vidar: vidarconfig.Defaults,
	}

	// Load config file.
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			utils.Fatalf("%v", err)
		}
	}

	// Apply flags.
	if ctx.IsSet(utils.DataDirFlag.Name) {
		cfg.DataDir = ctx.String(utils.DataDirFlag.Name)
	}
	utils.SetVidarConfig(ctx, &cfg.Vidar)

	service, err := vidar.New(cfg.DataDir, &cfg.Vidar)
	if err != nil {
		utils.Fatalf("Failed to create the chain service: %v", err)
	}
	return service
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/vidar-chain/vidar/cmd/utils"
	"github.com/vidar-chain/vidar/internal/flags"
)

const (
	clientIdentifier = "vidar" // Client identifier
)

var app = flags.NewApp("the vidar command line interface")

func init() {
	app.Action = vidarMain
	app.Flags = flags.Merge(
		[]cli.Flag{configFileFlag},
		utils.NodeFlags,
		utils.LoggingFlags,
	)
	app.Before = func(ctx *cli.Context) error {
		utils.SetupLogger(ctx)
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// vidarMain boots the chain service and blocks until it is interrupted.
func vidarMain(ctx *cli.Context) error {
	service := makeService(ctx)
	if err := service.Start(); err != nil {
		return err
	}
	defer service.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	log.Info("Got interrupt, shutting down...")
	return nil
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophgroups/internal/buildinfo"
	"github.com/dmitrijs2005/gophgroups/internal/client/cli"
	"github.com/dmitrijs2005/gophgroups/internal/client/config"
)

func main() {
	cfg := config.LoadConfig()
	args := config.Args()
	if len(args) == 0 {
		buildinfo.PrintBuildData(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx, args); err != nil {
		stop()
		log.Fatalf("%v", err)
	}
}

package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophgroups/internal/buildinfo"
	"github.com/dmitrijs2005/gophgroups/internal/server"
	"github.com/dmitrijs2005/gophgroups/internal/server/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig(config.AuthService)
	app, err := server.NewApp(ctx, config.AuthService, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)

}

package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/newwaysadmin/slipsync/internal/server"
	"github.com/newwaysadmin/slipsync/internal/server/config"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}

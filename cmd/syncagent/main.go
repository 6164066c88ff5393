package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/newwaysadmin/slipsync/internal/client"
	"github.com/newwaysadmin/slipsync/internal/client/config"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := client.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}

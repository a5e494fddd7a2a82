package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zart/quizzer/internal/app"
	"github.com/zart/quizzer/internal/config"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("could not load .env file")
		}
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := config.Load(loadCtx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	instance, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build app")
	}

	if err := instance.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("runtime error")
	}
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zart/quizzer/db/migrations"
	"github.com/zart/quizzer/internal/config"
)

func main() {
	command := flag.String("command", "up", "Migration command: up, down, status or version")
	flag.Parse()

	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	// Only the Postgres section is needed; secrets for the API are not.
	var pg config.Postgres
	if err := config.Parse(&pg); err != nil {
		log.Fatal().Err(err).Msg("failed to read postgres config")
	}

	db, err := sql.Open("pgx", pg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database connection")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	log.Info().Str("host", pg.Host).Str("database", pg.Database).Msg("connected to database")

	goose.SetBaseFS(migrations.FS)
	goose.SetTableName("goose_db_version")
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("failed to set goose dialect")
	}

	switch *command {
	case "up":
		if err := goose.UpContext(ctx, db, "."); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations up")
		}
		log.Info().Msg("migrations applied successfully")

	case "down":
		if err := goose.DownContext(ctx, db, "."); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations down")
		}
		log.Info().Msg("migrations rolled back successfully")

	case "status":
		if err := goose.StatusContext(ctx, db, "."); err != nil {
			log.Fatal().Err(err).Msg("failed to get migration status")
		}

	case "version":
		if err := goose.VersionContext(ctx, db, "."); err != nil {
			log.Fatal().Err(err).Msg("failed to get migration version")
		}

	default:
		log.Fatal().Str("command", *command).Msg("unknown command. Use: up, down, status or version")
	}
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/migrate"
	"github.com/gestaozabele/frequencia/migrations"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	_ = godotenv.Load()

	dsn := flag.String("dsn", os.Getenv("DB_DSN"), "DSN do PostgreSQL")
	flag.Parse()

	if *dsn == "" {
		log.Fatal().Msg("DSN ausente: informe -dsn ou DB_DSN")
	}
	if len(flag.Args()) == 0 {
		log.Fatal().Msg("uso: migrate [up|down|seed|status]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("abrir banco")
	}
	defer db.Close()

	mgr := migrate.NewManager(db, migrations.FS, "sql", "seeds")

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up(ctx)
	case "down":
		err = mgr.Down(ctx)
	case "seed":
		err = mgr.Seed(ctx)
	case "status":
		var history []string
		history, err = mgr.Status(ctx)
		if err == nil {
			for _, item := range history {
				fmt.Println(item)
			}
		}
	default:
		log.Fatal().Str("comando", flag.Arg(0)).Msg("comando desconhecido")
	}
	if err != nil {
		log.Fatal().Err(err).Str("comando", flag.Arg(0)).Msg("migrate falhou")
	}
}

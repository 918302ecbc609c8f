package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/config"
	"github.com/gestaozabele/frequencia/internal/db"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/util"
)

const uso = `uso:
  admin hashpass <senha>
  admin bootstrap -nome N -email E -senha S -campus C -setor S -matricula M`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, uso)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "hashpass":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "uso: admin hashpass <senha>")
			os.Exit(1)
		}
		hash, err := auth.Hash(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
	case "bootstrap":
		if err := runBootstrap(os.Args[2:]); err != nil {
			log.Fatal().Err(err).Msg("bootstrap falhou")
		}
	default:
		fmt.Fprintln(os.Stderr, uso)
		os.Exit(1)
	}
}

func runBootstrap(args []string) error {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	var in BootstrapInput
	fs.StringVar(&in.Nome, "nome", "", "nome completo")
	fs.StringVar(&in.Email, "email", "", "e-mail institucional")
	fs.StringVar(&in.Senha, "senha", os.Getenv("ADMIN_SENHA"), "senha inicial")
	fs.StringVar(&in.Campus, "campus", "", "campus")
	fs.StringVar(&in.Setor, "setor", "Direção de Ensino", "setor")
	fs.StringVar(&in.Matricula, "matricula", "", "matrícula SIAPE")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	store := repo.NewPgStore(pool)
	u, err := Bootstrap(ctx, store, auditoria.NewRecorder(store), util.NewValidator(cfg.InstitutionalDomain), in)
	if err != nil {
		return err
	}
	log.Info().Str("id", u.ID.String()).Str("email", u.Email).Msg("diretor de ensino criado")
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"github.com/gestaozabele/frequencia/internal/auditoria"
	"github.com/gestaozabele/frequencia/internal/auth"
	"github.com/gestaozabele/frequencia/internal/config"
	"github.com/gestaozabele/frequencia/internal/db"
	"github.com/gestaozabele/frequencia/internal/health"
	internalhttp "github.com/gestaozabele/frequencia/internal/http"
	"github.com/gestaozabele/frequencia/internal/notify"
	"github.com/gestaozabele/frequencia/internal/obs"
	"github.com/gestaozabele/frequencia/internal/repo"
	"github.com/gestaozabele/frequencia/internal/service"
	"github.com/gestaozabele/frequencia/internal/settings"
	"github.com/gestaozabele/frequencia/internal/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	obs.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	store := repo.NewPgStore(pool)
	recorder := auditoria.NewRecorder(store)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(store, redisClient, jwtManager, cfg.JWTRefreshTTL)

	var uploader storage.Uploader = storage.NoopUploader{}
	if cfg.Storage.Enabled() {
		s3, err := storage.NewS3Uploader(cfg.Storage, &http.Client{Timeout: 15 * time.Second})
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		uploader = s3
	}

	var notifiers []notify.Notifier
	if slack := notify.NewSlackNotifier(cfg.Notify.SlackWebhookURL); slack != nil {
		notifiers = append(notifiers, slack)
	}
	if cfg.Notify.SMTPEnabled() {
		if mail := notify.NewEmailNotifier(notify.EmailConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			User:     cfg.Notify.SMTPUser,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.SMTPFrom,
		}); mail != nil {
			notifiers = append(notifiers, mail)
		}
	}
	notifyPool := notify.NewPool(redisClient, cfg.Notify.Workers, notifiers...)
	notifyDone := make(chan struct{})
	go func() {
		defer close(notifyDone)
		notifyPool.Run(ctx)
	}()

	checker := health.NewChecker(2*time.Second).
		Add("db", pool.Ping).
		Add("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })

	handler, err := internalhttp.NewRouter(cfg, internalhttp.Deps{
		Store:     store,
		Recorder:  recorder,
		Auth:      authService,
		Settings:  settings.NewService(store, redisClient, recorder),
		Publisher: notify.NewDispatcher(redisClient),
		Uploader:  uploader,
		Health:    checker,
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv, healthSrv := health.NewGRPCServer()
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go checker.Watch(ctx, healthSrv, 15*time.Second)

	errCh := make(chan error, 2)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()
	go func() {
		log.Info().Msgf("gRPC health ouvindo em :%d", cfg.GRPCPort)
		if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	grpcSrv.GracefulStop()

	select {
	case <-notifyDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("notify: pool não encerrou no prazo")
	}
	return runErr
}

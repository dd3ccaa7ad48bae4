package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"graphreview/api/internal/app"
	"graphreview/api/internal/auth"
	"graphreview/api/internal/config"
	"graphreview/api/internal/email"
	"graphreview/api/internal/logging"
	"graphreview/api/internal/notify"
	"graphreview/api/internal/profiles"
	"graphreview/api/internal/search"
	"graphreview/api/internal/store"
)

type serveCmd struct {
	cfg       *config.Config
	noMigrate bool
	noWorker  bool
}

func newServeCmd(cfg *config.Config) *serveCmd {
	return &serveCmd{cfg: cfg}
}

func (cmd *serveCmd) command() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the comment API",
		Description: `Starts the HTTP API, applies pending migrations and runs the mention
email worker when SMTP is configured.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "no-migrate",
				Usage:       "skip applying migrations on startup",
				Destination: &cmd.noMigrate,
			},
			&cli.BoolFlag{
				Name:        "no-worker",
				Usage:       "do not consume the mention stream in this process",
				Destination: &cmd.noWorker,
			},
		},
		Action: cmd.run,
	}
}

func (cmd *serveCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := *cmd.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if !cmd.noMigrate {
		applied, err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir)
		if err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		if len(applied) > 0 {
			log.Info().Strs("versions", applied).Msg("applied migrations")
		}
	}

	redisClient, err := store.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	defer redisClient.Close()

	dataStore := store.NewPostgresStore(db)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logging.Component(log.Logger, "meili"))
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgFTS(db), logging.Component(log.Logger, "search"))

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.AccessTTL)
	service := app.NewService(app.Options{
		Store:      dataStore,
		Profiles:   profiles.NewCache(redisClient, app.ProfileSource(dataStore), cfg.ProfileCacheTTL, logging.Component(log.Logger, "profiles")),
		Dispatcher: notify.NewRedisStream(redisClient, cfg.MentionStream),
		Search:     searchService,
		Issuer:     issuer,
		Logger:     logging.Component(log.Logger, "app"),
	})

	go func() {
		n, err := service.ReindexSearch(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("search reindex failed")
			return
		}
		log.Debug().Int("count", n).Msg("search reindex queued")
	}()

	mailer := email.NewService(email.Config{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		FromName:   cfg.SMTPFromName,
		AppBaseURL: cfg.AppBaseURL,
	})
	switch {
	case cmd.noWorker:
	case !mailer.IsConfigured():
		log.Warn().Msg("SMTP not configured; mention emails stay queued")
	default:
		consumer, _ := os.Hostname()
		worker := notify.NewWorker(redisClient, cfg.MentionStream, cfg.MentionGroup, consumer, mailer, logging.Component(log.Logger, "mention-worker"))
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error().Err(err).Msg("mention worker stopped")
			}
		}()
	}

	httpServer := app.NewHTTPServer(service, issuer, cfg.CORSOrigin, logging.Component(log.Logger, "http"))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Graph Review API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown error")
	}
	searchService.Wait()
	return nil
}

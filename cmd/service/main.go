package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/tilgate/internal/app"
	"github.com/dropDatabas3/tilgate/internal/bootstrap"
	"github.com/dropDatabas3/tilgate/internal/cache"
	"github.com/dropDatabas3/tilgate/internal/config"
	mail "github.com/dropDatabas3/tilgate/internal/email"
	"github.com/dropDatabas3/tilgate/internal/metrics"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/store"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to YAML config (opcional)")
	flag.Parse()

	// .env es opcional
	_ = godotenv.Load()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: cfg.App.Name, Version: version})
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.L().Error("service stopped with error", logger.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, logger.L())
	log := logger.L().With(logger.Layer("main"))

	// ───────── Storage ─────────
	st, err := store.Open(ctx, store.Config{
		Driver:          cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxConns:        cfg.Storage.Postgres.MaxConns,
		MinConns:        cfg.Storage.Postgres.MinConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		AutoMigrate:     cfg.Storage.AutoMigrate,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	// ───────── Cache (sesiones) ─────────
	c, err := cache.New(cache.Config{
		Driver:     cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.Auth.Session.TTL,
	})
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer c.Close()

	// ───────── Mailer ─────────
	var mailer mail.Sender = mail.LogSender{}
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPSender(mail.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			From:               cfg.SMTP.From,
			FromName:           cfg.SMTP.FromName,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})
	} else {
		log.Warn("smtp host not configured, reset emails go to the log only")
	}

	// ───────── Bootstrap admin ─────────
	if _, err := bootstrap.EnsureAdmin(ctx, bootstrap.AdminConfig{
		Users:    st.Users,
		Username: cfg.Bootstrap.AdminUsername,
		Password: cfg.Bootstrap.AdminPassword,
	}); err != nil {
		return err
	}

	a, err := app.New(ctx, app.Deps{Config: cfg, Store: st, Cache: c, Mailer: mailer})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	servers := []*http.Server{srv}
	if cfg.Server.MetricsAddr != "" {
		h, err := metrics.Handler()
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", h)
		servers = append(servers, &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadTimeout: cfg.Server.ReadTimeout})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			log.Info("listening", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http %s: %w", s.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, s := range servers {
			errs = append(errs, s.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	log.Info("service up",
		logger.String("env", cfg.App.Env),
		logger.String("base_url", cfg.App.BaseURL),
		logger.String("storage", st.Driver),
		logger.String("cache", cfg.Cache.Kind),
	)
	return g.Wait()
}

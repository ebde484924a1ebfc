// tilctl es la CLI de operación: migraciones, bootstrap del admin y ciclo
// de vida de cuentas sin pasar por HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/tilgate/internal/cache"
	"github.com/dropDatabas3/tilgate/internal/config"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/store"
)

type env struct {
	configPath string
	cfg        *config.Config
}

func (e *env) load() error {
	if e.cfg != nil {
		return nil
	}
	cfg, err := config.LoadOrDefault(e.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	e.cfg = cfg
	return nil
}

func (e *env) openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, store.Config{
		Driver:          e.cfg.Storage.Driver,
		DSN:             e.cfg.Storage.DSN,
		MaxConns:        2,
		ConnMaxLifetime: e.cfg.Storage.Postgres.ConnMaxLifetime,
	})
}

func (e *env) openCache() (cache.Client, error) {
	return cache.New(cache.Config{
		Driver:   e.cfg.Cache.Kind,
		Addr:     e.cfg.Cache.Redis.Addr,
		Password: e.cfg.Cache.Redis.Password,
		DB:       e.cfg.Cache.Redis.DB,
		Prefix:   e.cfg.Cache.Redis.Prefix,
	})
}

func newRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "tilctl",
		Short:         "CLI de operación para tilgate",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := e.load(); err != nil {
				return err
			}
			logger.Init(logger.Config{Env: e.cfg.App.Env, Level: e.cfg.Log.Level, ServiceName: "tilctl"})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", envOr("TILGATE_CONFIG", "configs/config.yaml"), "Path to YAML config (env TILGATE_CONFIG)")

	root.AddCommand(
		newMigrateCmd(e),
		newSeedAdminCmd(e),
		newUserCmd(e),
		newHashPasswordCmd(),
		newPurgeTokensCmd(e),
	)
	return root
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	_ = logger.Sync()
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Package cli holds the inviter command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockedby/groupinviter/internal/config"
	"github.com/blockedby/groupinviter/internal/database"
	"github.com/blockedby/groupinviter/internal/logger"
	"github.com/blockedby/groupinviter/internal/migrator"
	"github.com/blockedby/groupinviter/migrations"
)

type rootOptions struct {
	logLevel string
	logFile  string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "inviter",
		Short: "Telegram group search, member collecting and invite campaigns",
		Long: `inviter runs the chat bot that searches public groups, collects their
members and invites them into your groups, plus operator commands for the
same database.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Override LOG_FILE")

	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newStatsCmd(opts),
		newSearchCmd(opts),
		newEventsCmd(opts),
	)
	return cmd
}

// env is what every command needs: config, logger and an open database.
type env struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB
}

// setup loads config and logging and opens the database. Commands that touch
// the schema pass migrate=true to bring it up to date first.
func setup(ctx context.Context, opts *rootOptions, migrate bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.LogFile = opts.logFile
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	e := &env{cfg: cfg, log: log, db: db}
	if migrate {
		n, err := e.migrateUp(ctx)
		if err != nil {
			e.close()
			return nil, err
		}
		if n > 0 {
			log.Info().Int("applied", n).Msg("database migrated")
		}
	}
	return e, nil
}

func (e *env) migrator() (*migrator.Migrator, error) {
	fsys, err := migrations.ForDialect(e.db.Dialect)
	if err != nil {
		return nil, err
	}
	return migrator.NewWithFS(fsys)
}

func (e *env) migrateUp(ctx context.Context) (int, error) {
	m, err := e.migrator()
	if err != nil {
		return 0, err
	}
	n, err := m.Up(ctx, e.db.GORM)
	if err != nil {
		return n, fmt.Errorf("migrate: %w", err)
	}
	return n, nil
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		e.log.Warn().Err(err).Msg("failed to close database")
	}
}

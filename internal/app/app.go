// Package app wires configuration to the database pool and the services
// shared by the server and the command-line tool.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guaruja-saneamento/adesoes/internal/auth"
	"github.com/guaruja-saneamento/adesoes/internal/config"
	"github.com/guaruja-saneamento/adesoes/internal/core"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Service *core.Service
	Auth    *auth.Authenticator
}

// Open connects to the database and builds the service layer.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := OpenPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	svc, err := NewService(cfg, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &App{
		Config:  cfg,
		Pool:    pool,
		Service: svc,
		Auth: auth.New(svc, auth.Options{
			Secret:            []byte(cfg.Auth.JWTSecret),
			TokenTTL:          cfg.Auth.TokenTTL,
			BcryptCost:        cfg.Auth.BcryptCost,
			MinPasswordLength: cfg.Auth.MinPasswordLength,
		}),
	}, nil
}

// Close releases the pool.
func (a *App) Close() {
	a.Pool.Close()
}

// OpenPool creates and pings a connection pool.
func OpenPool(ctx context.Context, dc config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(dc.MaxConns)
	poolConfig.MinConns = int32(dc.MinConns)
	poolConfig.MaxConnLifetime = dc.MaxConnLifetime
	poolConfig.MaxConnIdleTime = dc.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(dc.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}

// NewService builds the service over pool from the import, prefix and
// policy settings of cfg.
func NewService(cfg *config.Config, pool *pgxpool.Pool) (*core.Service, error) {
	prefixes, err := Prefixes(cfg.Prefixes)
	if err != nil {
		return nil, err
	}

	ic := cfg.Import
	return core.NewPoolService(pool, core.Options{
		Prefixes:      prefixes,
		Policies:      Policies(ic),
		Limiter:       core.NewImportLimiter(ic.MaxConcurrent, ic.MaxWaitTime),
		ImportTimeout: ic.Timeout,
	}), nil
}

// Prefixes returns the configured community prefix table, or the
// built-in one when no file is configured.
func Prefixes(pc config.PrefixConfig) (*core.PrefixTable, error) {
	m, err := pc.LoadPrefixes()
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = core.DefaultPrefixes()
	} else {
		slog.Info("loaded community prefixes", "file", pc.File, "count", len(m))
	}
	return core.NewPrefixTable(m), nil
}

// Policies maps the configured policy names onto import types.
func Policies(ic config.ImportConfig) map[core.ImportType]core.TxPolicy {
	return map[core.ImportType]core.TxPolicy{
		core.ImportAdesoes:     core.TxPolicy(ic.PolicyAdesoes),
		core.ImportNovaLigacao: core.TxPolicy(ic.PolicyNovaLigacao),
		core.ImportLegacy:      core.TxPolicy(ic.PolicyLegacy),
	}
}

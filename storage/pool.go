// Copyright (c) 2024 Neomantra Corp

// Package storage implements the Storage Loaders: one per record kind,
// each batching validated rows into the matching TimescaleDB hypertable
// with schema-specific conflict semantics.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig configures the shared pgx connection pool per the resource
// model's pool size, checkout timeout, and recycling policy.
type PoolConfig struct {
	DSN             string
	MinConns        int32
	MaxConns        int32
	MaxConnLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig returns the pool sizing the resource model specifies:
// 10-20 connections, 30s checkout timeout, hourly recycle.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:             dsn,
		MinConns:        10,
		MaxConns:        20,
		MaxConnLifetime: time.Hour,
		ConnectTimeout:  30 * time.Second,
	}
}

// NewPool constructs a pgxpool.Pool from cfg, applying the sizing and
// recycle policy to the parsed pool config.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DSN: %w", err)
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	return pool, nil
}

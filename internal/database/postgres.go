// Package database opens the PostgreSQL connection shared by the stores.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kanzey-ticketing/internal/config"
	"kanzey-ticketing/internal/logger"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// OpenSQL connects with lib/pq, applies the pool settings and pings once.
func OpenSQL(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	sqldb, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := sqldb.PingContext(pctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping postgres at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return sqldb, nil
}

// Open wraps OpenSQL in bun with the postgres dialect.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := OpenSQL(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(&queryLogger{log: log})
	}
	log.LogDatabase("CONNECT", cfg.Database, fmt.Sprintf("connected to %s:%s", cfg.Host, cfg.Port))
	return db, nil
}

// queryLogger writes every statement at debug level.
type queryLogger struct {
	log *logger.Logger
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	msg := fmt.Sprintf("%s (%s)", event.Query, time.Since(event.StartTime).Round(time.Microsecond))
	if event.Err != nil && event.Err != sql.ErrNoRows {
		h.log.Warn("DATABASE", msg+": "+event.Err.Error())
		return
	}
	h.log.Debug("DATABASE", msg)
}

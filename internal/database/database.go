package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/schema"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linzen78111/pos2/internal/config"
)

const pingTimeout = 5 * time.Second

// Connections is the storage gateway shared by every request: a writer pool,
// an optional reader pool and the timeouts applied to work issued on them.
type Connections struct {
	Writer *bun.DB
	Reader *bun.DB

	queryTimeout time.Duration
	txTimeout    time.Duration
}

// Module registers the database connections with Fx.
var Module = fx.Provide(New)

// NewConnections wraps already opened pools. A nil reader falls back to the writer.
func NewConnections(writer, reader *bun.DB, queryTimeout, txTimeout time.Duration) *Connections {
	if reader == nil {
		reader = writer
	}
	return &Connections{
		Writer:       writer,
		Reader:       reader,
		queryTimeout: queryTimeout,
		txTimeout:    txTimeout,
	}
}

// New establishes writer and reader pools backed by Bun. The store is pinged
// on start; an unreachable store aborts startup with ErrConnection.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Connections, error) {
	dial, err := selectDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	writerSQL, err := openSQLDB(cfg.Database.Driver, cfg.Database.WriterDSN)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	applyPoolSettings(writerSQL, cfg.Database)
	writer := bun.NewDB(writerSQL, dial)

	reader := writer
	if cfg.Database.ReaderDSN != cfg.Database.WriterDSN {
		readerSQL, err := openSQLDB(cfg.Database.Driver, cfg.Database.ReaderDSN)
		if err != nil {
			return nil, fmt.Errorf("open reader: %w", err)
		}
		applyPoolSettings(readerSQL, cfg.Database)
		reader = bun.NewDB(readerSQL, dial)
	}

	conns := NewConnections(writer, reader, cfg.Database.QueryTimeout, cfg.Database.TxTimeout)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := conns.Ping(ctx); err != nil {
				logger.Error("database unreachable",
					zap.String("driver", cfg.Database.Driver),
					zap.String("server", cfg.Database.Address()),
					zap.Error(err),
				)
				return err
			}
			logger.Info("database connected",
				zap.String("driver", cfg.Database.Driver),
				zap.String("server", cfg.Database.Address()),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing database pools")
			return conns.Close()
		},
	})

	return conns, nil
}

// Ping checks the writer and, when distinct, the reader concurrently.
func (c *Connections) Ping(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := pingContext(gctx, c.Writer); err != nil {
			return fmt.Errorf("%w: ping writer: %v", ErrConnection, err)
		}
		return nil
	})
	if c.Reader != c.Writer {
		g.Go(func() error {
			if err := pingContext(gctx, c.Reader); err != nil {
				return fmt.Errorf("%w: ping reader: %v", ErrConnection, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases both pools.
func (c *Connections) Close() error {
	var closeErr error
	if err := c.Writer.Close(); err != nil {
		closeErr = fmt.Errorf("close writer: %w", err)
	}
	if c.Reader != c.Writer {
		if err := c.Reader.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close reader: %w", err))
		}
	}
	return closeErr
}

// WithQueryTimeout bounds a single read or write statement.
func (c *Connections) WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.queryTimeout)
}

// RunInTx executes fn inside a writer transaction. The transaction is
// detached from ctx cancellation so a disconnecting client can never abandon
// it half way; it is bounded by the configured transaction timeout instead.
// fn returning an error, or panicking, rolls the transaction back.
func (c *Connections) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	txCtx := context.WithoutCancel(ctx)
	if c.txTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(txCtx, c.txTimeout)
		defer cancel()
	}
	return c.Writer.RunInTx(txCtx, nil, fn)
}

func selectDialect(driver string) (schema.Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return pgdialect.New(), nil
	case "mysql":
		return mysqldialect.New(), nil
	case "sqlite":
		return sqlitedialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func openSQLDB(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("empty DSN")
	}

	switch driver {
	case "postgres":
		connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
		return sql.OpenDB(connector), nil
	case "pgx":
		connCfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse pgx dsn: %w", err)
		}
		return stdlib.OpenDB(*connCfg), nil
	case "mysql":
		return sql.Open("mysql", dsn)
	case "sqlite":
		return sql.Open("sqlite3", dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

func applyPoolSettings(db *sql.DB, cfg config.Database) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	}
}

func pingContext(ctx context.Context, db *bun.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.DB.PingContext(pingCtx)
}

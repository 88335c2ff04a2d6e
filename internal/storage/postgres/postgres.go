// Package postgres is the durable Store implementation on pgx. Transactions
// travel in the context; a repository call picks the transaction up when one
// is present and falls back to the pool otherwise.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"burger-house/internal/config"
	"burger-house/internal/domain"
	"burger-house/internal/storage"
)

type Store struct {
	pool *pgxpool.Pool
}

// Connect builds the pool and waits for the database to accept pings,
// retrying while it boots.
func Connect(ctx context.Context, cfg config.Database) (*Store, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode, cfg.MaxConns)

	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)

	var lastErr error
	for i := 1; i <= maxRetries; i++ {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		pctx, cancel := context.WithTimeout(ctx, pingTTL)
		err = pool.Ping(pctx)
		cancel()
		if err == nil {
			return &Store{pool: pool}, nil
		}
		lastErr = err
		pool.Close()

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("db connect canceled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, lastErr)
}

func (s *Store) Close() { s.pool.Close() }

type txKey struct{}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// WithTransaction opens a transaction and stores it in the context handed to
// fn. A call already inside a transaction joins it.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) SKUs() storage.SKURepo                   { return (*skuRepo)(s) }
func (s *Store) Movements() storage.MovementRepo         { return (*movementRepo)(s) }
func (s *Store) Orders() storage.OrderRepo               { return (*orderRepo)(s) }
func (s *Store) Deliveries() storage.DeliveryRepo        { return (*deliveryRepo)(s) }
func (s *Store) Subscriptions() storage.SubscriptionRepo { return (*subscriptionRepo)(s) }

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

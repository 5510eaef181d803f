package postgres

import (
	"context"
	"fmt"

	"github.com/geocoder89/todotask/internal/db"
	"github.com/geocoder89/todotask/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreDecorator wraps the per-transaction store, e.g. with a read-through cache.
type StoreDecorator func(service.UserStore) service.UserStore

// UnitOfWork gives each request one transaction from the shared pool and a
// UsersRepo bound to it.
type UnitOfWork struct {
	pool     *pgxpool.Pool
	obs      DBObserver
	decorate StoreDecorator
}

func NewUnitOfWork(pool *pgxpool.Pool, obs DBObserver, decorate StoreDecorator) *UnitOfWork {
	return &UnitOfWork{pool: pool, obs: obs, decorate: decorate}
}

func (u *UnitOfWork) InTx(ctx context.Context, fn func(ctx context.Context, users service.UserStore) error) error {
	err := db.WithTx(ctx, u.pool, func(ctx context.Context, tx pgx.Tx) error {
		var store service.UserStore = NewUsersRepo(tx, u.obs)

		if u.decorate != nil {
			store = u.decorate(store)
		}

		return fn(ctx, store)
	})

	// deferred constraint checks report the unique violation on commit
	if err != nil && IsUniqueViolation(err) {
		return fmt.Errorf("%w: %w", ErrEmailAlreadyUsed, err)
	}

	return err
}

func (u *UnitOfWork) Ping(ctx context.Context) error {
	return u.pool.Ping(ctx)
}

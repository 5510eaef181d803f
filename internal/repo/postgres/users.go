package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/geocoder89/todotask/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Storage-level names for the domain sentinels.
var (
	ErrUserNotFound     = user.ErrNotFound
	ErrEmailAlreadyUsed = user.ErrEmailTaken
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBObserver times a logical DB operation.
type DBObserver interface {
	ObserveDB(op string, fn func() error) error
}

type UsersRepo struct {
	db  DBTX
	obs DBObserver
}

func NewUsersRepo(db DBTX, obs DBObserver) *UsersRepo {
	return &UsersRepo{db: db, obs: obs}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.obs == nil {
		return fn()
	}
	return r.obs.ObserveDB(op, fn)
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_email", func() error {
		return scanUser(r.db.QueryRow(
			ctx,
			`SELECT id, email, password_hash, created_at, updated_at
			 FROM users
			 WHERE email = $1`,
			email,
		), &u)
	})

	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var u user.User

	err := r.observe("users.get_by_id", func() error {
		return scanUser(r.db.QueryRow(
			ctx,
			`SELECT id, email, password_hash, created_at, updated_at
			 FROM users
			 WHERE id = $1`,
			id,
		), &u)
	})

	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash string) (user.User, error) {
	var u user.User

	err := r.observe("users.create", func() error {
		return scanUser(r.db.QueryRow(
			ctx,
			`INSERT INTO users (email, password_hash)
			 VALUES ($1, $2)
			 RETURNING id, email, password_hash, created_at, updated_at`,
			email, passwordHash,
		), &u)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, ErrEmailAlreadyUsed
		}

		return user.User{}, err
	}

	return u, nil
}

func scanUser(row pgx.Row, u *user.User) error {
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %w", ErrUserNotFound, err)
		}

		return err
	}

	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	return nil
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

package service

import (
	"context"
	"errors"

	"github.com/geocoder89/todotask/internal/auth"
	"github.com/geocoder89/todotask/internal/domain/user"
)

// UnitOfWork runs fn inside one transaction: committed when fn returns nil,
// rolled back on an error or panic.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(ctx context.Context, users UserStore) error) error
}

// Accounts is the request-level entry point used by the HTTP layer. Every
// call opens its own transaction and builds a fresh AuthService around it.
type Accounts struct {
	uow    UnitOfWork
	tokens TokenCodec
	opts   []Option
}

func NewAccounts(uow UnitOfWork, tokens TokenCodec, opts ...Option) *Accounts {
	return &Accounts{
		uow:    uow,
		tokens: tokens,
		opts:   opts,
	}
}

func (a *Accounts) service(users UserStore) *AuthService {
	return NewAuthService(users, a.tokens, a.opts...)
}

func (a *Accounts) Register(ctx context.Context, email, password string) (user.User, error) {
	var created user.User

	err := a.uow.InTx(ctx, func(ctx context.Context, users UserStore) error {
		var err error
		created, err = a.service(users).CreateUser(ctx, email, password)
		return err
	})

	if err != nil {
		// a unique violation can also surface on commit
		if errors.Is(err, user.ErrEmailTaken) && !errors.Is(err, ErrDuplicateEmail) {
			return user.User{}, ErrDuplicateEmail.with(err)
		}

		return user.User{}, err
	}

	return created, nil
}

func (a *Accounts) Login(ctx context.Context, email, password string) (auth.TokenPair, error) {
	var pair auth.TokenPair

	err := a.uow.InTx(ctx, func(ctx context.Context, users UserStore) error {
		var err error
		pair, err = a.service(users).Login(ctx, email, password)
		return err
	})

	return pair, err
}

// Authenticate resolves a bearer token to a user id without touching storage.
func (a *Accounts) Authenticate(token string) (int64, error) {
	return a.service(nil).GetUserIDFromAccessToken(token)
}

// User returns the account with id, or user.ErrNotFound.
func (a *Accounts) User(ctx context.Context, id int64) (user.User, error) {
	var found *user.User

	err := a.uow.InTx(ctx, func(ctx context.Context, users UserStore) error {
		var err error
		found, err = a.service(users).GetUserByID(ctx, id)
		return err
	})

	if err != nil {
		return user.User{}, err
	}

	if found == nil {
		return user.User{}, user.ErrNotFound
	}

	return *found, nil
}

// EnsureUser returns the user with email, creating it with password when absent.
func (a *Accounts) EnsureUser(ctx context.Context, email, password string) (user.User, bool, error) {
	var (
		out     user.User
		created bool
	)

	err := a.uow.InTx(ctx, func(ctx context.Context, users UserStore) error {
		svc := a.service(users)

		existing, err := svc.GetUserByEmail(ctx, email)

		if err != nil {
			return err
		}

		if existing != nil {
			out = *existing
			return nil
		}

		out, err = svc.CreateUser(ctx, email, password)
		created = err == nil
		return err
	})

	if err != nil {
		return user.User{}, false, err
	}

	return out, created, nil
}

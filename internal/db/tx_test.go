package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit(ctx context.Context) error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (f *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}

	err := WithTx(context.Background(), b, func(ctx context.Context, tx pgx.Tx) error {
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.tx.committed || b.tx.rolledBack {
		t.Fatalf("expected commit only, got committed=%v rolledBack=%v", b.tx.committed, b.tx.rolledBack)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")

	err := WithTx(context.Background(), b, func(ctx context.Context, tx pgx.Tx) error {
		return boom
	})

	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if b.tx.committed || !b.tx.rolledBack {
		t.Fatalf("expected rollback only, got committed=%v rolledBack=%v", b.tx.committed, b.tx.rolledBack)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic to be re-raised")
		}
		if b.tx.committed || !b.tx.rolledBack {
			t.Fatalf("expected rollback only, got committed=%v rolledBack=%v", b.tx.committed, b.tx.rolledBack)
		}
	}()

	_ = WithTx(context.Background(), b, func(ctx context.Context, tx pgx.Tx) error {
		panic("handler blew up")
	})
}

func TestWithTx_CommitErrorSurfaces(t *testing.T) {
	commitErr := errors.New("could not serialize access")
	b := &fakeBeginner{tx: &fakeTx{commitErr: commitErr}}

	err := WithTx(context.Background(), b, func(ctx context.Context, tx pgx.Tx) error {
		return nil
	})

	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit error, got %v", err)
	}
}

func TestWithTx_BeginError(t *testing.T) {
	beginErr := errors.New("pool closed")
	called := false

	err := WithTx(context.Background(), &fakeBeginner{err: beginErr}, func(ctx context.Context, tx pgx.Tx) error {
		called = true
		return nil
	})

	if !errors.Is(err, beginErr) {
		t.Fatalf("expected begin error, got %v", err)
	}
	if called {
		t.Fatalf("fn must not run without a transaction")
	}
}

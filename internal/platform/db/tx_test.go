package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx       *fakeTx
	beginErr error
	opts     pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.beginErr != nil {
		return nil, b.beginErr
	}
	return b.tx, nil
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}

	err := WithTx(context.Background(), b, func(tx pgx.Tx) error { return nil })

	require.NoError(t, err)
	require.True(t, b.tx.committed)
	require.Equal(t, pgx.RepeatableRead, b.opts.IsoLevel)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}
	boom := errors.New("boom")

	err := WithTx(context.Background(), b, func(tx pgx.Tx) error { return boom })

	require.ErrorIs(t, err, boom)
	require.False(t, b.tx.committed)
	require.True(t, b.tx.rolledBack)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	b := &fakeBeginner{tx: &fakeTx{}}

	require.Panics(t, func() {
		_ = WithTx(context.Background(), b, func(tx pgx.Tx) error { panic("boom") })
	})
	require.False(t, b.tx.committed)
	require.True(t, b.tx.rolledBack)
}

func TestWithTxWrapsBeginAndCommitErrors(t *testing.T) {
	beginErr := errors.New("no connection")
	err := WithTx(context.Background(), &fakeBeginner{beginErr: beginErr}, func(tx pgx.Tx) error { return nil })
	require.ErrorIs(t, err, beginErr)

	commitErr := errors.New("serialization failure")
	b := &fakeBeginner{tx: &fakeTx{commitErr: commitErr}}
	err = WithTx(context.Background(), b, func(tx pgx.Tx) error { return nil })
	require.ErrorIs(t, err, commitErr)
	require.True(t, b.tx.rolledBack)
}

package services

import (
	"context"
	"testing"

	"rpmt/internal/testutil"
	"rpmt/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOutbox_EnqueueSkipsSentinels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.outbox.Enqueue(ctx, models.NoImage, "", models.NoPDF, "a.png"))

	pending, err := env.outbox.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "a.png", pending[0].ObjectKey)
}

func TestOutbox_DrainRetriesFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.store.Put("a.png", []byte("a"))
	env.store.Put("b.png", []byte("b"))
	env.store.FailDelete["b.png"] = true
	require.NoError(t, env.outbox.Enqueue(ctx, "a.png", "b.png"))

	n, err := env.outbox.Drain(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := env.outbox.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b.png", pending[0].ObjectKey)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, testutil.ErrInjected.Error())

	n, err = env.outbox.Drain(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err = env.outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, pending[0].Attempts)

	delete(env.store.FailDelete, "b.png")
	n, err = env.outbox.Drain(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, env.store.Keys())
}

func TestOutbox_DrainRespectsLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.outbox.Enqueue(ctx, "a.png", "b.png", "c.png"))

	n, err := env.outbox.Drain(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a.png", "b.png"}, env.store.Deleted())
}

func TestOutbox_EnqueueTxRollsBackWithCaller(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, env.outbox.EnqueueTx(tx, "a.png"))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	pending, err := env.outbox.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutbox_DrainKeepsReferencedObject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, env.db, "faculty", models.RoleFaculty)
	p := insertProject(t, env.db, user, "10.1000/a")
	require.NoError(t, env.db.Model(p).Update("pdf", "doc_1.pdf").Error)
	env.store.Put("doc_1.pdf", []byte("pdf"))
	require.NoError(t, env.outbox.Enqueue(ctx, "doc_1.pdf"))

	n, err := env.outbox.Drain(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, env.store.Has("doc_1.pdf"))
	assert.Zero(t, countRows(t, env.db, &models.PendingDeletion{}))
}

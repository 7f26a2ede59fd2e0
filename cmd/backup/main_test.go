package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"rpmt/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	objects    []storage.ObjectInfo
	deleted    []string
	failDelete string
	listErr    error
}

func (f *fakeStore) Upload(context.Context, string, []byte, string) error { return nil }

func (f *fakeStore) Delete(_ context.Context, key string) error {
	if key == f.failDelete {
		return errors.New("boom")
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []storage.ObjectInfo
	for _, o := range f.objects {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out, nil
}

func backupsAt(days ...int) []storage.ObjectInfo {
	base := time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC)
	var out []storage.ObjectInfo
	for _, d := range days {
		ts := base.AddDate(0, 0, d)
		out = append(out, storage.ObjectInfo{Key: backupKey(ts), LastModified: ts})
	}
	return out
}

func TestBackupKey(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "backups/backup-2024-03-09T13-05-07Z.sql.gz", backupKey(ts))
}

func TestRotateBackupsKeepsNewest(t *testing.T) {
	store := &fakeStore{objects: backupsAt(3, 0, 4, 1, 2)}
	store.objects = append(store.objects, storage.ObjectInfo{Key: "proof_1.png", LastModified: time.Unix(0, 0)})

	require.NoError(t, rotateBackups(context.Background(), store, 3, zap.NewNop()))
	assert.ElementsMatch(t, []string{backupKey(backupsAt(0)[0].LastModified), backupKey(backupsAt(1)[0].LastModified)}, store.deleted)
}

func TestRotateBackupsNothingToDo(t *testing.T) {
	store := &fakeStore{objects: backupsAt(0, 1)}
	require.NoError(t, rotateBackups(context.Background(), store, 4, zap.NewNop()))
	assert.Empty(t, store.deleted)
}

func TestRotateBackupsContinuesAfterDeleteFailure(t *testing.T) {
	store := &fakeStore{objects: backupsAt(0, 1, 2)}
	store.failDelete = backupsAt(0)[0].Key

	require.NoError(t, rotateBackups(context.Background(), store, 1, zap.NewNop()))
	assert.Equal(t, []string{backupsAt(1)[0].Key}, store.deleted)
}

func TestRotateBackupsListError(t *testing.T) {
	store := &fakeStore{listErr: errors.New("unavailable")}
	assert.EqualError(t, rotateBackups(context.Background(), store, 1, zap.NewNop()), "unavailable")
}

func TestGzipStream(t *testing.T) {
	data, err := gzipStream(strings.NewReader("CREATE TABLE projects;"))
	require.NoError(t, err)

	r, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	plain, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE projects;", string(plain))
}

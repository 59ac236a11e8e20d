package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/sportsync/internal/config"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	require.NoError(t, store.EnsureBucket(ctx))

	require.NoError(t, store.Put(ctx, "batches/leagues/1.json", []byte(`{"id":1}`), "application/json"))

	body, err := store.Get(ctx, "batches/leagues/1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1}`, string(body))

	url, err := store.URL(ctx, "batches/leagues/1.json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "batches/leagues/1.json"))

	_, err = store.Get(ctx, "batches/leagues/2.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFileStoreKeysStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root)
	assert.True(t, strings.HasPrefix(store.path("../../etc/passwd"), root))
}

func TestDetectStorageType(t *testing.T) {
	assert.Equal(t, StorageTypeLocal, detectStorageType(""))
	assert.Equal(t, StorageTypeLocal, detectStorageType("./data/archive"))
	assert.Equal(t, StorageTypeR2, detectStorageType("https://abc.r2.cloudflarestorage.com"))
	assert.Equal(t, StorageTypeS3, detectStorageType("s3.eu-west-1.amazonaws.com"))
	assert.Equal(t, StorageTypeS3Compatible, detectStorageType("minio:9000"))
}

func TestNewObjectStoreRejectsUnknownType(t *testing.T) {
	_, err := NewObjectStore(config.ArchiveConfig{Type: "ftp"})
	assert.Error(t, err)

	store, err := NewObjectStore(config.ArchiveConfig{Type: "local", Endpoint: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/"))
	assert.Equal(t, "abc.r2.cloudflarestorage.com", normalizeEndpoint("https://abc.r2.cloudflarestorage.com/bucket"))
}

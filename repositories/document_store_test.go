package repositories

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
)

func TestDocumentStore_disabled(t *testing.T) {
	assert.False(t, NewDocumentStore("").Enabled())

	var store *DocumentStore
	assert.False(t, store.Enabled())
}

func TestDocumentStore_store(t *testing.T) {
	dir := t.TempDir()
	bucketUrl := "file://" + dir

	store := NewDocumentStore(bucketUrl)
	require.True(t, store.Enabled())
	defer store.Close()

	key, err := store.Store(t.Context(), testSuiteId, "requirements.md", "text/plain", []byte("block lost cards"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, testSuiteId.String()+"/"))
	assert.True(t, strings.HasSuffix(key, "/requirements.md"))

	bucket, err := blob.OpenBucket(t.Context(), bucketUrl)
	require.NoError(t, err)
	defer bucket.Close()

	content, err := bucket.ReadAll(t.Context(), key)
	require.NoError(t, err)
	assert.Equal(t, "block lost cards", string(content))

	attrs, err := bucket.Attributes(t.Context(), key)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", attrs.ContentType)
}

func TestDocumentStore_inaccessibleBucket(t *testing.T) {
	store := NewDocumentStore("file:///this/directory/does/not/exist")

	_, err := store.Store(t.Context(), testSuiteId, "doc.txt", "text/plain", []byte("x"))

	assert.Error(t, err)
}

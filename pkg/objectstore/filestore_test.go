package objectstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"

	"github.com/s3mockd/s3mockd/pkg/digest"
	"github.com/s3mockd/s3mockd/pkg/multipart"
)

var _ multipart.ObjectStore = (*FileObjectStore)(nil)

func writeTempFile(t *testing.T, dir, contents string) string {
	t.Helper()
	f, err := os.CreateTemp(dir, "source-")
	assert.NoError(t, err)
	_, err = f.WriteString(contents)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	return f.Name()
}

func TestFileObjectStore_StoreAndGetObjectMetadata(t *testing.T) {
	a := assert.New(t)

	tmp, err := os.MkdirTemp("", "s3mockd-objectstore-")
	a.NoError(err)
	defer os.RemoveAll(tmp)

	store := New(tmp)
	source := writeTempFile(t, tmp, "hello world")

	owner := types.Owner{ID: stringPtr("owner-1")}
	err = store.StoreObject("my-bucket", "object-1", "path/to/key.txt", "text/plain", map[string]string{"x-amz-foo": "bar"}, source, map[string]string{"k": "v"}, nil, "etag-123", map[string]string{"tag": "value"}, digest.AlgorithmNone, "", owner, types.StorageClassStandard)
	a.NoError(err)

	meta, err := store.GetObjectMetadata("my-bucket", "object-1")
	a.NoError(err)
	a.Equal("etag-123", meta.ETag)
	a.Equal(int64(len("hello world")), meta.Size)
	a.Equal(store.DataPath("my-bucket", "object-1"), meta.DataPath)

	data, err := os.ReadFile(meta.DataPath)
	a.NoError(err)
	a.Equal("hello world", string(data))

	// The source file was consumed by StoreObject.
	_, err = os.Stat(source)
	a.True(os.IsNotExist(err))
}

func TestFileObjectStore_GetObjectMetadata_MissingReturnsNoSuchKey(t *testing.T) {
	a := assert.New(t)

	tmp, err := os.MkdirTemp("", "s3mockd-objectstore-")
	a.NoError(err)
	defer os.RemoveAll(tmp)

	store := New(tmp)
	_, err = store.GetObjectMetadata("my-bucket", "missing-object")
	a.Error(err)
	a.Contains(err.Error(), "NoSuchKey")
}

func TestFileObjectStore_MaterializePartFromPath(t *testing.T) {
	a := assert.New(t)

	tmp, err := os.MkdirTemp("", "s3mockd-objectstore-")
	a.NoError(err)
	defer os.RemoveAll(tmp)

	store := New(tmp)
	source := writeTempFile(t, tmp, "part bytes")
	dest := filepath.Join(tmp, "my-bucket", "object-1", "upload-1", "1.part")

	f, err := store.MaterializePartFromPath(source, dest)
	a.NoError(err)
	defer f.Close()

	data, err := os.ReadFile(dest)
	a.NoError(err)
	a.Equal("part bytes", string(data))

	// The returned handle is positioned at the start, ready to be read.
	readBack := make([]byte, len("part bytes"))
	n, err := f.Read(readBack)
	a.NoError(err)
	a.Equal("part bytes", string(readBack[:n]))
}

func TestFileObjectStore_StoreObject_OverwritesExisting(t *testing.T) {
	a := assert.New(t)

	tmp, err := os.MkdirTemp("", "s3mockd-objectstore-")
	a.NoError(err)
	defer os.RemoveAll(tmp)

	store := New(tmp)

	first := writeTempFile(t, tmp, "version one")
	a.NoError(store.StoreObject("b", "o", "k", "text/plain", nil, first, nil, nil, "etag-1", nil, digest.AlgorithmNone, "", types.Owner{}, types.StorageClassStandard))

	second := writeTempFile(t, tmp, "version two, longer")
	a.NoError(store.StoreObject("b", "o", "k", "text/plain", nil, second, nil, nil, "etag-2", nil, digest.AlgorithmNone, "", types.Owner{}, types.StorageClassStandard))

	meta, err := store.GetObjectMetadata("b", "o")
	a.NoError(err)
	a.Equal("etag-2", meta.ETag)

	data, err := os.ReadFile(meta.DataPath)
	a.NoError(err)
	a.True(strings.HasPrefix(string(data), "version two"))
}

func stringPtr(s string) *string { return &s }

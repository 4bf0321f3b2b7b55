// Package objectstore provides a filesystem-backed implementation of the
// multipart engine's ObjectStore collaborator: a finished object's bytes
// live in a data file, its metadata in a JSON sidecar next to it, grounded
// in the same info-file-per-upload convention pkg/filestore uses for
// tus uploads.
package objectstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/s3mockd/s3mockd/pkg/digest"
	"github.com/s3mockd/s3mockd/pkg/multipart"
	"github.com/s3mockd/s3mockd/pkg/s3err"
)

const (
	dataFileName = "data"
	metaFileName = "object.json"

	defaultFilePerm = os.FileMode(0o664)
	defaultDirPerm  = os.FileMode(0o755)
)

// objectMetadata is the JSON sidecar persisted next to an object's data
// file, analogous to pkg/filestore's "[id].info" records.
type objectMetadata struct {
	Key               string             `json:"key"`
	ContentType       string             `json:"contentType"`
	StoreHeaders      map[string]string  `json:"storeHeaders,omitempty"`
	UserMetadata      map[string]string  `json:"userMetadata,omitempty"`
	EncryptionHeaders map[string]string  `json:"encryptionHeaders,omitempty"`
	Tags              map[string]string  `json:"tags,omitempty"`
	ETag              string             `json:"etag"`
	ChecksumAlgorithm digest.Algorithm   `json:"checksumAlgorithm,omitempty"`
	Checksum          string             `json:"checksum,omitempty"`
	Owner             types.Owner        `json:"owner"`
	StorageClass      types.StorageClass `json:"storageClass"`
	Size              int64              `json:"size"`
	LastModified      time.Time          `json:"lastModified"`
}

// FileObjectStore persists objects under Root/<bucket>/<objectId>/.
type FileObjectStore struct {
	Root string
}

// New returns a FileObjectStore rooted at root. The caller is responsible
// for ensuring root exists.
func New(root string) *FileObjectStore {
	return &FileObjectStore{Root: root}
}

var _ multipart.ObjectStore = (*FileObjectStore)(nil)

func (s *FileObjectStore) objectDir(bucket, objectID string) string {
	return filepath.Join(s.Root, bucket, objectID)
}

// DataPath returns the path an object's data file lives (or would live) at.
func (s *FileObjectStore) DataPath(bucket, objectID string) string {
	return filepath.Join(s.objectDir(bucket, objectID), dataFileName)
}

func (s *FileObjectStore) metaPath(bucket, objectID string) string {
	return filepath.Join(s.objectDir(bucket, objectID), metaFileName)
}

// StoreObject atomically installs sourcePath as the object's data file and
// writes its metadata sidecar. sourcePath is consumed: on success it no
// longer exists at its original location.
func (s *FileObjectStore) StoreObject(bucket, objectID, key, contentType string, storeHeaders map[string]string, sourcePath string, userMetadata map[string]string, encryptionHeaders map[string]string, etag string, tags map[string]string, checksumAlgorithm digest.Algorithm, checksum string, owner types.Owner, storageClass types.StorageClass) error {
	dir := s.objectDir(bucket, objectID)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return err
	}

	fi, err := os.Stat(sourcePath)
	if err != nil {
		return err
	}

	dataPath := s.DataPath(bucket, objectID)
	if err := installFile(sourcePath, dataPath); err != nil {
		return err
	}

	meta := objectMetadata{
		Key:               key,
		ContentType:       contentType,
		StoreHeaders:      storeHeaders,
		UserMetadata:      userMetadata,
		EncryptionHeaders: encryptionHeaders,
		Tags:              tags,
		ETag:              etag,
		ChecksumAlgorithm: checksumAlgorithm,
		Checksum:          checksum,
		Owner:             owner,
		StorageClass:      storageClass,
		Size:              fi.Size(),
		LastModified:      time.Now(),
	}
	return writeMetadata(s.metaPath(bucket, objectID), meta)
}

// GetObjectMetadata returns metadata for an already-stored object.
func (s *FileObjectStore) GetObjectMetadata(bucket, objectID string) (multipart.StoredObjectMetadata, error) {
	meta, err := readMetadata(s.metaPath(bucket, objectID))
	if err != nil {
		if os.IsNotExist(err) {
			return multipart.StoredObjectMetadata{}, s3err.NoSuchKey(objectID)
		}
		return multipart.StoredObjectMetadata{}, s3err.Internal(err)
	}
	return multipart.StoredObjectMetadata{
		DataPath: s.DataPath(bucket, objectID),
		Size:     meta.Size,
		ETag:     meta.ETag,
	}, nil
}

// MaterializePartFromPath moves sourcePath to destPartPath (copying and then
// removing the source when a rename is not possible) and returns the new
// file opened for reading, positioned at its start.
func (s *FileObjectStore) MaterializePartFromPath(sourcePath, destPartPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(destPartPath), defaultDirPerm); err != nil {
		return nil, err
	}
	if err := installFile(sourcePath, destPartPath); err != nil {
		return nil, err
	}
	return os.Open(destPartPath)
}

// installFile moves src to dst, falling back to copy+remove when they live
// on different filesystems (os.Rename's EXDEV).
func installFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// writeMetadata marshals meta to path via a temp file + rename so a reader
// never observes a partially written sidecar.
func writeMetadata(path string, meta objectMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), fmt.Sprintf(".%s.tmp-", filepath.Base(path)))
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), defaultFilePerm); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func readMetadata(path string) (objectMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return objectMetadata{}, err
	}
	var meta objectMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return objectMetadata{}, err
	}
	return meta, nil
}

package multipart

import (
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/s3mockd/s3mockd/pkg/digest"
)

// StoredObjectMetadata is what ObjectStore.GetObjectMetadata returns about
// an already-finalized object.
type StoredObjectMetadata struct {
	DataPath string
	Size     int64
	ETag     string
}

// ObjectStore is the collaborator the engine hands a finished upload to. It
// is deliberately small: everything about bucket layout, XML responses, and
// HTTP framing lives outside the engine.
type ObjectStore interface {
	// StoreObject atomically installs sourcePath as the data file for
	// (bucket, objectId) and records the given metadata against it.
	StoreObject(bucket, objectID, key, contentType string, storeHeaders map[string]string, sourcePath string, userMetadata map[string]string, encryptionHeaders map[string]string, etag string, tags map[string]string, checksumAlgorithm digest.Algorithm, checksum string, owner types.Owner, storageClass types.StorageClass) error

	// GetObjectMetadata returns metadata for an already-stored object, or
	// s3err.NoSuchKey if it does not exist.
	GetObjectMetadata(bucket, objectID string) (StoredObjectMetadata, error)

	// DataPath returns the filesystem path an object's bytes would live at,
	// whether or not the object currently exists.
	DataPath(bucket, objectID string) string

	// MaterializePartFromPath copies or renames a client-provided body path
	// into destPartPath, returning the open file positioned at its start.
	MaterializePartFromPath(sourcePath, destPartPath string) (*os.File, error)
}

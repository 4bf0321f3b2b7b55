// Package multipart implements the multipart upload engine: staging of part
// files under an upload identifier, concurrency-safe complete/abort
// transitions, ETag computation over an ordered part set, and promotion of
// the assembled object into an ObjectStore.
package multipart

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/s3mockd/s3mockd/pkg/digest"
)

// MultipartUpload is the externally visible descriptor for an in-progress
// multipart upload.
type MultipartUpload struct {
	Key          string
	UploadID     string
	Bucket       string
	ObjectID     string
	Owner        types.Owner
	Initiator    types.Initiator
	StorageClass types.StorageClass
	Initiated    time.Time
}

// Info is the engine's full internal record for an upload: the externally
// visible MultipartUpload plus everything needed to assemble and store the
// finished object.
type Info struct {
	MultipartUpload

	ContentType       string
	UserMetadata      map[string]string
	StoreHeaders      map[string]string
	EncryptionHeaders map[string]string
	Tags              map[string]string

	ChecksumAlgorithm digest.Algorithm
	Checksum          string
}

// Part describes one staged part of an in-progress upload.
type Part struct {
	PartNumber   int
	ETag         string
	LastModified time.Time
	Size         int64
}

// CompletedPart is one entry of the ordered list a client supplies to
// Complete, naming the part it expects to find staged at that number.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// ByteRange is an inclusive [Start, End] byte range used by CopyPart. A
// nil *ByteRange means "the whole source object".
type ByteRange struct {
	Start int64
	End   int64
}

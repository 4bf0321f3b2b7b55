package multipart

import (
	"crypto/md5"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/s3mockd/s3mockd/internal/s3log"
	"github.com/s3mockd/s3mockd/internal/semaphore"
	"github.com/s3mockd/s3mockd/pkg/digest"
	"github.com/s3mockd/s3mockd/pkg/s3err"
)

// kmsKeyIDHeader names the encryption header CopyPart/PutPart/Complete
// check for a KMS key identifier to apply the KMSTaggedMD5 ETag quirk.
const kmsKeyIDHeader = "x-amz-server-side-encryption-aws-kms-key-id"

const defaultListLimit = 1000

// Engine is the multipart upload engine: a concurrent registry of
// in-progress uploads plus the lifecycle operations that mutate it.
type Engine struct {
	store       ObjectStore
	registry    *registry
	partDigests *partDigestCache
	copySem     semaphore.Semaphore
	metrics     *metrics
	log         *s3log.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithCopyConcurrency bounds the number of concurrent CopyPart/Complete
// assembly I/O operations in flight.
func WithCopyConcurrency(limit int) Option {
	return func(e *Engine) {
		if limit < 1 {
			limit = 1
		}
		e.copySem = semaphore.New(limit)
	}
}

// WithLogger sets the slog.Logger operations are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.log = s3log.New(logger)
	}
}

// New constructs an Engine backed by store.
func New(store ObjectStore, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		registry:    newRegistry(),
		partDigests: newPartDigestCache(),
		copySem:     semaphore.New(10),
		metrics:     newMetrics(),
		log:         s3log.New(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics.copySemaphoreLimit.Set(float64(cap(e.copySem)))
	return e
}

// RegisterMetrics adds the Engine's Prometheus collectors to registry.
func (e *Engine) RegisterMetrics(registry prometheus.Registerer) {
	e.metrics.Register(registry)
}

func (e *Engine) objectDir(bucket, objectID string) string {
	return filepath.Dir(e.store.DataPath(bucket, objectID))
}

// Prepare creates the staging directory for a new multipart upload and
// registers it under uploadID, which must not already be registered.
func (e *Engine) Prepare(bucket, key, objectID, contentType string, storeHeaders map[string]string, uploadID string, owner types.Owner, initiator types.Initiator, userMetadata map[string]string, encryptionHeaders map[string]string, storageClass types.StorageClass, tags map[string]string, checksum string, checksumAlgorithm digest.Algorithm) (MultipartUpload, error) {
	start := time.Now()
	logAttrs := []any{"bucket", bucket, "key", key, "upload_id", uploadID}

	objectDir := e.objectDir(bucket, objectID)
	if err := ensureStagingDir(objectDir, uploadID); err != nil {
		err = s3err.Internal(err)
		e.log.LogOperation(metricPrepare, logAttrs, err, time.Since(start))
		return MultipartUpload{}, err
	}

	upload := MultipartUpload{
		Key:          key,
		UploadID:     uploadID,
		Bucket:       bucket,
		ObjectID:     objectID,
		Owner:        owner,
		Initiator:    initiator,
		StorageClass: storageClass,
		Initiated:    time.Now(),
	}
	info := &Info{
		MultipartUpload:   upload,
		ContentType:       contentType,
		UserMetadata:      userMetadata,
		StoreHeaders:      storeHeaders,
		EncryptionHeaders: encryptionHeaders,
		Tags:              tags,
		ChecksumAlgorithm: checksumAlgorithm,
		Checksum:          checksum,
	}

	if _, ok := e.registry.register(uploadID, info); !ok {
		_ = removeStagingDir(objectDir, uploadID)
		err := s3err.Internal(fmt.Errorf("upload id %q is already registered", uploadID))
		e.log.LogOperation(metricPrepare, logAttrs, err, time.Since(start))
		return MultipartUpload{}, err
	}

	e.metrics.observe(start, metricPrepare)
	e.log.LogOperation(metricPrepare, logAttrs, nil, time.Since(start))
	return upload, nil
}

// ListMultipartUploadsResult is the paginated result of ListMultipartUploads.
type ListMultipartUploadsResult struct {
	Uploads            []MultipartUpload
	IsTruncated        bool
	NextKeyMarker      string
	NextUploadIDMarker string
}

// ListMultipartUploads returns a deterministically ordered, optionally
// filtered and paginated snapshot of currently registered uploads.
func (e *Engine) ListMultipartUploads(bucketName, prefix, keyMarker, uploadIDMarker string, maxUploads int) ListMultipartUploadsResult {
	start := time.Now()

	var all []MultipartUpload
	for _, rec := range e.registry.snapshot() {
		info := rec.info
		if bucketName != "" && info.Bucket != bucketName {
			continue
		}
		if prefix != "" && !strings.HasPrefix(info.Key, prefix) {
			continue
		}
		all = append(all, info.MultipartUpload)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Key != all[j].Key {
			return all[i].Key < all[j].Key
		}
		return all[i].UploadID < all[j].UploadID
	})

	if keyMarker != "" {
		idx := sort.Search(len(all), func(i int) bool {
			if all[i].Key != keyMarker {
				return all[i].Key > keyMarker
			}
			return all[i].UploadID > uploadIDMarker
		})
		all = all[idx:]
	}

	if maxUploads <= 0 {
		maxUploads = defaultListLimit
	}

	result := ListMultipartUploadsResult{}
	if len(all) > maxUploads {
		result.Uploads = all[:maxUploads]
		result.IsTruncated = true
		last := result.Uploads[len(result.Uploads)-1]
		result.NextKeyMarker = last.Key
		result.NextUploadIDMarker = last.UploadID
	} else {
		result.Uploads = all
	}

	e.metrics.observe(start, metricListUploads)
	return result
}

// GetMultipartUpload returns the descriptor for uploadID.
func (e *Engine) GetMultipartUpload(uploadID string) (MultipartUpload, error) {
	start := time.Now()
	rec, ok := e.registry.lookup(uploadID)
	if !ok {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricGetUpload, []any{"upload_id", uploadID}, err, time.Since(start))
		return MultipartUpload{}, err
	}
	e.metrics.observe(start, metricGetUpload)
	return rec.info.MultipartUpload, nil
}

// Stat reports the number of staged parts and their combined byte size for
// an in-progress upload, a thin read-only projection over its staging
// directory.
func (e *Engine) Stat(uploadID string) (count int, totalBytes int64, err error) {
	rec, ok := e.registry.lookup(uploadID)
	if !ok {
		return 0, 0, s3err.NoSuchUpload(uploadID)
	}
	objectDir := e.objectDir(rec.info.Bucket, rec.info.ObjectID)
	nums, err := listStagedParts(objectDir, uploadID)
	if err != nil {
		return 0, 0, s3err.NoSuchUpload(uploadID)
	}
	for _, n := range nums {
		if fi, statErr := os.Stat(partPath(objectDir, uploadID, n)); statErr == nil {
			totalBytes += fi.Size()
		}
	}
	return len(nums), totalBytes, nil
}

// PutPart writes payload to the staging location for partNumber, atomically
// replacing any existing part with the same number, and returns its ETag.
func (e *Engine) PutPart(bucket, objectID, uploadID string, partNumber int, payload io.Reader, encryptionHeaders map[string]string) (string, error) {
	start := time.Now()
	logAttrs := []any{"upload_id", uploadID, "part_number", partNumber}

	if partNumber < 1 || partNumber > 10000 {
		err := s3err.InvalidPart(partNumber)
		e.log.LogOperation(metricPutPart, logAttrs, err, time.Since(start))
		return "", err
	}

	rec, ok := e.registry.lookup(uploadID)
	if !ok {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricPutPart, logAttrs, err, time.Since(start))
		return "", err
	}

	objectDir := e.objectDir(rec.info.Bucket, rec.info.ObjectID)
	dir := stagingDir(objectDir, uploadID)
	dest := partPath(objectDir, uploadID, partNumber)

	tmp, err := os.CreateTemp(dir, fmt.Sprintf("%d.part.tmp-", partNumber))
	if err != nil {
		err = s3err.Internal(err)
		e.log.LogOperation(metricPutPart, logAttrs, err, time.Since(start))
		return "", err
	}

	h := md5.New()
	if _, copyErr := io.Copy(io.MultiWriter(tmp, h), payload); copyErr != nil {
		removeTempFile(tmp)
		err = s3err.Internal(copyErr)
		e.log.LogOperation(metricPutPart, logAttrs, err, time.Since(start))
		return "", err
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		err = s3err.Internal(closeErr)
		e.log.LogOperation(metricPutPart, logAttrs, err, time.Since(start))
		return "", err
	}
	if renameErr := os.Rename(tmp.Name(), dest); renameErr != nil {
		os.Remove(tmp.Name())
		err = s3err.Internal(renameErr)
		e.log.LogOperation(metricPutPart, logAttrs, err, time.Since(start))
		return "", err
	}

	etag := fmt.Sprintf("%x", h.Sum(nil))
	if kmsKeyID := encryptionHeaders[kmsKeyIDHeader]; kmsKeyID != "" {
		etag = digest.KMSTaggedMD5(etag, kmsKeyID)
	}

	e.metrics.observe(start, metricPutPart)
	e.log.LogOperation(metricPutPart, logAttrs, nil, time.Since(start))
	return etag, nil
}

// CopyPart copies byteRange (or the whole object, if nil) of a source
// object into a new part of the in-progress upload identified by
// (destBucket, destObjectID, uploadID).
func (e *Engine) CopyPart(sourceBucket, sourceObjectID string, byteRange *ByteRange, partNumber int, destBucket, destObjectID, uploadID string, encryptionHeaders map[string]string) (string, error) {
	start := time.Now()
	logAttrs := []any{"upload_id", uploadID, "part_number", partNumber, "source_bucket", sourceBucket, "source_object_id", sourceObjectID}

	if partNumber < 1 || partNumber > 10000 {
		err := s3err.InvalidPart(partNumber)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}

	if _, ok := e.registry.lookup(uploadID); !ok {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}

	objectDir := e.objectDir(destBucket, destObjectID)
	dir := stagingDir(objectDir, uploadID)
	if _, statErr := os.Stat(dir); statErr != nil {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}

	srcMeta, err := e.store.GetObjectMetadata(sourceBucket, sourceObjectID)
	if err != nil {
		err = s3err.NoSuchKey(sourceObjectID)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}

	offset, length := int64(0), srcMeta.Size
	if byteRange != nil {
		if byteRange.Start < 0 || byteRange.Start > byteRange.End || byteRange.End >= srcMeta.Size {
			err := s3err.InvalidRange()
			e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
			return "", err
		}
		offset = byteRange.Start
		length = byteRange.End - byteRange.Start + 1
	}

	e.copySem.Acquire()
	e.metrics.copySemaphoreDemand.Inc()
	defer func() {
		e.copySem.Release()
		e.metrics.copySemaphoreDemand.Dec()
	}()

	src, err := os.Open(srcMeta.DataPath)
	if err != nil {
		err = s3err.NoSuchKey(sourceObjectID)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}
	defer src.Close()

	if _, err := src.Seek(offset, io.SeekStart); err != nil {
		err = s3err.Internal(err)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}

	dest := partPath(objectDir, uploadID, partNumber)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf("%d.part.tmp-", partNumber))
	if err != nil {
		err = s3err.Internal(err)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}

	h := md5.New()
	if _, copyErr := io.Copy(io.MultiWriter(tmp, h), io.LimitReader(src, length)); copyErr != nil {
		removeTempFile(tmp)
		err = s3err.Internal(copyErr)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		err = s3err.Internal(closeErr)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}
	if renameErr := os.Rename(tmp.Name(), dest); renameErr != nil {
		os.Remove(tmp.Name())
		err = s3err.Internal(renameErr)
		e.log.LogOperation(metricCopyPart, logAttrs, err, time.Since(start))
		return "", err
	}

	etag := fmt.Sprintf("%x", h.Sum(nil))
	if kmsKeyID := encryptionHeaders[kmsKeyIDHeader]; kmsKeyID != "" {
		etag = digest.KMSTaggedMD5(etag, kmsKeyID)
	}

	e.metrics.observe(start, metricCopyPart)
	e.log.LogOperation(metricCopyPart, logAttrs, nil, time.Since(start))
	return etag, nil
}

// ListPartsResult is the paginated result of ListParts.
type ListPartsResult struct {
	Parts                []Part
	IsTruncated          bool
	NextPartNumberMarker int
}

// ListParts returns the staged parts of uploadID, strictly ascending by
// part number, starting after partNumberMarker.
func (e *Engine) ListParts(uploadID string, partNumberMarker, maxParts int) (ListPartsResult, error) {
	start := time.Now()
	logAttrs := []any{"upload_id", uploadID}

	rec, ok := e.registry.lookup(uploadID)
	if !ok {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricListParts, logAttrs, err, time.Since(start))
		return ListPartsResult{}, err
	}

	objectDir := e.objectDir(rec.info.Bucket, rec.info.ObjectID)
	nums, err := listStagedParts(objectDir, uploadID)
	if err != nil {
		err = s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricListParts, logAttrs, err, time.Since(start))
		return ListPartsResult{}, err
	}
	sort.Ints(nums)

	var candidates []int
	for _, n := range nums {
		if n > partNumberMarker {
			candidates = append(candidates, n)
		}
	}

	// Each candidate's ETag comes from a cache-miss MD5 read of its staging
	// file; fan these out so a ListParts over many uncached parts pays for
	// one pass over the disk instead of len(candidates) sequential ones.
	stated := make([]*Part, len(candidates))
	var g errgroup.Group
	for i, n := range candidates {
		i, n := i, n
		g.Go(func() error {
			p, statErr := e.statPart(objectDir, uploadID, n)
			if statErr == nil {
				stated[i] = &p
			}
			return nil
		})
	}
	_ = g.Wait()

	var parts []Part
	for _, p := range stated {
		if p != nil {
			parts = append(parts, *p)
		}
	}

	if maxParts <= 0 {
		maxParts = defaultListLimit
	}

	result := ListPartsResult{}
	if len(parts) > maxParts {
		result.Parts = parts[:maxParts]
		result.IsTruncated = true
		result.NextPartNumberMarker = result.Parts[len(result.Parts)-1].PartNumber
	} else {
		result.Parts = parts
	}

	e.metrics.observe(start, metricListParts)
	return result, nil
}

func (e *Engine) statPart(objectDir, uploadID string, partNumber int) (Part, error) {
	path := partPath(objectDir, uploadID, partNumber)
	fi, err := os.Stat(path)
	if err != nil {
		return Part{}, err
	}
	raw, err := e.partDigests.rawMD5(path)
	if err != nil {
		return Part{}, err
	}
	return Part{
		PartNumber:   partNumber,
		ETag:         fmt.Sprintf("%x", raw),
		LastModified: fi.ModTime(),
		Size:         fi.Size(),
	}, nil
}

// Abort removes an in-progress upload's staging directory and unregisters
// it. It fails with NoSuchUpload if the upload is unknown, including when
// it has already been taken over by a concurrent Complete.
func (e *Engine) Abort(uploadID string) error {
	start := time.Now()
	logAttrs := []any{"upload_id", uploadID}

	rec, ok := e.registry.lookup(uploadID)
	if !ok {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricAbort, logAttrs, err, time.Since(start))
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if _, stillRegistered := e.registry.lookup(uploadID); !stillRegistered {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricAbort, logAttrs, err, time.Since(start))
		return err
	}

	info := rec.info
	objectDir := e.objectDir(info.Bucket, info.ObjectID)

	e.registry.unregister(uploadID)
	e.partDigests.evictUpload(objectDir, uploadID)

	if err := removeStagingDir(objectDir, uploadID); err != nil {
		err = s3err.Internal(err)
		e.log.LogOperation(metricAbort, logAttrs, err, time.Since(start))
		return err
	}

	e.metrics.observe(start, metricAbort)
	e.log.LogOperation(metricAbort, logAttrs, nil, time.Since(start))
	return nil
}

func validateAscending(parts []CompletedPart) error {
	for i := 1; i < len(parts); i++ {
		if parts[i].PartNumber <= parts[i-1].PartNumber {
			return s3err.InvalidPartOrder()
		}
	}
	return nil
}

// assemble concatenates the staged parts named by completedParts, in the
// order given, into a new temporary file in objectDir, returning the
// multipart ETag and the temp file's path. The caller owns the returned
// file on success; on error the temp file has already been removed.
func (e *Engine) assemble(objectDir, uploadID string, completedParts []CompletedPart) (etag string, tempPath string, err error) {
	tmp, err := newTempAssemblyFile(objectDir)
	if err != nil {
		return "", "", s3err.Internal(err)
	}
	defer func() {
		if err != nil {
			removeTempFile(tmp)
		}
	}()

	// Each part's MD5 is independent of the others, so compute them
	// concurrently before the necessarily-sequential concatenation below.
	partDigests := make([][md5.Size]byte, len(completedParts))
	var g errgroup.Group
	for i, cp := range completedParts {
		i, cp := i, cp
		g.Go(func() error {
			raw, statErr := e.partDigests.rawMD5(partPath(objectDir, uploadID, cp.PartNumber))
			if statErr != nil {
				if os.IsNotExist(statErr) {
					return s3err.InvalidPart(cp.PartNumber)
				}
				return s3err.Internal(statErr)
			}
			partDigests[i] = raw
			return nil
		})
	}
	if digestErr := g.Wait(); digestErr != nil {
		return "", "", digestErr
	}

	for _, cp := range completedParts {
		path := partPath(objectDir, uploadID, cp.PartNumber)
		f, openErr := os.Open(path)
		if openErr != nil {
			return "", "", s3err.InvalidPart(cp.PartNumber)
		}
		_, copyErr := io.Copy(tmp, f)
		f.Close()
		if copyErr != nil {
			return "", "", s3err.Internal(copyErr)
		}
	}

	if closeErr := tmp.Close(); closeErr != nil {
		return "", "", s3err.Internal(closeErr)
	}

	return digest.MultipartETag(partDigests), tmp.Name(), nil
}

// Complete assembles the parts named by completedParts, in the order
// given, into the finished object and hands it to the ObjectStore.
func (e *Engine) Complete(key, uploadID string, completedParts []CompletedPart, encryptionHeaders map[string]string) (string, error) {
	start := time.Now()
	logAttrs := []any{"upload_id", uploadID, "key", key, "parts", s3log.JSONAttr(completedParts)}

	rec, ok := e.registry.lookup(uploadID)
	if !ok {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricComplete, logAttrs, err, time.Since(start))
		return "", err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if _, stillRegistered := e.registry.lookup(uploadID); !stillRegistered {
		err := s3err.NoSuchUpload(uploadID)
		e.log.LogOperation(metricComplete, logAttrs, err, time.Since(start))
		return "", err
	}

	info := rec.info
	objectDir := e.objectDir(info.Bucket, info.ObjectID)

	if err := validateAscending(completedParts); err != nil {
		e.log.LogOperation(metricComplete, logAttrs, err, time.Since(start))
		return "", err
	}

	e.copySem.Acquire()
	e.metrics.copySemaphoreDemand.Inc()
	defer func() {
		e.copySem.Release()
		e.metrics.copySemaphoreDemand.Dec()
	}()

	etag, assembledPath, err := e.assemble(objectDir, uploadID, completedParts)
	if err != nil {
		e.log.LogOperation(metricComplete, logAttrs, err, time.Since(start))
		return "", err
	}
	defer os.Remove(assembledPath)

	taggedETag := digest.KMSTaggedMD5(etag, encryptionHeaders[kmsKeyIDHeader])

	err = e.store.StoreObject(info.Bucket, info.ObjectID, key, info.ContentType, info.StoreHeaders, assembledPath, info.UserMetadata, info.EncryptionHeaders, taggedETag, info.Tags, info.ChecksumAlgorithm, info.Checksum, info.Owner, info.StorageClass)
	if err != nil {
		err = s3err.Internal(err)
		e.log.LogOperation(metricComplete, logAttrs, err, time.Since(start))
		return "", err
	}

	// The object is durable from here on; a cleanup failure below is logged
	// but must not turn into an error returned to the client.
	e.registry.unregister(uploadID)
	e.partDigests.evictUpload(objectDir, uploadID)
	if cleanupErr := removeStagingDir(objectDir, uploadID); cleanupErr != nil {
		e.log.LogOperation(metricComplete, logAttrs, s3err.Internal(cleanupErr), time.Since(start))
	}

	e.metrics.observe(start, metricComplete)
	e.log.LogOperation(metricComplete, logAttrs, nil, time.Since(start))
	return taggedETag, nil
}

// removeTempFile closes and deletes a temp file created during assembly or
// a part write, ignoring a close error from an already-closed handle.
func removeTempFile(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

package cli

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/s3mockd/s3mockd/internal/uid"
	"github.com/s3mockd/s3mockd/pkg/chunked"
	"github.com/s3mockd/s3mockd/pkg/digest"
	"github.com/s3mockd/s3mockd/pkg/multipart"
	"github.com/s3mockd/s3mockd/pkg/s3err"
)

// RegisterHandlers wires the seven multipart actions onto mux as plain
// JSON-in/JSON-out endpoints. This is not an S3-wire-compatible XML surface
// (that is out of scope); it exists so a test can drive the engine over a
// real net/http round trip.
func RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /uploads", handleCreateMultipartUpload)
	mux.HandleFunc("GET /uploads", handleListMultipartUploads)
	mux.HandleFunc("DELETE /uploads/{uploadId}", handleAbortMultipartUpload)
	mux.HandleFunc("POST /uploads/{uploadId}/complete", handleCompleteMultipartUpload)
	mux.HandleFunc("GET /uploads/{uploadId}/parts", handleListParts)
	mux.HandleFunc("PUT /uploads/{uploadId}/parts/{partNumber}", handleUploadPart)
	mux.HandleFunc("PUT /uploads/{uploadId}/parts/{partNumber}/copy", handleUploadPartCopy)
}

type createMultipartUploadRequest struct {
	Bucket            string            `json:"bucket"`
	Key               string            `json:"key"`
	ContentType       string            `json:"contentType"`
	StoreHeaders      map[string]string `json:"storeHeaders"`
	UserMetadata      map[string]string `json:"userMetadata"`
	EncryptionHeaders map[string]string `json:"encryptionHeaders"`
	StorageClass      string            `json:"storageClass"`
	Tags              map[string]string `json:"tags"`
	Checksum          string            `json:"checksum"`
	ChecksumAlgorithm string            `json:"checksumAlgorithm"`
	Owner             types.Owner       `json:"owner"`
	Initiator         types.Initiator   `json:"initiator"`
}

type createMultipartUploadResponse struct {
	UploadID  string `json:"uploadId"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ObjectID  string `json:"objectId"`
	Initiated string `json:"initiated"`
}

func handleCreateMultipartUpload(w http.ResponseWriter, r *http.Request) {
	var req createMultipartUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Bucket == "" || req.Key == "" {
		writeError(w, s3err.Internal(errors.New("bucket and key are required")))
		return
	}

	objectID := uid.NewObjectID()
	uploadID := uid.NewUploadID()

	upload, err := Engine.Prepare(
		req.Bucket, req.Key, objectID, req.ContentType, req.StoreHeaders, uploadID,
		req.Owner, req.Initiator, req.UserMetadata, req.EncryptionHeaders,
		types.StorageClass(req.StorageClass), req.Tags, req.Checksum,
		digest.Algorithm(req.ChecksumAlgorithm),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createMultipartUploadResponse{
		UploadID:  upload.UploadID,
		Bucket:    upload.Bucket,
		Key:       upload.Key,
		ObjectID:  upload.ObjectID,
		Initiated: upload.Initiated.Format(timeFormat),
	})
}

type listMultipartUploadsResponse struct {
	Uploads            []multipartUploadDTO `json:"uploads"`
	IsTruncated        bool                 `json:"isTruncated"`
	NextKeyMarker      string               `json:"nextKeyMarker,omitempty"`
	NextUploadIDMarker string               `json:"nextUploadIdMarker,omitempty"`
}

type multipartUploadDTO struct {
	Key       string `json:"key"`
	UploadID  string `json:"uploadId"`
	Bucket    string `json:"bucket"`
	ObjectID  string `json:"objectId"`
	Initiated string `json:"initiated"`
}

func handleListMultipartUploads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxUploads, _ := strconv.Atoi(q.Get("maxUploads"))

	result := Engine.ListMultipartUploads(q.Get("bucket"), q.Get("prefix"), q.Get("keyMarker"), q.Get("uploadIdMarker"), maxUploads)

	uploads := make([]multipartUploadDTO, 0, len(result.Uploads))
	for _, u := range result.Uploads {
		uploads = append(uploads, multipartUploadDTO{
			Key:       u.Key,
			UploadID:  u.UploadID,
			Bucket:    u.Bucket,
			ObjectID:  u.ObjectID,
			Initiated: u.Initiated.Format(timeFormat),
		})
	}

	writeJSON(w, http.StatusOK, listMultipartUploadsResponse{
		Uploads:            uploads,
		IsTruncated:        result.IsTruncated,
		NextKeyMarker:      result.NextKeyMarker,
		NextUploadIDMarker: result.NextUploadIDMarker,
	})
}

func handleAbortMultipartUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("uploadId")
	if err := Engine.Abort(uploadID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type uploadPartResponse struct {
	ETag string `json:"etag"`
}

func handleUploadPart(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("uploadId")
	partNumber, err := strconv.Atoi(r.PathValue("partNumber"))
	if err != nil {
		writeError(w, s3err.InvalidPart(0))
		return
	}

	upload, err := Engine.GetMultipartUpload(uploadID)
	if err != nil {
		writeError(w, err)
		return
	}

	body, cleanup, err := decodedRequestBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cleanup()

	etag, err := Engine.PutPart(upload.Bucket, upload.ObjectID, uploadID, partNumber, body, encryptionHeadersFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadPartResponse{ETag: etag})
}

type uploadPartCopyRequest struct {
	SourceBucket      string            `json:"sourceBucket"`
	SourceObjectID    string            `json:"sourceObjectId"`
	RangeStart        *int64            `json:"rangeStart"`
	RangeEnd          *int64            `json:"rangeEnd"`
	EncryptionHeaders map[string]string `json:"encryptionHeaders"`
}

func handleUploadPartCopy(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("uploadId")
	partNumber, err := strconv.Atoi(r.PathValue("partNumber"))
	if err != nil {
		writeError(w, s3err.InvalidPart(0))
		return
	}

	var req uploadPartCopyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	upload, err := Engine.GetMultipartUpload(uploadID)
	if err != nil {
		writeError(w, err)
		return
	}

	var byteRange *multipart.ByteRange
	if req.RangeStart != nil && req.RangeEnd != nil {
		byteRange = &multipart.ByteRange{Start: *req.RangeStart, End: *req.RangeEnd}
	}

	etag, err := Engine.CopyPart(req.SourceBucket, req.SourceObjectID, byteRange, partNumber, upload.Bucket, upload.ObjectID, uploadID, req.EncryptionHeaders)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadPartResponse{ETag: etag})
}

type completedPartDTO struct {
	PartNumber int    `json:"partNumber"`
	ETag       string `json:"etag"`
}

type completeMultipartUploadRequest struct {
	Key               string             `json:"key"`
	Parts             []completedPartDTO `json:"parts"`
	EncryptionHeaders map[string]string  `json:"encryptionHeaders"`
}

type completeMultipartUploadResponse struct {
	ETag string `json:"etag"`
}

func handleCompleteMultipartUpload(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("uploadId")

	var req completeMultipartUploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	parts := make([]multipart.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, multipart.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	etag, err := Engine.Complete(req.Key, uploadID, parts, req.EncryptionHeaders)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, completeMultipartUploadResponse{ETag: etag})
}

type listPartsResponse struct {
	Parts                []partDTO `json:"parts"`
	IsTruncated          bool      `json:"isTruncated"`
	NextPartNumberMarker int       `json:"nextPartNumberMarker,omitempty"`
}

type partDTO struct {
	PartNumber   int    `json:"partNumber"`
	ETag         string `json:"etag"`
	LastModified string `json:"lastModified"`
	Size         int64  `json:"size"`
}

func handleListParts(w http.ResponseWriter, r *http.Request) {
	uploadID := r.PathValue("uploadId")
	q := r.URL.Query()
	partNumberMarker, _ := strconv.Atoi(q.Get("partNumberMarker"))
	maxParts, _ := strconv.Atoi(q.Get("maxParts"))

	result, err := Engine.ListParts(uploadID, partNumberMarker, maxParts)
	if err != nil {
		writeError(w, err)
		return
	}

	parts := make([]partDTO, 0, len(result.Parts))
	for _, p := range result.Parts {
		parts = append(parts, partDTO{
			PartNumber:   p.PartNumber,
			ETag:         p.ETag,
			LastModified: p.LastModified.Format(timeFormat),
			Size:         p.Size,
		})
	}

	writeJSON(w, http.StatusOK, listPartsResponse{
		Parts:                parts,
		IsTruncated:          result.IsTruncated,
		NextPartNumberMarker: result.NextPartNumberMarker,
	})
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// decodedRequestBody returns the reader a part's bytes should be streamed
// from: the raw request body, or an aws-chunked Decoder wrapping it when the
// client signed the body with streaming signatures. The returned cleanup
// must be deferred by the caller.
func decodedRequestBody(r *http.Request) (io.Reader, func(), error) {
	decodedLengthHeader := r.Header.Get("X-Amz-Decoded-Content-Length")
	if decodedLengthHeader == "" {
		return r.Body, func() {}, nil
	}

	decodedLength, err := strconv.ParseInt(decodedLengthHeader, 10, 64)
	if err != nil {
		return nil, nil, s3err.MalformedChunkedEncoding("invalid X-Amz-Decoded-Content-Length")
	}

	dec := chunked.NewDecoder(r.Body, decodedLength, r.Header.Get("X-Amz-Trailer")).WithVerification()
	return dec, func() {}, nil
}

func encryptionHeadersFrom(r *http.Request) map[string]string {
	headers := make(map[string]string)
	for name, values := range r.Header {
		if strings.HasPrefix(strings.ToLower(name), "x-amz-server-side-encryption") {
			headers[strings.ToLower(name)] = values[0]
		}
	}
	return headers
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		return true
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, s3err.Internal(err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	var se *s3err.Error
	if !errors.As(err, &se) {
		se = s3err.Internal(err)
	}
	writeJSON(w, se.Kind.HTTPStatus(), errorResponse{Code: se.Kind.Code(), Message: se.Error()})
}

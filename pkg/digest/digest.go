// Package digest provides the content hashing primitives shared by the
// multipart upload engine and the aws-chunked decoder: part and object MD5s,
// the S3 multipart ETag format, and streaming checksums for the algorithms
// S3 clients negotiate over x-amz-checksum-* headers and trailers.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"strings"
)

// Algorithm identifies one of the checksum algorithms S3 supports for
// x-amz-checksum-* headers and aws-chunked trailers.
type Algorithm string

const (
	AlgorithmNone   Algorithm = ""
	AlgorithmSHA1   Algorithm = "SHA1"
	AlgorithmSHA256 Algorithm = "SHA256"
	AlgorithmCRC32  Algorithm = "CRC32"
	AlgorithmCRC32C Algorithm = "CRC32C"
)

// AlgorithmFromHeaderName maps a x-amz-checksum-* trailer/header name to the
// Algorithm it requests, returning AlgorithmNone for anything unrecognized.
func AlgorithmFromHeaderName(name string) Algorithm {
	switch strings.ToLower(name) {
	case "x-amz-checksum-sha256":
		return AlgorithmSHA256
	case "x-amz-checksum-sha1":
		return AlgorithmSHA1
	case "x-amz-checksum-crc32":
		return AlgorithmCRC32
	case "x-amz-checksum-crc32c":
		return AlgorithmCRC32C
	default:
		return AlgorithmNone
	}
}

// NewHasher returns the hash.Hash implementing algo, or nil for
// AlgorithmNone and an error for anything unrecognized.
func NewHasher(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case AlgorithmNone:
		return nil, nil
	case AlgorithmSHA1:
		return sha1.New(), nil
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmCRC32:
		return crc32.NewIEEE(), nil
	case AlgorithmCRC32C:
		return crc32.New(crc32.MakeTable(crc32.Castagnoli)), nil
	default:
		return nil, fmt.Errorf("digest: unsupported checksum algorithm %q", algo)
	}
}

// MD5Hex streams r through MD5 and returns the lowercase hex digest, the
// form used for part and non-multipart object ETags.
func MD5Hex(r io.Reader) (string, error) {
	sum, err := MD5Sum(r)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum[:]), nil
}

// MD5Sum streams r through MD5 and returns the raw 16-byte digest, the form
// MultipartETag combines across parts.
func MD5Sum(r io.Reader) ([md5.Size]byte, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return [md5.Size]byte{}, err
	}
	var sum [md5.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// MultipartETag implements the S3 multipart ETag format: the hex MD5 of the
// concatenated raw MD5 digests of each part, in the order given, followed by
// "-" and the part count.
func MultipartETag(partDigests [][md5.Size]byte) string {
	h := md5.New()
	for _, d := range partDigests {
		h.Write(d[:])
	}
	return fmt.Sprintf("%s-%d", hex.EncodeToString(h.Sum(nil)), len(partDigests))
}

// StreamingChecksum streams r through the given algorithm and returns the
// base64-encoded digest, the form S3 uses for x-amz-checksum-* values.
func StreamingChecksum(r io.Reader, algo Algorithm) (string, error) {
	h, err := NewHasher(algo)
	if err != nil {
		return "", err
	}
	if h == nil {
		return "", fmt.Errorf("digest: no algorithm given")
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// KMSTaggedMD5 reproduces the reference mock's quirk of suffixing an ETag
// with the KMS key identifier used for the object, when one was supplied.
// Real S3 does not do this; existing clients tested against the reference
// mock rely on it, so it is preserved here.
func KMSTaggedMD5(etag string, kmsKeyID string) string {
	if kmsKeyID == "" {
		return etag
	}
	return etag + "-" + kmsKeyID
}

// Package chunked decodes the aws-chunked framing that S3 clients use when
// signing a request body with Signature Version 4 streaming signatures. It
// unwraps chunk-size/signature lines and the optional trailing checksum,
// exposing only the decoded payload bytes to the reader.
package chunked

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"

	"github.com/s3mockd/s3mockd/pkg/digest"
	"github.com/s3mockd/s3mockd/pkg/s3err"
)

// Decoder wraps an aws-chunked encoded body and yields the decoded payload
// through Read. All framing (chunk-size lines, chunk signatures, trailers)
// is consumed internally; callers only ever see payload bytes.
//
// A Decoder is single-use and not safe for concurrent use.
type Decoder struct {
	br *bufio.Reader

	decodedLength     int64
	readDecodedLength int64

	trailerHeaderName string
	algorithm         digest.Algorithm
	checksum          string
	checksumFound     bool

	verifyHasher hash.Hash

	chunkRemaining int64
	finished       bool
	err            error
}

// NewDecoder constructs a Decoder over src. decodedLength is the length the
// caller expects the decoded payload to have; ReadDecodedLength will be
// compared against it once the stream is exhausted. trailerHeaderName, if
// non-empty, names the x-amz-checksum-* trailer to extract, e.g.
// "x-amz-checksum-sha256"; its value is exposed via Checksum after EOF.
func NewDecoder(src io.Reader, decodedLength int64, trailerHeaderName string) *Decoder {
	return &Decoder{
		br:                bufio.NewReader(src),
		decodedLength:     decodedLength,
		trailerHeaderName: trailerHeaderName,
		algorithm:         digest.AlgorithmFromHeaderName(trailerHeaderName),
	}
}

// WithVerification makes the Decoder compute the trailer's checksum
// algorithm over the decoded payload as it is read and compare it against
// the trailer value once the stream is exhausted. The final Read call fails
// with s3err.ChecksumMismatch if they differ. It is a no-op if the
// trailerHeaderName given to NewDecoder does not name a recognized
// algorithm.
func (d *Decoder) WithVerification() *Decoder {
	if d.algorithm != digest.AlgorithmNone {
		h, err := digest.NewHasher(d.algorithm)
		if err == nil {
			d.verifyHasher = h
		}
	}
	return d
}

// DecodedLength returns the length supplied to NewDecoder.
func (d *Decoder) DecodedLength() int64 { return d.decodedLength }

// ReadDecodedLength returns the number of payload bytes emitted so far. On
// success it equals DecodedLength once the stream is exhausted.
func (d *Decoder) ReadDecodedLength() int64 { return d.readDecodedLength }

// Algorithm returns the checksum algorithm inferred from the trailer header
// name, or digest.AlgorithmNone if none was configured.
func (d *Decoder) Algorithm() digest.Algorithm { return d.algorithm }

// Checksum returns the base64 trailer checksum value and true, once it has
// been read from the trailers (i.e. after EOF). Before then, or if no
// matching trailer was present, it returns ("", false).
func (d *Decoder) Checksum() (string, bool) { return d.checksum, d.checksumFound }

func (d *Decoder) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}

	for d.chunkRemaining == 0 {
		if d.finished {
			return 0, io.EOF
		}
		if err := d.beginNextChunk(); err != nil {
			d.err = err
			return 0, err
		}
	}

	max := int64(len(p))
	if max > d.chunkRemaining {
		max = d.chunkRemaining
	}

	n, err := d.br.Read(p[:max])
	if n > 0 {
		if d.verifyHasher != nil {
			d.verifyHasher.Write(p[:n])
		}
		d.chunkRemaining -= int64(n)
		d.readDecodedLength += int64(n)
	}
	if err != nil {
		if err == io.EOF {
			err = s3err.UnexpectedEOF()
		} else {
			err = s3err.Internal(err)
		}
		d.err = err
		return n, err
	}

	if d.chunkRemaining == 0 {
		if err := d.consumeCRLF(); err != nil {
			d.err = err
			return n, err
		}
	}

	return n, nil
}

// beginNextChunk reads one chunk-size line and, if it announces the
// terminal zero-length chunk, also consumes the trailers and finalizes the
// decoder. On return, either d.chunkRemaining > 0 and more data can be read,
// or d.finished is true.
func (d *Decoder) beginNextChunk() error {
	line, err := d.readLine()
	if err != nil {
		return err
	}

	sizeField := line
	if idx := strings.IndexByte(line, ';'); idx >= 0 {
		sizeField = line[:idx]
	}
	sizeField = strings.TrimSpace(sizeField)
	if sizeField == "" {
		return s3err.MalformedChunkedEncoding("empty chunk size")
	}

	size, err := strconv.ParseInt(sizeField, 16, 64)
	if err != nil || size < 0 {
		return s3err.MalformedChunkedEncoding(fmt.Sprintf("invalid chunk size %q", sizeField))
	}

	if size == 0 {
		if err := d.readTrailers(); err != nil {
			return err
		}
		d.finished = true
		if d.readDecodedLength != d.decodedLength {
			return s3err.UnexpectedEOF()
		}
		if d.verifyHasher != nil && d.checksumFound {
			computed := base64.StdEncoding.EncodeToString(d.verifyHasher.Sum(nil))
			if computed != d.checksum {
				return s3err.ChecksumMismatch()
			}
		}
		return nil
	}

	d.chunkRemaining = size
	return nil
}

// readTrailers consumes zero or more "name:value\r\n" lines followed by a
// terminating empty line, retaining only the trailer matching
// trailerHeaderName.
func (d *Decoder) readTrailers() error {
	for {
		line, err := d.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return s3err.MalformedChunkedEncoding("malformed trailer line")
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		if d.trailerHeaderName != "" && strings.EqualFold(name, d.trailerHeaderName) {
			d.checksum = value
			d.checksumFound = true
		}
	}
}

// readLine reads up to and including "\r\n", returning the line with the
// trailing CRLF stripped.
func (d *Decoder) readLine() (string, error) {
	line, err := d.br.ReadString('\n')
	if err != nil {
		if err == io.EOF {
			return "", s3err.UnexpectedEOF()
		}
		return "", s3err.Internal(err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// consumeCRLF reads the exactly two bytes expected after a chunk's data.
func (d *Decoder) consumeCRLF() error {
	var buf [2]byte
	if _, err := io.ReadFull(d.br, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return s3err.UnexpectedEOF()
		}
		return s3err.Internal(err)
	}
	if buf[0] != '\r' || buf[1] != '\n' {
		return s3err.MalformedChunkedEncoding("missing CRLF after chunk data")
	}
	return nil
}

// Result summarizes a completed DecodeInto call.
type Result struct {
	BytesWritten int64
	Algorithm    digest.Algorithm
	Checksum     string
	HasChecksum  bool
}

// DecodeInto decodes src's aws-chunked body into dst in one pass, returning
// the number of bytes written and the trailer checksum if present. When
// verify is true and the trailer names a recognized algorithm, the checksum
// is validated against the decoded payload before Result is returned.
func DecodeInto(dst io.Writer, src io.Reader, decodedLength int64, trailerHeaderName string, verify bool) (Result, error) {
	dec := NewDecoder(src, decodedLength, trailerHeaderName)
	if verify {
		dec.WithVerification()
	}

	n, err := io.Copy(dst, dec)
	if err != nil {
		return Result{}, err
	}

	checksum, ok := dec.Checksum()
	return Result{
		BytesWritten: n,
		Algorithm:    dec.Algorithm(),
		Checksum:     checksum,
		HasChecksum:  ok,
	}, nil
}

package s3err

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageFormatting(t *testing.T) {
	a := assert.New(t)

	a.Equal("NoSuchUpload: upload \"abc\" does not exist", NoSuchUpload("abc").Error())
	a.Equal("InvalidPartOrder", (&Error{Kind: KindInvalidPartOrder}).Error())
}

func TestError_Is_MatchesOnKindOnly(t *testing.T) {
	a := assert.New(t)

	err := fmt.Errorf("wrapped: %w", NoSuchUpload("abc"))
	a.True(errors.Is(err, NoSuchUpload("xyz")))
	a.False(errors.Is(err, NoSuchKey("abc")))
}

func TestError_Unwrap_ExposesCause(t *testing.T) {
	a := assert.New(t)

	cause := errors.New("disk full")
	wrapped := Internal(cause)
	a.Equal(cause, errors.Unwrap(wrapped))
}

func TestKind_HTTPStatus(t *testing.T) {
	a := assert.New(t)

	a.Equal(404, KindNoSuchUpload.HTTPStatus())
	a.Equal(404, KindNoSuchKey.HTTPStatus())
	a.Equal(400, KindInvalidPart.HTTPStatus())
	a.Equal(400, KindInvalidPartOrder.HTTPStatus())
	a.Equal(400, KindMalformedChunkedEncoding.HTTPStatus())
	a.Equal(400, KindUnexpectedEOF.HTTPStatus())
	a.Equal(400, KindChecksumMismatch.HTTPStatus())
	a.Equal(416, KindInvalidRange.HTTPStatus())
	a.Equal(500, KindInternalError.HTTPStatus())
}

func TestKind_Code(t *testing.T) {
	a := assert.New(t)

	a.Equal("InvalidRequest", KindMalformedChunkedEncoding.Code())
	a.Equal("IncompleteBody", KindUnexpectedEOF.Code())
	a.Equal("NoSuchUpload", KindNoSuchUpload.Code())
}

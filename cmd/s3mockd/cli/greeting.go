package cli

import (
	"fmt"
	"net/http"
)

var greeting string

func PrepareGreeting() {
	greeting = fmt.Sprintf(
		`s3mockd
=======

A local, filesystem-backed mock of the S3 multipart upload API for testing
S3 client code. It does not speak the S3 wire protocol (no signing, no XML);
instead it exposes the same lifecycle as plain JSON over HTTP:

- POST   /uploads                       - CreateMultipartUpload
- PUT    /uploads/{uploadId}/parts/{n}  - UploadPart
- PUT    /uploads/{uploadId}/parts/{n}/copy - UploadPartCopy
- POST   /uploads/{uploadId}/complete   - CompleteMultipartUpload
- DELETE /uploads/{uploadId}            - AbortMultipartUpload
- GET    /uploads                       - ListMultipartUploads
- GET    /uploads/{uploadId}/parts      - ListParts
- %s                                    - Prometheus metrics

Version = %s
GitCommit = %s
BuildDate = %s
`, Flags.MetricsPath, VersionName, GitCommit, BuildDate)
}

func DisplayGreeting(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(greeting))
}

package multipart

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const partFileSuffix = ".part"

// stagingDir returns the directory holding an in-progress upload's part
// files, objectDir/<uploadId>, where objectDir is the directory the
// finished object's data file will live in.
func stagingDir(objectDir, uploadID string) string {
	return filepath.Join(objectDir, uploadID)
}

// partPath returns the on-disk path of a single staged part.
func partPath(objectDir, uploadID string, partNumber int) string {
	return filepath.Join(stagingDir(objectDir, uploadID), partFileName(partNumber))
}

func partFileName(partNumber int) string {
	return fmt.Sprintf("%d%s", partNumber, partFileSuffix)
}

// parsePartNumber extracts the part number encoded in a staged part's file
// name, e.g. "7.part" -> 7, ok=true.
func parsePartNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, partFileSuffix)
	if base == name {
		return 0, false
	}
	n, err := strconv.Atoi(base)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// ensureStagingDir creates the staging directory for an upload, failing if
// it already exists.
func ensureStagingDir(objectDir, uploadID string) error {
	if err := os.MkdirAll(objectDir, 0o755); err != nil {
		return err
	}
	return os.Mkdir(stagingDir(objectDir, uploadID), 0o755)
}

// removeStagingDir deletes an upload's staging directory and, if it is the
// last thing left under the object's directory, the object directory too.
func removeStagingDir(objectDir, uploadID string) error {
	if err := os.RemoveAll(stagingDir(objectDir, uploadID)); err != nil {
		return err
	}
	entries, err := os.ReadDir(objectDir)
	if err != nil {
		return nil
	}
	if len(entries) == 0 {
		_ = os.Remove(objectDir)
	}
	return nil
}

// listStagedParts returns the part numbers present in an upload's staging
// directory, in no particular order.
func listStagedParts(objectDir, uploadID string) ([]int, error) {
	entries, err := os.ReadDir(stagingDir(objectDir, uploadID))
	if err != nil {
		return nil, err
	}
	var parts []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := parsePartNumber(e.Name()); ok {
			parts = append(parts, n)
		}
	}
	return parts, nil
}

// newTempAssemblyFile creates a temp file alongside where the finished
// object will be written, so promoting it is a same-filesystem rename.
func newTempAssemblyFile(objectDir string) (*os.File, error) {
	if err := os.MkdirAll(objectDir, 0o755); err != nil {
		return nil, err
	}
	return os.CreateTemp(objectDir, "s3mockd-assembly-")
}

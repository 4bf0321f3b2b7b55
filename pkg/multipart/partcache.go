package multipart

import (
	"crypto/md5"
	"os"
	"strings"
	"sync"

	"github.com/s3mockd/s3mockd/pkg/digest"
)

// cachedDigest is a memoized MD5 of a staged part file, invalidated by a
// change in modification time or size. Per the reference's design note:
// recomputing MD5 on every ListParts call is O(bytes) and avoidable.
type cachedDigest struct {
	modTime int64
	size    int64
	raw     [md5.Size]byte
}

type partDigestCache struct {
	mu      sync.Mutex
	entries map[string]cachedDigest
}

func newPartDigestCache() *partDigestCache {
	return &partDigestCache{entries: make(map[string]cachedDigest)}
}

// rawMD5 returns the 16-byte MD5 digest of the file at path, reusing a
// cached value if the file's mtime and size have not changed since it was
// last hashed.
func (c *partDigestCache) rawMD5(path string) ([md5.Size]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return [md5.Size]byte{}, err
	}
	modTime := fi.ModTime().UnixNano()
	size := fi.Size()

	c.mu.Lock()
	if existing, ok := c.entries[path]; ok && existing.modTime == modTime && existing.size == size {
		c.mu.Unlock()
		return existing.raw, nil
	}
	c.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return [md5.Size]byte{}, err
	}
	defer f.Close()

	sum, err := digest.MD5Sum(f)
	if err != nil {
		return [md5.Size]byte{}, err
	}

	c.mu.Lock()
	c.entries[path] = cachedDigest{modTime: modTime, size: size, raw: sum}
	c.mu.Unlock()

	return sum, nil
}

// evictUpload drops every cached digest belonging to an upload's staging
// directory, called once that directory is removed.
func (c *partDigestCache) evictUpload(objectDir, uploadID string) {
	prefix := stagingDir(objectDir, uploadID)
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.entries {
		if strings.HasPrefix(path, prefix) {
			delete(c.entries, path)
		}
	}
}

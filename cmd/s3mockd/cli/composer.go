package cli

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/s3mockd/s3mockd/pkg/multipart"
	"github.com/s3mockd/s3mockd/pkg/objectstore"
)

var Store *objectstore.FileObjectStore
var Engine *multipart.Engine

// CreateEngine wires a FileObjectStore rooted at -storage-dir into a fresh
// multipart.Engine, the same "pick a backend, wire it into the thing that
// serves requests" shape as tusd's CreateComposer, minus the backend choice
// since a filesystem store is this mock's only target.
func CreateEngine() {
	dir, err := filepath.Abs(Flags.StorageDir)
	if err != nil {
		stderr.Fatalf("Unable to make absolute path: %s", err)
	}

	stdout.Printf("Using '%s' as object storage directory.\n", dir)
	if err := os.MkdirAll(dir, os.FileMode(0o755)); err != nil {
		stderr.Fatalf("Unable to ensure storage directory exists: %s", err)
	}

	Store = objectstore.New(dir)
	Engine = multipart.New(
		Store,
		multipart.WithCopyConcurrency(Flags.MaxConcurrentCopies),
		multipart.WithLogger(EngineLogger()),
	)

	stdout.Printf("Allowing %d concurrent copy/assembly operations.\n", Flags.MaxConcurrentCopies)

	if Flags.SweepOrphanedStaging {
		sweepBuckets(dir, Flags.SweepMinAge)
	}
}

// RegisterMetrics adds the engine's collectors to the default registry.
func RegisterMetrics() {
	Engine.RegisterMetrics(prometheus.DefaultRegisterer)
}

// sweepBuckets runs SweepOrphanedStaging once per bucket directory under
// root, since the sweep itself operates one bucket at a time.
func sweepBuckets(root string, minAge time.Duration) {
	entries, err := os.ReadDir(root)
	if err != nil {
		stderr.Printf("Orphaned staging sweep failed to list %s: %s\n", root, err)
		return
	}

	total := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		bucketDir := filepath.Join(root, entry.Name())
		swept, err := Engine.SweepOrphanedStaging(bucketDir, minAge)
		if err != nil {
			stderr.Printf("Orphaned staging sweep failed for bucket %q: %s\n", entry.Name(), err)
			continue
		}
		total += swept
	}

	if total > 0 {
		stdout.Printf("Swept %d orphaned staging director(ies) older than %s.\n", total, minAge)
	}
}

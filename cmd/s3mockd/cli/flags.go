package cli

import (
	"flag"
	"time"
)

var Flags struct {
	HttpHost string
	HttpPort string

	StorageDir string

	MaxConcurrentCopies int

	SweepOrphanedStaging bool
	SweepMinAge          time.Duration

	ShowGreeting  bool
	ShowVersion   bool
	VerboseOutput bool

	ExposeMetrics bool
	MetricsPath   string

	ShutdownTimeout time.Duration
}

func ParseFlags() {
	flag.StringVar(&Flags.HttpHost, "host", "0.0.0.0", "Host to bind the HTTP server to")
	flag.StringVar(&Flags.HttpPort, "port", "9000", "Port to bind the HTTP server to")

	flag.StringVar(&Flags.StorageDir, "storage-dir", "./data", "Directory objects and in-progress multipart uploads are stored under")

	flag.IntVar(&Flags.MaxConcurrentCopies, "max-concurrent-copies", 10, "Maximum number of concurrent CopyPart/Complete assembly I/O operations")

	flag.BoolVar(&Flags.SweepOrphanedStaging, "sweep-orphaned-staging", false, "On startup, remove staging directories left behind by a prior run that are no longer registered")
	flag.DurationVar(&Flags.SweepMinAge, "sweep-min-age", 24*time.Hour, "Minimum age of a staging directory before -sweep-orphaned-staging will remove it")

	flag.BoolVar(&Flags.ShowGreeting, "show-greeting", true, "Show the greeting message at the root path")
	flag.BoolVar(&Flags.ShowVersion, "version", false, "Print s3mockd version information")
	flag.BoolVar(&Flags.VerboseOutput, "verbose", false, "Enable debug-level structured logging for engine operations")

	flag.BoolVar(&Flags.ExposeMetrics, "expose-metrics", true, "Expose Prometheus metrics")
	flag.StringVar(&Flags.MetricsPath, "metrics-path", "/metrics", "Path under which the metrics endpoint is accessible")

	flag.DurationVar(&Flags.ShutdownTimeout, "shutdown-timeout", 10*time.Second, "Time to wait for in-flight requests to finish during a graceful shutdown")

	flag.Parse()
}

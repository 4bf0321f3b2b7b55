package cli

import (
	"log"
	"log/slog"
	"os"
)

var stdout = log.New(os.Stdout, "[s3mockd] ", 0)
var stderr = log.New(os.Stderr, "[s3mockd] ", 0)

// EngineLogger builds the structured logger the multipart engine reports
// its operations through. -verbose lowers the level to Debug so every
// successful operation is logged, not just failures.
func EngineLogger() *slog.Logger {
	level := slog.LevelInfo
	if Flags.VerboseOutput {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

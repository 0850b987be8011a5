package utils

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"
)

// FilterSlice keeps the elements of slice that are present in reference,
// warning about the ones that are not. A nil slice selects everything.
// formatMsg is an optional format string with a single format argument used
// to explain why an element may be missing from the reference slice.
func FilterSlice[T comparable](slice, reference []T, formatMsg string) []T {
	if slice == nil {
		return reference
	}

	if formatMsg == "" {
		formatMsg = "User input '%v' not present in reference, skipping"
	}

	out := make([]T, 0, len(slice))
	for _, s := range slice {
		if !slices.Contains(reference, s) {
			slog.Warn(fmt.Sprintf(formatMsg, s))
			continue
		}
		out = append(out, s)
	}
	return out
}

// SetLogFile redirects the default logger to the named file.
func SetLogFile(filename string) {
	fh, err := os.Create(filename)
	if err != nil {
		slog.Error(fmt.Sprintf("Could not create log '%s': %s", filename, err))
		return
	}
	log.SetOutput(fh)
}

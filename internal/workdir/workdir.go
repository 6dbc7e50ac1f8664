// Package workdir provides utilities for managing the donor CLI working directory.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFile is the donor TUI log file name.
const LogFile = "donor.log"

// Root returns the base directory for all donor CLI working files.
// The path is expanded at runtime to resolve to:
//
//	$HOME/.voicebank
func Root() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".voicebank"), nil
}

// LogPath returns the path of the donor log file.
func LogPath() (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "logs", LogFile), nil
}

// Prep ensures that the working directories exist.
func Prep() error {
	root, err := Root()
	if err != nil {
		return err
	}

	dir := filepath.Join(root, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory %s: %w", dir, err)
	}

	return nil
}

// Package validation holds filesystem-level checks shared by the command
// line tools: is this path a readable register export, can reports be
// written where the user asked. Request-level validation lives in the
// middleware package.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tillpulse/internal/files"
)

// ExportValidator checks register export inputs and report outputs before a
// batch run starts, so a bad path fails fast instead of mid-run.
type ExportValidator struct {
	logger *slog.Logger
}

// NewExportValidator creates an export validator
func NewExportValidator(logger *slog.Logger) *ExportValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportValidator{
		logger: logger,
	}
}

// ValidateExportFile checks that path is a readable register export in a
// supported format
func (v *ExportValidator) ValidateExportFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("Export file does not exist",
			slog.String("file", path))
		return fmt.Errorf("export file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat export file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not an export file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not an export file", path)
	}

	// Office leaves ~$ lock files next to open workbooks.
	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Skipping workbook lock file",
			slog.String("file", path))
		return fmt.Errorf("%s is a workbook lock file", path)
	}

	if !files.IsExportFile(path) {
		v.logger.Error("Unsupported export format",
			slog.String("file", path),
			slog.String("extension", strings.ToLower(filepath.Ext(path))))
		return fmt.Errorf("%s is not a supported export format", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("Export file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("export file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("Export file validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateInputDirectory checks that dir exists and is a directory
func (v *ExportValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return fmt.Errorf("input directory %s does not exist", dir)
	}
	if err != nil {
		v.logger.Error("Failed to stat input directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// ValidateOutputDirectory ensures the report directory exists and is
// writable, creating it if needed
func (v *ExportValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	// A write probe catches read-only mounts that MkdirAll does not.
	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

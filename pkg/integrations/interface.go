package integrations

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoPages reports a working directory without page images.
var ErrNoPages = errors.New("no page images found")

const (
	ContainerPDF  = "pdf"
	ContainerCBZ  = "cbz"
	ContainerEPUB = "epub"
)

// Assembler turns a working directory into one container file in folder and
// returns its path. An existing file is never overwritten.
type Assembler interface {
	Assemble(workDir, folder, baseName string) (string, error)
}

// NewAssembler returns the assembler for a container format.
func NewAssembler(container, imageFormat string, dpi int, logger *slog.Logger) (Assembler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(container) {
	case ContainerPDF:
		return &PDFBuilder{ImageFormat: imageFormat, DPI: dpi, logger: logger}, nil
	case ContainerCBZ:
		return &CBZBuilder{logger: logger}, nil
	case ContainerEPUB:
		return &EPubBuilder{ImageFormat: imageFormat, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported container format: %s", container)
	}
}

// collectImages lists files in dir ending in .ext, in name order.
func collectImages(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read working directory: %w", err)
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "."+ext) {
			continue
		}
		images = append(images, filepath.Join(dir, entry.Name()))
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoPages)
	}
	return images, nil
}

func uniqueOutput(logger *slog.Logger, folder, baseName, ext string) string {
	path, err := GetUniquePath(folder, baseName, ext)
	if err != nil {
		logger.Warn("output name collisions exhausted, reusing last candidate",
			slog.String("path", path),
			slog.Int("attempts", MaxUniqueAttempts),
		)
	}
	return path
}

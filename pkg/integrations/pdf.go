package integrations

import (
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

// PDFBuilder concatenates page images into one paged PDF.
type PDFBuilder struct {
	ImageFormat string
	DPI         int
	logger      *slog.Logger
}

func (b *PDFBuilder) Assemble(workDir, folder, baseName string) (string, error) {
	if b.ImageFormat == FormatWEBP {
		b.logger.Warn(`image format "webp" is not optimized for PDF containers, the output file may be large`)
	}

	images, err := collectImages(workDir, b.ImageFormat)
	if err != nil {
		return "", err
	}

	imp := pdfcpu.DefaultImportConfig()
	if b.DPI > 0 {
		imp.DPI = b.DPI
	}

	out := uniqueOutput(b.logger, folder, baseName, "pdf")
	if err := api.ImportImagesFile(images, out, imp, nil); err != nil {
		return "", fmt.Errorf("failed to create PDF: %w", err)
	}
	return out, nil
}

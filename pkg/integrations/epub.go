package integrations

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/go-shiori/go-epub"
)

// EPubBuilder packs page images into a fixed-page EPUB, one section per page.
type EPubBuilder struct {
	ImageFormat string
	logger      *slog.Logger
}

func (b *EPubBuilder) Assemble(workDir, folder, baseName string) (string, error) {
	images, err := collectImages(workDir, b.ImageFormat)
	if err != nil {
		return "", err
	}

	e, err := epub.NewEpub(baseName)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	e.SetLang("en")

	for i, imgPath := range images {
		internalPath, err := e.AddImage(imgPath, filepath.Base(imgPath))
		if err != nil {
			return "", fmt.Errorf("failed to add image %s: %w", filepath.Base(imgPath), err)
		}

		body := fmt.Sprintf(
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>`,
			internalPath, i+1,
		)
		if _, err := e.AddSection(body, fmt.Sprintf("Page %d", i+1), "", ""); err != nil {
			return "", fmt.Errorf("failed to add section: %w", err)
		}
	}

	out := uniqueOutput(b.logger, folder, baseName, "epub")
	if err := e.Write(out); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	return out, nil
}

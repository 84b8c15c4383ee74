package integrations

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// CBZBuilder zips the whole working directory and renames it to .cbz.
type CBZBuilder struct {
	logger *slog.Logger
}

func (b *CBZBuilder) Assemble(workDir, folder, baseName string) (string, error) {
	zipPath := uniqueOutput(b.logger, folder, baseName, "zip")
	if err := zipDir(workDir, zipPath); err != nil {
		os.Remove(zipPath)
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	cbzPath := uniqueOutput(b.logger, folder, baseName, "cbz")
	if err := os.Rename(zipPath, cbzPath); err != nil {
		return "", fmt.Errorf("failed to rename archive: %w", err)
	}
	return cbzPath, nil
}

func zipDir(dir, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		return addZipFile(zw, path, strings.ReplaceAll(rel, string(filepath.Separator), "/"))
	})
	if err != nil {
		zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

func addZipFile(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

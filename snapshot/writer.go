package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/giygas/mhra-extractor/catalog"
	"github.com/giygas/mhra-extractor/interfaces"
	"github.com/giygas/mhra-extractor/logging"
	"github.com/giygas/mhra-extractor/mhraparser/entities"
)

// VersionDirPrefix names the sequential snapshot folders: "Version 1", "Version 2"...
const VersionDirPrefix = "Version "

// Writer writes the artifacts to the latest location, then copies them unmodified
// into the next version folder under it.
type Writer struct {
	outputDir string
	source    string
}

var _ interfaces.SnapshotWriter = (*Writer)(nil)

// NewWriter writes under outputDir; source is recorded in the artifacts.
func NewWriter(outputDir, source string) *Writer {
	return &Writer{outputDir: outputDir, source: source}
}

func (w *Writer) Write(ctx context.Context, cat *catalog.Catalog, summary entities.RunSummary) (*interfaces.WriteResult, error) {
	artifacts, err := BuildArtifacts(cat, summary, Options{Source: w.source})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	result := &interfaces.WriteResult{LatestDir: w.outputDir}
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeFileAtomic(filepath.Join(w.outputDir, a.Name), a.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", a.Name, err)
		}
		result.Files = append(result.Files, a.Name)
	}

	versionDir, err := NextVersionDir(w.outputDir)
	if err != nil {
		return nil, err
	}
	for _, name := range result.Files {
		if err := copyFile(filepath.Join(w.outputDir, name), filepath.Join(versionDir, name)); err != nil {
			return nil, fmt.Errorf("failed to copy %s to %s: %w", name, versionDir, err)
		}
	}
	result.VersionDir = versionDir

	logging.Info("Snapshot written",
		"latest", w.outputDir,
		"version_dir", versionDir,
		"files", len(result.Files),
	)
	return result, nil
}

// NextVersionDir creates and returns root/"Version N" where N is one more than
// the highest existing version number.
func NextVersionDir(root string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("failed to list versions: %w", err)
	}

	highest := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), VersionDirPrefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(e.Name(), VersionDirPrefix)))
		if err != nil || n <= 0 {
			continue
		}
		highest = max(highest, n)
	}

	dir := filepath.Join(root, VersionDirPrefix+strconv.Itoa(highest+1))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create version directory: %w", err)
	}
	return dir, nil
}

func writeFileAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

package installer

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrBinaryNotInArchive = errors.New("binary not found in archive")
	ErrUnsafeArchivePath  = errors.New("archive entry escapes destination")
)

// ExtractBinary copies the regular file whose base name is binaryName out of
// the archive at archivePath to destPath with mode 0755. The archive format
// is chosen by extension: .zip, .tar.gz or .tgz.
func ExtractBinary(archivePath, binaryName, destPath string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(archivePath, binaryName, destPath)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return extractTarGz(archivePath, binaryName, destPath)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

func extractTarGz(archivePath, binaryName, destPath string) error {
	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archiveFile.Close()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	tarReader := tar.NewReader(gzipReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return fmt.Errorf("%w: %s in %s", ErrBinaryNotInArchive, binaryName, filepath.Base(archivePath))
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, header.Name)
		}
		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}
		if !safeEntry(header.Name) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, header.Name)
		}

		if header.Typeflag == tar.TypeReg && entryBase(header.Name) == binaryName {
			return writeExecutable(tarReader, destPath)
		}
	}
}

func extractZip(archivePath, binaryName, destPath string) error {
	zr, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return fmt.Errorf("%w in %s", ErrUnsafeArchivePath, filepath.Base(archivePath))
	}
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if !safeEntry(f.Name) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchivePath, f.Name)
		}
		if !f.Mode().IsRegular() || entryBase(f.Name) != binaryName {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s in archive: %w", f.Name, err)
		}
		err = writeExecutable(rc, destPath)
		rc.Close()
		return err
	}
	return fmt.Errorf("%w: %s in %s", ErrBinaryNotInArchive, binaryName, filepath.Base(archivePath))
}

// safeEntry rejects absolute names and names that climb out of the root.
func safeEntry(name string) bool {
	n := strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(n) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return false
	}
	clean := path.Clean(n)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

func entryBase(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

// writeExecutable streams r into destPath through a temp file in the same
// directory and renames it into place.
func writeExecutable(r io.Reader, destPath string) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destPath)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanupNeeded := true
	defer func() {
		tmp.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	cleanupNeeded = false
	return nil
}

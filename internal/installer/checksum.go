package installer

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ChecksumsAsset is the checksum list published next to release archives.
const ChecksumsAsset = "checksums.txt"

var ErrChecksumMismatch = errors.New("checksum mismatch")

// findChecksum looks up filename in a "<hex>  <name>" list as written by
// sha256sum. Names may carry a directory or a leading '*' (binary mode).
func findChecksum(list []byte, filename string) (string, bool, error) {
	scanner := bufio.NewScanner(bytes.NewReader(list))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}
		name := strings.TrimPrefix(parts[1], "*")
		if name == filename || path.Base(name) == filename {
			return strings.ToLower(parts[0]), true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, fmt.Errorf("scan checksum file: %w", err)
	}
	return "", false, nil
}

// verifyChecksum compares got against the entry for filename in list.
func verifyChecksum(list []byte, filename, got string) error {
	want, ok, err := findChecksum(list, filename)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not listed in %s", ErrChecksumMismatch, filename, ChecksumsAsset)
	}
	if !strings.EqualFold(want, got) {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksumMismatch, filename, want, got)
	}
	return nil
}
